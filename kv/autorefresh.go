// Copyright 2026 The coreval Authors
// This file is part of coreval.
//
// coreval is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// coreval is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with coreval. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	cverrors "github.com/coreval/coreval/errors"
)

// Source produces the encoded bytes of a fresh Store, as EncodeBinary
// would render it. AutoRefresher decodes whatever Source returns and
// publishes it to a Cell on a fixed interval.
//
//go:generate mockgen -destination=mock_source_test.go -package=kv github.com/coreval/coreval/kv Source
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// AutoRefresher periodically pulls a fresh encoding from a Source,
// decodes it, and republishes it to a Cell. It runs its refresh loop on
// a background goroutine managed by an errgroup, so Stop can wait for an
// in-flight refresh to finish cleanly instead of abandoning it.
type AutoRefresher struct {
	cell     *Cell
	source   Source
	interval time.Duration
	maxDepth int
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	group  *errgroup.Group
	running bool
}

// AutoRefresherOption configures an AutoRefresher at construction time.
type AutoRefresherOption func(*AutoRefresher)

// WithRefreshLogger attaches a logger used for refresh-cycle success/error
// events. The default is a no-op logger.
func WithRefreshLogger(l *zap.Logger) AutoRefresherOption {
	return func(a *AutoRefresher) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMaxValueDepth bounds recursive value decoding during each refresh.
func WithMaxValueDepth(depth int) AutoRefresherOption {
	return func(a *AutoRefresher) { a.maxDepth = depth }
}

// NewAutoRefresher constructs a refresher that republishes cell's
// contents from source every interval.
func NewAutoRefresher(cell *Cell, source Source, interval time.Duration, opts ...AutoRefresherOption) *AutoRefresher {
	a := &AutoRefresher{
		cell:     cell,
		source:   source,
		interval: interval,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Start begins the background refresh loop. Calling Start twice without
// an intervening Stop panics.
func (a *AutoRefresher) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		cverrors.Panic("kv: AutoRefresher.Start called while already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(loopCtx)
	a.cancel = cancel
	a.group = g
	a.running = true

	g.Go(func() error {
		ticker := time.NewTicker(a.interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := a.refreshOnce(gctx); err != nil {
					a.logger.Warn("kv: auto-refresh cycle failed", zap.Error(err))
				}
			}
		}
	})
}

func (a *AutoRefresher) refreshOnce(ctx context.Context) error {
	data, err := a.source.Fetch(ctx)
	if err != nil {
		return cverrors.Wrap(cverrors.Cancelled, err, "kv: auto-refresh fetch")
	}
	store, _, err := DecodeBinaryPrefix(data, a.maxDepth)
	if err != nil {
		return err
	}
	a.cell.Publish(&Snapshot{store: store})
	a.logger.Debug("kv: auto-refresh published new snapshot", zap.Int("entries", store.Len()))
	return nil
}

// Stop cancels the refresh loop and waits for the in-flight cycle, if
// any, to return.
func (a *AutoRefresher) Stop() error {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return nil
	}
	cancel, g := a.cancel, a.group
	a.running = false
	a.mu.Unlock()

	cancel()
	return g.Wait()
}
