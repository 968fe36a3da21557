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

// Package config holds coreval's process-wide tunables: allocator chunk
// sizing, decode depth/size limits, and the auto-refresh interval. It is
// loaded from TOML via github.com/pelletier/go-toml/v2, the ambient
// configuration format used throughout this codebase.
package config

import (
	"os"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"

	cverrors "github.com/coreval/coreval/errors"
)

// Config is coreval's top-level configuration. Byte-size fields use
// datasize.ByteSize so a TOML file can write "64MB" or "512KB" instead of
// a raw integer.
type Config struct {
	Allocator struct {
		SmallChunkBlocks   int               `toml:"small_chunk_blocks"`
		MediumChunkBlocks  int               `toml:"medium_chunk_blocks"`
		MaxHeapAlloc       datasize.ByteSize `toml:"max_heap_alloc"`
		SmallThreshold     datasize.ByteSize `toml:"pool_small_threshold"`
		MediumThreshold    datasize.ByteSize `toml:"pool_medium_threshold"`
		ThreadSafe         bool              `toml:"thread_safe"`
	} `toml:"allocator"`

	Decode struct {
		MaxDepth     int               `toml:"max_depth"`
		MaxEntrySize datasize.ByteSize `toml:"max_entry_size"`
	} `toml:"decode"`

	Store struct {
		Debug           bool          `toml:"debug"`
		AutoRefresh     bool          `toml:"auto_refresh"`
		RefreshInterval time.Duration `toml:"refresh_interval"`
	} `toml:"store"`
}

// Option mutates a Config during construction, applied after defaults and
// before any TOML overlay, so callers composing Default() with explicit
// overrides get predictable precedence.
type Option func(*Config)

// Default returns coreval's built-in configuration, used whenever no
// TOML file is supplied.
func Default(opts ...Option) Config {
	var c Config
	c.Allocator.SmallChunkBlocks = 1024
	c.Allocator.MediumChunkBlocks = 1024
	c.Allocator.MaxHeapAlloc = 64 * datasize.MB
	c.Allocator.SmallThreshold = 64 * datasize.B
	c.Allocator.MediumThreshold = 256 * datasize.B
	c.Allocator.ThreadSafe = true
	c.Decode.MaxDepth = 64
	c.Decode.MaxEntrySize = 16 * datasize.MB
	c.Store.Debug = false
	c.Store.AutoRefresh = false
	c.Store.RefreshInterval = 30 * time.Second
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LoadTOML reads and parses a TOML configuration file at path, starting
// from Default() so any field the file omits keeps its default value.
func LoadTOML(path string) (Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, cverrors.Wrap(cverrors.ConfigInvalid, err, "config: read file")
	}
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, cverrors.Wrap(cverrors.ConfigInvalid, err, "config: parse toml")
	}
	return c, nil
}
