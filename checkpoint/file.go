// Copyright 2026 The usdaCoding Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultFileName is the conventional progress file name.
const DefaultFileName = "progress.txt"

// File stores the checkpoint as a single decimal integer in a text file.
// Saves write a temporary file in the same directory, fsync it and rename it
// over the target, so readers never observe a partial value.
type File struct {
	path string
}

var _ Store = (*File)(nil)

// NewFile returns a file store at path. The file is created on first Save.
func NewFile(path string) *File {
	return &File{path: path}
}

// Path returns the location of the checkpoint file.
func (f *File) Path() string {
	return f.path
}

// Load implements Store. A missing or empty file means None.
func (f *File) Load(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return None, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return None, nil
		}
		return None, fmt.Errorf("read checkpoint: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return None, nil
	}
	index, err := strconv.Atoi(text)
	if err != nil || index < None {
		return None, fmt.Errorf("%w: %s contains %q", ErrCorrupt, f.path, text)
	}
	return index, nil
}

// Save implements Store.
func (f *File) Save(ctx context.Context, index int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if index < None {
		return fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.WriteString(strconv.Itoa(index)); err != nil {
		tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}

	if err := syncDir(dir); err != nil {
		return fmt.Errorf("sync checkpoint directory: %w", err)
	}
	return nil
}

// syncDir flushes directory entries so a completed rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	if err := d.Sync(); err != nil {
		d.Close()
		return err
	}
	return d.Close()
}

// Reset implements Store.
func (f *File) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
