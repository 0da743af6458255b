// Copyright (c) 2024 the sdbf-go authors
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

// Package mmapfile memory-maps regular files for read access, skipping
// files that do not exist, are not regular, or fall below a minimum size.
// It mirrors the behavior of mmap_file() in the original sdhash
// implementation (map_file.c): fopen+fstat+S_ISREG+size check, then mmap.
package mmapfile

import (
	"os"

	"github.com/pkg/errors"
)

// ErrSkip is returned (wrapped with file-specific context) when a file is
// not a candidate for hashing: missing, not a regular file, or smaller than
// the caller's minimum size. Callers that hash a batch of files should
// treat ErrSkip as "skip and continue", not as a fatal error.
var ErrSkip = errors.New("mmapfile: input skipped")

// File is a memory-mapped (or, on platforms without mmap support,
// fully-read) regular file opened for read access.
type File struct {
	Name string
	data []byte
	closer func() error
}

// Data returns the file's contents. The returned slice is only valid until
// Close is called.
func (f *File) Data() []byte { return f.data }

// Size returns the length of the file's contents.
func (f *File) Size() int64 { return int64(len(f.data)) }

// Close releases any resources (an mmap mapping, on platforms that
// support it) associated with f.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	closer := f.closer
	f.closer = nil
	return closer()
}

// Open maps name into memory for read access. A skip decision (file
// missing, not regular, smaller than minSize) is returned as an error
// wrapping ErrSkip; reporting it is left to the caller. Open itself never
// writes to stderr, matching the library-code-must-not-write convention used
// throughout this module.
func Open(name string, minSize int64) (*File, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, errors.Wrapf(ErrSkip, "could not stat %q", name)
	}
	if !info.Mode().IsRegular() {
		return nil, errors.Wrapf(ErrSkip, "%q is not a regular file", name)
	}
	if info.Size() < minSize {
		return nil, errors.Wrapf(ErrSkip, "%q is too small (%d bytes, minimum %d)", name, info.Size(), minSize)
	}
	return openMapped(name, info.Size())
}
