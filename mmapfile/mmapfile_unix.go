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

//go:build unix

package mmapfile

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// openMapped maps the named file's first size bytes read-only, matching
// mmap_file()'s PROT_READ|MAP_PRIVATE mapping (dropping the original's
// PROT_WRITE, which sdhash never exercises: nothing in this module writes
// through a mapped file).
func openMapped(name string, size int64) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(ErrSkip, "could not open %q", name)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(err, "mmap %q", name)
	}
	return &File{
		Name: name,
		data: data,
		closer: func() error {
			return unix.Munmap(data)
		},
	}, nil
}
