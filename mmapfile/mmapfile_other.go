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

//go:build !unix

package mmapfile

import (
	"os"

	"github.com/pkg/errors"
)

// openMapped falls back to a full read on platforms without an mmap
// syscall wired up (golang.org/x/sys/unix is unix-only). The resulting
// File behaves identically from the caller's perspective; only the
// underlying resource-management strategy differs.
func openMapped(name string, _ int64) (*File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(ErrSkip, "could not read %q", name)
	}
	return &File{Name: name, data: data}, nil
}
