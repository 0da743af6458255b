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

package mmapfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFileReturnsErrSkip(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist"), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSkip)
}

func TestOpenDirectoryReturnsErrSkip(t *testing.T) {
	t.Parallel()

	_, err := Open(t.TempDir(), 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSkip)
}

func TestOpenTooSmallReturnsErrSkip(t *testing.T) {
	t.Parallel()

	name := filepath.Join(t.TempDir(), "small.bin")
	require.NoError(t, os.WriteFile(name, []byte("hi"), 0o644))

	_, err := Open(name, 1024)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSkip)
}

func TestOpenReadsFileContents(t *testing.T) {
	t.Parallel()

	want := make([]byte, 4096)
	for i := range want {
		want[i] = byte(i)
	}
	name := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(name, want, 0o644))

	f, err := Open(name, 512)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, int64(len(want)), f.Size())
	assert.Equal(t, want, f.Data())

	assert.NoError(t, f.Close())
	assert.NoError(t, f.Close()) // idempotent
}
