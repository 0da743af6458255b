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

package sdbf

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	buf := make([]byte, n)
	r.Read(buf)
	return buf
}

func TestBuildStreamRejectsUndersizedInput(t *testing.T) {
	t.Parallel()

	_, err := BuildStream(make([]byte, MinFileSize-1), "tiny")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSkipInput)
}

func TestBuildStreamProducesAtLeastOneFilter(t *testing.T) {
	t.Parallel()

	data := randomBytes(64*1024, 10)
	d, err := BuildStream(data, "sample")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, d.FilterCount(), 1)
	assert.Equal(t, d.FilterCount(), len(d.Hamming))
	assert.Equal(t, "sample", d.Name)
	assert.Equal(t, filterSize, d.FilterSize)
}

func TestBuildStreamIsDeterministic(t *testing.T) {
	t.Parallel()

	data := randomBytes(200*1024, 11)
	a, err := BuildStream(data, "a")
	require.NoError(t, err)
	b, err := BuildStream(data, "a")
	require.NoError(t, err)

	assert.Equal(t, a.FilterCount(), b.FilterCount())
	for i := 0; i < a.FilterCount(); i++ {
		assert.Equal(t, a.Filter(i), b.Filter(i))
	}
}

func TestBuildStreamSimilarInputsShareFeatures(t *testing.T) {
	t.Parallel()

	base := randomBytes(256*1024, 12)
	modified := append([]byte(nil), base...)
	// Flip a small tail so most of the content is identical.
	for i := len(modified) - 4096; i < len(modified); i++ {
		modified[i] ^= 0xFF
	}

	a, err := BuildStream(base, "base")
	require.NoError(t, err)
	b, err := BuildStream(modified, "modified")
	require.NoError(t, err)

	score, _ := Compare(a, b, 1)
	assert.Greater(t, score, 0)

	unrelated := randomBytes(256*1024, 99)
	c, err := BuildStream(unrelated, "unrelated")
	require.NoError(t, err)
	unrelatedScore, _ := Compare(a, c, 1)
	assert.Less(t, unrelatedScore, score)
}

func TestBuildBlockRejectsSmallBlockSize(t *testing.T) {
	t.Parallel()

	_, err := BuildBlock(randomBytes(4096, 13), "x", popWinSize)
	require.Error(t, err)
}

func TestBuildBlockOneFilterPerBlock(t *testing.T) {
	t.Parallel()

	blockSize := 4096
	data := randomBytes(blockSize*5+100, 14)
	d, err := BuildBlock(data, "blocks", blockSize)
	require.NoError(t, err)

	assert.Equal(t, 6, d.FilterCount()) // 5 full blocks + 1 remainder block
	assert.Equal(t, blockSize, d.DDBlockSize)
	require.Len(t, d.ElemCounts, 6)
}

func TestBuildBlockParallelMatchesSerial(t *testing.T) {
	t.Parallel()

	blockSize := 4096
	data := randomBytes(blockSize*9+500, 15)

	serial, err := BuildBlock(data, "s", blockSize)
	require.NoError(t, err)
	parallel, err := BuildBlockParallel(data, "p", blockSize, 4)
	require.NoError(t, err)

	require.Equal(t, serial.FilterCount(), parallel.FilterCount())
	for i := 0; i < serial.FilterCount(); i++ {
		assert.Equal(t, serial.Filter(i), parallel.Filter(i), "filter %d", i)
		assert.Equal(t, serial.ElemCounts[i], parallel.ElemCounts[i], "elemcount %d", i)
	}
}

func TestDigestSampleTruncatesFilters(t *testing.T) {
	t.Parallel()

	blockSize := 4096
	data := randomBytes(blockSize*8, 16)
	d, err := BuildBlock(data, "sample-me", blockSize)
	require.NoError(t, err)
	require.Equal(t, 8, d.FilterCount())

	d.Sample(3)
	assert.Equal(t, 3, d.FilterCount())
	assert.Len(t, d.ElemCounts, 3)
	assert.Len(t, d.Hamming, 3)
}

func TestDigestSampleNoopWhenAlreadySmaller(t *testing.T) {
	t.Parallel()

	blockSize := 4096
	data := randomBytes(blockSize*2, 17)
	d, err := BuildBlock(data, "small", blockSize)
	require.NoError(t, err)
	count := d.FilterCount()

	d.Sample(count + 5)
	assert.Equal(t, count, d.FilterCount())
}

func TestHashFilesSkipsUnreadableAndTooSmall(t *testing.T) {
	t.Parallel()

	// HashFiles resolves names through readFile/mmapfile.Open, so a name
	// that can't stat as a regular file of sufficient size must be skipped
	// rather than aborting the whole batch.
	results := HashFiles([]string{"/nonexistent/path/does/not/exist"}, 2)
	assert.Empty(t, results)
}
