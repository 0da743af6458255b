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

package registry

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdbf-go/sdbf"
)

func mustDigest(t *testing.T, name string, seed int64) *sdbf.Digest {
	t.Helper()
	r := rand.New(rand.NewSource(seed))
	data := make([]byte, 128*1024)
	r.Read(data)
	d, err := sdbf.BuildStream(data, name)
	require.NoError(t, err)
	return d
}

func TestRegistryAddGetSize(t *testing.T) {
	t.Parallel()

	reg := New()
	assert.Equal(t, 0, reg.Size())

	d := mustDigest(t, "one", 1)
	n := reg.Add(d)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, reg.Size())
	assert.Same(t, d, reg.Get(0))
	assert.Equal(t, "one", reg.Name(0))
}

func TestRegistryGetOutOfRangeReturnsNil(t *testing.T) {
	t.Parallel()

	reg := New()
	assert.Nil(t, reg.Get(0))
	assert.Nil(t, reg.Get(-1))
	assert.Equal(t, "", reg.Name(5))
}

func TestRegistryRemoveByPrefix(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Add(mustDigest(t, "foo.bin", 2))
	reg.Add(mustDigest(t, "foobar.bin", 3))
	reg.Add(mustDigest(t, "baz.bin", 4))

	n := reg.Remove("foo")
	assert.Equal(t, 2, n)
	assert.Equal(t, "foobar.bin", reg.Name(0))
	assert.Equal(t, "baz.bin", reg.Name(1))
}

func TestRegistryRemoveNoMatchIsNoop(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Add(mustDigest(t, "foo.bin", 5))
	n := reg.Remove("nonexistent")
	assert.Equal(t, 1, n)
}

func TestRegistryCompareIdenticalScoresHigh(t *testing.T) {
	t.Parallel()

	reg := New()
	d := mustDigest(t, "same", 6)
	reg.Add(d)
	reg.Add(d)

	score, _ := reg.Compare(0, 1, 1)
	assert.GreaterOrEqual(t, score, 90)
}

func TestRegistryLookupFindsAboveThreshold(t *testing.T) {
	t.Parallel()

	reg := New()
	target := mustDigest(t, "target", 7)
	reg.Add(mustDigest(t, "unrelated", 8))
	reg.Add(target)

	found, score, ok := reg.Lookup(target, 50, 1)
	require.True(t, ok)
	assert.Same(t, target, found)
	assert.GreaterOrEqual(t, score, 50)
}

func TestRegistryLookupNoMatchReturnsFalse(t *testing.T) {
	t.Parallel()

	reg := New()
	reg.Add(mustDigest(t, "unrelated", 9))

	query := mustDigest(t, "query", 10)
	_, _, ok := reg.Lookup(query, 101, 1)
	assert.False(t, ok)
}

func TestCompareAcrossReportsMatchingPairs(t *testing.T) {
	t.Parallel()

	query := New()
	target := New()
	shared := mustDigest(t, "shared", 11)
	query.Add(shared)
	query.Add(mustDigest(t, "q-unrelated", 12))
	target.Add(mustDigest(t, "t-unrelated", 13))
	target.Add(shared)

	type pair struct {
		qi, ti, score int
	}
	var got []pair
	CompareAcross(query, target, 50, 1, func(qi, ti, score int, swapped bool) {
		got = append(got, pair{qi, ti, score})
	})

	require.Len(t, got, 1)
	assert.Equal(t, 0, got[0].qi)
	assert.Equal(t, 1, got[0].ti)
	assert.GreaterOrEqual(t, got[0].score, 50)
}
