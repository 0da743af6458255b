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

func TestGenChunkScoresFastMatchesDefinitional(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42))
	chunkSize := 2000
	ranks := make([]uint16, chunkSize)
	for i := range ranks {
		// A handful of distinct rank values with plenty of ties, similar to
		// the real entropy-rank distribution's clustering.
		ranks[i] = uint16(r.Intn(40))
	}

	wantScores, wantHisto := genChunkScores(ranks, chunkSize)
	gotScores, gotHisto := genChunkScoresFast(ranks, chunkSize)

	require.Equal(t, len(wantScores), len(gotScores))
	assert.Equal(t, wantScores, gotScores)
	assert.Equal(t, wantHisto, gotHisto)
}

func TestGenChunkScoresTieBreaksRightmost(t *testing.T) {
	t.Parallel()

	// chunkSize = popWinSize+1 means only a single window position (i=0)
	// is scored, so the tie-break is visible without later iterations
	// re-winning the same rightmost position again.
	chunkSize := popWinSize + 1
	ranks := make([]uint16, chunkSize)
	for i := range ranks {
		ranks[i] = 10
	}
	// Two equally-minimal positions at 0 and popWinSize-1 within the first
	// window; the rightmost (popWinSize-1) must win.
	ranks[0] = 1
	ranks[popWinSize-1] = 1

	scores, _ := genChunkScores(ranks, chunkSize)
	assert.Equal(t, int32(0), scores[0])
	assert.Equal(t, int32(1), scores[popWinSize-1])
}

func TestGenChunkScoresIgnoresZeroRank(t *testing.T) {
	t.Parallel()

	chunkSize := popWinSize + 1
	ranks := make([]uint16, chunkSize)
	// Every position has rank 0: nothing should ever score, so the single
	// scored position (i=0) lands in bucket 0 and every other bucket stays
	// empty.
	scores, histo := genChunkScores(ranks, chunkSize)
	for _, s := range scores {
		assert.Equal(t, int32(0), s)
	}
	var want scoreHistogram
	want[0] = 1
	assert.Equal(t, want, histo)
}

func TestThresholdForBudgetRespectsFloor(t *testing.T) {
	t.Parallel()

	var histo scoreHistogram
	histo[64] = 5
	histo[63] = 5
	histo[10] = 1000 // below the floor of 16; must never be counted

	// sum accumulates strictly-greater-than-k counts before testing k: at
	// k=64, sum=0 and 0+5=5 does not exceed maxElem=8, so k=64 is absorbed
	// (sum becomes 5); at k=63, sum=5 and 5+5=10 > 8, so the walk stops at
	// threshold=63 with allowed = 8-5 = 3 budget left for the ==63 level.
	threshold, allowed := thresholdForBudget(&histo, 8, 16)
	assert.Equal(t, 63, threshold)
	assert.Equal(t, 3, allowed)
}

func TestThresholdForBudgetHitsFloorWhenBudgetExceedsSupply(t *testing.T) {
	t.Parallel()

	var histo scoreHistogram
	histo[20] = 1
	threshold, allowed := thresholdForBudget(&histo, 1000, 16)
	assert.Equal(t, 16, threshold)
	assert.Equal(t, 999, allowed)
}
