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

// popWinSize is the width of the sliding popularity window the scorer uses
// to find locally distinctive positions.
const popWinSize = 64

// scoreHistogram counts, for each possible score in [0, popWinSize], how
// many chunk positions received that score. Index popWinSize itself is
// reachable (a position can win every window it appears in).
type scoreHistogram [popWinSize + 1]int32

// genChunkScores is the correctness oracle for the feature scorer: for
// every position i it finds the minimum-rank position within
// ranks[i:i+popWinSize] (ties broken in favor of the rightmost position,
// matching gen_chunk_scores's "largest position wins" rule) and increments
// that winner's score, provided its rank is nonzero. It is a full rescan at
// every position and is never the hot path in production use; see
// genChunkScoresFast for that.
func genChunkScores(ranks []uint16, chunkSize int) ([]int32, scoreHistogram) {
	scores := make([]int32, chunkSize)
	var histo scoreHistogram

	limit := chunkSize - popWinSize
	for i := 0; i < limit; i++ {
		win := ranks[i : i+popWinSize]
		minPos := 0
		minRank := win[0]
		for p := 1; p < popWinSize; p++ {
			if win[p] <= minRank {
				minRank = win[p]
				minPos = p
			}
		}
		if minRank > 0 {
			scores[i+minPos]++
		}
	}
	for i := 0; i < limit; i++ {
		histo[scores[i]]++
	}
	return scores, histo
}

// genChunkScoresFast computes the same result as genChunkScores but
// maintains the sliding window's minimum incrementally: when the rank
// entering the window at its right edge is no larger than the current
// minimum, the new minimum is simply the incoming position (one
// comparison); if it is larger, the current minimum is kept. The window is
// rescanned in full only when the previous minimum has slid out of it. This
// mirrors the cheap-slide optimization in gen_chunk_scores.
func genChunkScoresFast(ranks []uint16, chunkSize int) ([]int32, scoreHistogram) {
	scores := make([]int32, chunkSize)
	var histo scoreHistogram

	limit := chunkSize - popWinSize
	if limit <= 0 {
		return scores, histo
	}

	minPos, minRank := rescanMin(ranks, 0)
	for i := 0; i < limit; i++ {
		if i > 0 {
			entering := i + popWinSize - 1
			if minPos < i {
				// The previous minimum fell out of the window; rescan.
				minPos, minRank = rescanMin(ranks, i)
			} else if ranks[entering] <= minRank {
				minPos, minRank = entering, ranks[entering]
			}
		}
		if minRank > 0 {
			scores[minPos]++
		}
	}
	for i := 0; i < limit; i++ {
		histo[scores[i]]++
	}
	return scores, histo
}

// rescanMin returns the position and rank of the minimum-rank element of
// ranks[start : start+popWinSize], breaking ties toward the rightmost
// position.
func rescanMin(ranks []uint16, start int) (pos int, rank uint16) {
	win := ranks[start : start+popWinSize]
	pos, rank = 0, win[0]
	for p := 1; p < popWinSize; p++ {
		if win[p] <= rank {
			rank = win[p]
			pos = p
		}
	}
	return start + pos, rank
}

// thresholdForBudget walks the score histogram from the top score downward,
// accumulating the count of positions scoring strictly greater than the
// candidate threshold k, and stops at the first k where admitting every
// position scoring >= k would exceed maxElem. threshold is that k; allowed
// is the remaining budget for positions scoring exactly threshold (the sum
// does not include histo[threshold] itself, matching gen_block_sdbf's
// break-before-add loop: sum only ever counts strictly-greater positions,
// and allowed = maxElem - sum). It mirrors sdbf_core.c's descending-
// threshold search in gen_chunk_hash/gen_block_hash.
func thresholdForBudget(histo *scoreHistogram, maxElem, floor int) (threshold, allowed int) {
	sum := 0
	for k := popWinSize; k >= floor; k-- {
		if sum <= maxElem && sum+int(histo[k]) > maxElem {
			return k, maxElem - sum
		}
		sum += int(histo[k])
	}
	return floor, maxElem - sum
}
