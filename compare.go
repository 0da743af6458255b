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
	"math"
	"strings"
	"sync/atomic"
)

const (
	minElemCount    = 6   // fewer features than this in a reference filter: skip it entirely
	minRefElemCount = 64  // fewer features than this in a target filter, when the reference has more than one filter: skip that target filter
	scoreScale      = 0.3 // SD_SCORE_SCALE
	cutoffSlack     = 48
)

// matchEstCache memoizes bfMatchEst(m, k, s1, s2, 0) across the common=0
// case, which covers every call sdbf_max_score makes in practice. It is a
// flat 256x256 table of atomic words: a cache slot is written at most once
// per (s1, s2) pair's first use (benign races just mean the rare loser
// recomputes and stores the identical value), matching the original's
// bf_est_cache. Each slot is written with a single atomic store, in the
// one-atomic-word-per-slot style blobloom uses for its atomic bit operations.
type matchEstCache struct {
	slots [256 * 256]atomic.Uint32
}

var globalMatchEstCache matchEstCache

// get returns the cached estimate and whether it was present. A cached
// zero is indistinguishable from "not yet computed"; since a genuine
// estimate of exactly zero only happens for degenerate inputs (s1 or s2
// zero), treating it as a cache miss and recomputing is harmless.
func (c *matchEstCache) get(s1, s2 uint8) (uint32, bool) {
	v := c.slots[int(s1)*256+int(s2)].Load()
	return v, v != 0
}

func (c *matchEstCache) put(s1, s2 uint8, v uint32) {
	c.slots[int(s1)*256+int(s2)].Store(v)
}

// bfMatchEst estimates the number of bits two Bloom filters of m bits (k
// hash functions each) are expected to share, given they hold s1 and s2
// elements respectively with common elements in both. It mirrors
// bf_match_est; the common=0 case is served from globalMatchEstCache.
func bfMatchEst(m, k int, s1, s2, common uint32) uint32 {
	if common == 0 && s1 < 256 && s2 < 256 {
		if v, ok := globalMatchEstCache.get(uint8(s1), uint8(s2)); ok {
			return v
		}
	}
	ex := 1 - 1.0/float64(m)
	p1 := math.Pow(ex, float64(k)*float64(s1))
	p2 := math.Pow(ex, float64(k)*float64(s2))
	p12 := math.Pow(ex, float64(k)*float64(s1+s2-common))
	result := uint32(math.Round(float64(m) * (1 - p1 - p2 + p12)))
	if common == 0 && s1 < 256 && s2 < 256 {
		globalMatchEstCache.put(uint8(s1), uint8(s2), result)
	}
	return result
}

// elemCount returns the number of features packed into d's i'th filter,
// handling both stream-mode digests (where every filter but the last holds
// MaxElem elements) and block-mode digests (which track counts per filter
// explicitly). It mirrors get_elem_count.
func (d *Digest) elemCount(i int) int {
	if d.ElemCounts == nil {
		if i < d.FilterCount()-1 {
			return d.MaxElem
		}
		return d.LastCount
	}
	return int(d.ElemCounts[i])
}

// Compare computes the similarity score (0-100) between two digests. It
// canonicalizes the pair so the smaller digest is always the reference
// (matching sdbf_score's swap rule: fewer filters first, then fewer
// elements in the last filter, then lexically smaller name), compares every
// reference filter against every filter of the target, and averages each
// reference filter's best match into a final percentage. swapped reports
// whether ref/tgt were exchanged from the (a, b) order the caller passed
// in, exactly as sdbf_score's *swap output parameter does. A return of -1
// means no comparable filter pairs exist.
func Compare(a, b *Digest, threads int) (score int, swapped bool) {
	score, swapped, _ = CompareMap(a, b, threads)
	return score, swapped
}

// CompareMap is Compare plus a per-reference-filter marker slice: marks[i]
// is true if the reference digest's i'th filter found any match at all in
// the target. cmd/sdhash's -m flag prints these as a "+"/"." heat map,
// mirroring sdbf_max_score's inline printf when map_on is set.
func CompareMap(a, b *Digest, threads int) (score int, swapped bool, marks []bool) {
	if a.Hamming == nil {
		a.computeHamming()
	}
	if b.Hamming == nil {
		b.computeHamming()
	}

	ref, tgt := a, b
	if canonicalSwap(a, b) {
		ref, tgt = b, a
		swapped = true
	}

	if threads < 1 {
		threads = 1
	}

	scores := make([]float64, ref.FilterCount())
	valid := make([]bool, ref.FilterCount())
	runWorkers(threads, func(worker int) {
		for i := worker; i < ref.FilterCount(); i += threads {
			s, ok := maxScoreForFilter(ref, tgt, i)
			scores[i] = s
			valid[i] = ok
		}
	})

	marks = make([]bool, ref.FilterCount())
	sum, n := 0.0, 0
	for i, ok := range valid {
		if !ok {
			continue
		}
		marks[i] = scores[i] > 0
		sum += scores[i]
		n++
	}
	if n == 0 {
		return -1, swapped, marks
	}
	return int(math.Round(100.0 * sum / float64(ref.FilterCount()))), swapped, marks
}

// canonicalSwap reports whether a and b should be exchanged so that the
// smaller digest becomes the reference, mirroring sdbf_score's ordering
// rule: fewer filters wins; on a tie, fewer elements in the last filter
// wins; on a further tie, the lexically smaller name wins (so the
// comparison is deterministic regardless of call order).
func canonicalSwap(a, b *Digest) bool {
	if a.FilterCount() != b.FilterCount() {
		return a.FilterCount() > b.FilterCount()
	}
	aLast := a.elemCount(a.FilterCount() - 1)
	bLast := b.elemCount(b.FilterCount() - 1)
	if aLast != bLast {
		return aLast > bLast
	}
	return strings.Compare(a.Name, b.Name) > 0
}

// maxScoreForFilter finds, across every filter of tgt, the best match for
// ref's i'th filter and returns it as a score in [0, 1]. ok is false when
// the reference filter has too few elements to be meaningful, mirroring
// sdbf_max_score's early-return and per-candidate skip conditions.
func maxScoreForFilter(ref, tgt *Digest, i int) (score float64, ok bool) {
	s1 := ref.elemCount(i)
	if s1 < minElemCount {
		return 0, false
	}
	bf1 := ref.Filter(i)
	e1 := int(ref.Hamming[i])

	maxScore := -1.0
	for j := 0; j < tgt.FilterCount(); j++ {
		s2 := tgt.elemCount(j)
		if ref.FilterCount() > 1 && s2 < minRefElemCount {
			continue
		}
		e2 := int(tgt.Hamming[j])

		maxEst := e1
		if e2 < maxEst {
			maxEst = e2
		}
		minEst := int(bfMatchEst(8*ref.FilterSize, ref.HashCount, uint32(s1), uint32(s2), 0))
		cutoff := int(math.Round(scoreScale*float64(maxEst-minEst) + float64(minEst)))

		bf2 := tgt.Filter(j)
		match := bfBitcountCut(bf1, bf2, cutoff, cutoffSlack)
		if match > 0 {
			match = bfBitcountCut(bf1, bf2, 0, 0)
		}

		var s float64
		if match > cutoff && maxEst != cutoff {
			s = float64(match-cutoff) / float64(maxEst-cutoff)
		}
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore < 0 {
		return 0, false
	}
	return maxScore, true
}
