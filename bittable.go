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
	"crypto/sha1"
	"encoding/binary"
	"math/bits"
)

// filterSize is the size in bytes of a single Bloom filter (2048 bits).
const filterSize = 256

// hashCount is the fixed number of hash sub-words taken from one SHA-1
// digest and inserted per feature.
const hashCount = 5

// classMask is the bit mask applied to each 32-bit SHA-1 sub-word before it
// selects a bit of the filter. 0x7FF keeps the low 11 bits, matching a
// 2048-bit (256-byte) filter.
const classMask = 0x7FF

// sha1Sums computes the SHA-1 digest of data and returns it as five
// big-endian 32-bit words, matching the layout OpenSSL's SHA1() leaves in
// its output buffer (and which bfSHA1Insert consumes).
func sha1Sums(data []byte) [hashCount]uint32 {
	sum := sha1.Sum(data)
	var words [hashCount]uint32
	for i := range words {
		words[i] = binary.BigEndian.Uint32(sum[4*i : 4*i+4])
	}
	return words
}

// bfSHA1Insert inserts the five 32-bit words of a SHA-1 digest into filter
// bf, masking each word to the low bits selected by classMask before using
// it to address a bit. It returns the number of bits that were newly set
// (as opposed to already set by a previous, colliding insertion).
//
// The insertion is idempotent: inserting the same feature twice never
// double-counts a bit, and a caller that sees a zero return should treat
// the feature as a repeat and skip it when counting toward a filter's
// element budget.
func bfSHA1Insert(bf []byte, words [hashCount]uint32) int {
	newlySet := 0
	for i := 0; i < hashCount; i++ {
		h := words[i] & classMask
		byteIdx := h >> 3
		bit := byte(1) << (h & 7)
		if bf[byteIdx]&bit == 0 {
			newlySet++
		}
		bf[byteIdx] |= bit
	}
	return newlySet
}

// wordsOnesCount sums bits.OnesCount64 over every 8-byte word of buf,
// matching the technique blobloom's setop_amd64.go uses to popcount a
// filter by reinterpreting its byte storage as 64-bit words rather than
// consulting a lookup table. buf's length must be a multiple of 8.
func wordsOnesCount(buf []byte) int {
	n := 0
	for i := 0; i < len(buf); i += 8 {
		n += bits.OnesCount64(binary.LittleEndian.Uint64(buf[i : i+8]))
	}
	return n
}

// wordsAndOnesCount sums bits.OnesCount64(a[i] & b[i]) over every 8-byte
// word of a and b, the AND-then-popcount half of the same reinterpret-as-
// uint64 technique (blobloom's Filter.intersect followed by block.onescount,
// fused into a single pass since sdbf never needs to keep the AND result).
func wordsAndOnesCount(a, b []byte) int {
	n := 0
	for i := 0; i < len(a); i += 8 {
		aw := binary.LittleEndian.Uint64(a[i : i+8])
		bw := binary.LittleEndian.Uint64(b[i : i+8])
		n += bits.OnesCount64(aw & bw)
	}
	return n
}

// hamming returns the population count of a filter.
func hamming(bf []byte) int {
	return wordsOnesCount(bf)
}

// bfBitcountCut computes popcount(f1 AND f2) for two filterSize-byte
// filters, with an early-exit extrapolation after each of the first three
// tiers (the first 32, 64 and 128 bytes). If the running popcount p,
// extrapolated to the whole filter (8p, 4p and 2p respectively), cannot
// possibly reach cutoff even with slack bits of margin, the function returns
// 0 without finishing the comparison.
//
// Whenever this returns a nonzero value, that value is the exact overlap;
// passing cutoff == 0 always performs (and returns) the exact overlap.
func bfBitcountCut(f1, f2 []byte, cutoff, slack int) int {
	const (
		tier1 = 32
		tier2 = 64
		tier3 = 128
	)
	result := 0

	result += wordsAndOnesCount(f1[:tier1], f2[:tier1])
	if cutoff > 0 && 8*result+slack < cutoff {
		return 0
	}

	result += wordsAndOnesCount(f1[tier1:tier2], f2[tier1:tier2])
	if cutoff > 0 && 4*result+slack < cutoff {
		return 0
	}

	result += wordsAndOnesCount(f1[tier2:tier3], f2[tier2:tier3])
	if cutoff > 0 && 2*result+slack < cutoff {
		return 0
	}

	result += wordsAndOnesCount(f1[tier3:], f2[tier3:])
	return result
}
