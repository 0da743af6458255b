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

// Package sdbf computes and compares similarity digests: entropy-ranked
// feature selection over a byte stream, packed into a cluster of Bloom
// filters, compared via expected-overlap estimation rather than exact
// equality.
package sdbf

import (
	"sync"

	"github.com/pkg/errors"
)

// MinFileSize is the smallest input sdbf will hash. Inputs below this are
// rejected with ErrSkipInput, matching sdhash's MIN_FILE_SIZE.
const MinFileSize = 512

const (
	streamChunkSize  = 32 * 1024 * 1024 // 32MiB, matches the original's chunking granularity
	thresholdFloor   = 16               // sdbf_sys.threshold default
	maxElemStream    = 160              // _MAX_ELEM_COUNT for stream mode
	maxElemBlock     = 192              // _MAX_ELEM_COUNT for block (dd) mode
	defaultBlockSize = 4096
)

// ErrSkipInput is returned when an input cannot be hashed: too small, or
// (at the collaborator level) missing/irregular.
var ErrSkipInput = errors.New("sdbf: input skipped")

// Digest is a similarity digest (SDBF): a cluster of same-size Bloom
// filters, each populated with SHA-1-addressed features selected from the
// input by the entropy/popularity scorer. It corresponds to sdbf_t in the
// original implementation.
type Digest struct {
	Name        string
	FilterSize  int
	HashCount   int
	Mask        uint32
	MaxElem     int
	LastCount   int    // valid for stream-mode digests; 0 for block mode (see ElemCounts)
	DDBlockSize int    // 0 for stream mode, block size in bytes for block mode
	Hamming     []uint16
	ElemCounts  []uint16 // per-filter feature counts, block mode only

	filters []byte // bf_count*FilterSize bytes
}

// FilterCount returns the number of Bloom filters in the digest.
func (d *Digest) FilterCount() int {
	if d.FilterSize == 0 {
		return 0
	}
	return len(d.filters) / d.FilterSize
}

// Filter returns the i'th filter as a slice sharing storage with the
// digest; callers must not retain it past a mutation of d.
func (d *Digest) Filter(i int) []byte {
	return d.filters[i*d.FilterSize : (i+1)*d.FilterSize]
}

func (d *Digest) currentFilter() []byte {
	return d.Filter(d.FilterCount() - 1)
}

func (d *Digest) appendFilter() {
	d.filters = append(d.filters, make([]byte, d.FilterSize)...)
}

// Sample truncates d to at most n filters, in place, discarding the rest.
// It is used by the -c/-s comparison mode to cap how many filters of a
// (possibly large) query digest are matched against a target, mirroring
// sdhash.c's "for -c comparisons, use N or fewer filters to match" sample
// option. It is a no-op if d already has n or fewer filters.
func (d *Digest) Sample(n int) {
	if n <= 0 || d.FilterCount() <= n {
		return
	}
	d.filters = d.filters[:n*d.FilterSize]
	if d.ElemCounts != nil {
		d.ElemCounts = d.ElemCounts[:n]
	}
	if d.Hamming != nil {
		d.Hamming = d.Hamming[:n]
	}
	d.LastCount = d.MaxElem
}

// computeHamming precomputes the population count of every filter, mirroring
// compute_hamming in sdbf_core.c.
func (d *Digest) computeHamming() {
	d.Hamming = make([]uint16, d.FilterCount())
	for i := range d.Hamming {
		d.Hamming[i] = uint16(hamming(d.Filter(i)))
	}
}

// BuildStream hashes data in stream mode: a sequence of fixed-size Bloom
// filters filled in file order, with a fixed feature-acceptance threshold.
// It mirrors gen_chunk_sdbf.
func BuildStream(data []byte, name string) (*Digest, error) {
	if len(data) < MinFileSize {
		return nil, errors.Wrapf(ErrSkipInput, "%q: %d bytes (minimum %d)", name, len(data), MinFileSize)
	}

	d := &Digest{
		Name:       name,
		FilterSize: filterSize,
		HashCount:  hashCount,
		Mask:       classMask,
		MaxElem:    maxElemStream,
	}
	d.appendFilter()

	chunkSize := streamChunkSize
	if chunkSize > len(data) {
		chunkSize = len(data)
	}
	if chunkSize <= popWinSize {
		// Input is too small to contain a full popularity window; there are
		// simply no features to extract, matching gen_chunk_hash's loop
		// bound (chunk_size - pop_win_size <= 0 emits nothing).
		return d, nil
	}

	qt := len(data) / chunkSize
	rem := len(data) % chunkSize

	ranks := make([]uint16, chunkSize)
	chunkPos := 0
	for i := 0; i < qt; i++ {
		chunk := data[chunkPos : chunkPos+chunkSize]
		genChunkRanks(chunk, chunkSize, ranks, 0)
		scores, _ := genChunkScoresFast(ranks, chunkSize)
		d.appendStreamFeatures(data, chunkPos, scores, chunkSize, thresholdFloor)
		chunkPos += chunkSize
	}
	if rem > 0 {
		chunk := data[chunkPos:]
		remRanks := ranks[:rem]
		genChunkRanks(chunk, rem, remRanks, 0)
		scores, _ := genChunkScoresFast(remRanks, rem)
		d.appendStreamFeatures(data, chunkPos, scores, rem, thresholdFloor)
	}

	d.trimWeakTail()
	d.computeHamming()
	return d, nil
}

// appendStreamFeatures scans scores for positions above threshold, inserts
// the SHA-1 of the corresponding pop_win-byte window into the current
// filter, and rolls over to a fresh filter once MaxElem distinct features
// have landed in it. It mirrors gen_chunk_hash.
func (d *Digest) appendStreamFeatures(data []byte, chunkPos int, scores []int32, size, threshold int) {
	limit := size - popWinSize
	curFilter := d.currentFilter()
	for i := 0; i < limit; i++ {
		if int(scores[i]) <= threshold {
			continue
		}
		words := sha1Sums(data[chunkPos+i : chunkPos+i+popWinSize])
		if bfSHA1Insert(curFilter, words) == 0 {
			continue
		}
		d.LastCount++
		if d.LastCount == d.MaxElem {
			d.appendFilter()
			curFilter = d.currentFilter()
			d.LastCount = 0
		}
	}
}

// trimWeakTail drops the last filter if it is so sparsely populated that it
// mostly adds false-positive surface rather than real similarity signal,
// matching sdbf_core.c's "chop off last BF if its membership is too low"
// step.
func (d *Digest) trimWeakTail() {
	if d.FilterCount() > 1 && d.LastCount < d.MaxElem/8 {
		d.filters = d.filters[:len(d.filters)-d.FilterSize]
		d.LastCount = d.MaxElem
	}
}

// BuildBlock hashes data in block mode: one filter per fixed-size block of
// the input, with a per-block adaptive threshold chosen to emit close to
// MaxElem features. It mirrors gen_block_sdbf (the single-threaded path).
func BuildBlock(data []byte, name string, blockSize int) (*Digest, error) {
	return buildBlock(data, name, blockSize, 1)
}

// BuildBlockParallel is BuildBlock distributed across threads goroutines,
// each owning the blocks whose index modulo threads equals its worker
// number. Each worker only ever writes to filters and element counts for
// the blocks it owns, so no locking is required beyond waiting for all
// workers to finish. It mirrors gen_block_sdbf_mt/thread_gen_block_sdbf.
func BuildBlockParallel(data []byte, name string, blockSize, threads int) (*Digest, error) {
	if threads < 1 {
		threads = 1
	}
	return buildBlock(data, name, blockSize, threads)
}

func buildBlock(data []byte, name string, blockSize, threads int) (*Digest, error) {
	if len(data) < MinFileSize {
		return nil, errors.Wrapf(ErrSkipInput, "%q: %d bytes (minimum %d)", name, len(data), MinFileSize)
	}
	if blockSize <= popWinSize {
		return nil, errors.Errorf("sdbf: block size %d must exceed the popularity window (%d)", blockSize, popWinSize)
	}

	qt := len(data) / blockSize
	rem := len(data) % blockSize
	total := qt
	if rem > 0 {
		total++
	}
	if total == 0 {
		total = 1
	}

	d := &Digest{
		Name:        name,
		FilterSize:  filterSize,
		HashCount:   hashCount,
		Mask:        classMask,
		MaxElem:     maxElemBlock,
		DDBlockSize: blockSize,
		filters:     make([]byte, total*filterSize),
		ElemCounts:  make([]uint16, total),
	}

	runWorkers(threads, func(worker int) {
		ranks := make([]uint16, blockSize)
		for i := worker; i < qt; i += threads {
			block := data[i*blockSize : (i+1)*blockSize]
			genChunkRanks(block, blockSize, ranks, 0)
			scores, histo := genChunkScoresFast(ranks, blockSize)
			threshold, allowed := thresholdForBudget(&histo, d.MaxElem, thresholdFloor)
			d.ElemCounts[i] = uint16(emitBlockFeatures(block, scores, blockSize, threshold, allowed, d.MaxElem, d.Filter(i)))
		}
	})

	if rem > 0 {
		block := data[qt*blockSize:]
		ranks := make([]uint16, rem)
		genChunkRanks(block, rem, ranks, 0)
		scores, _ := genChunkScoresFast(ranks, rem)
		d.ElemCounts[qt] = uint16(emitBlockFeatures(block, scores, rem, thresholdFloor, d.MaxElem, d.MaxElem, d.Filter(qt)))
	}

	d.computeHamming()
	return d, nil
}

// emitBlockFeatures scans a single block's scores against a per-block
// threshold, accepting ties while an allowance remains, and returns the
// number of distinct features actually inserted. It mirrors gen_block_hash.
func emitBlockFeatures(block []byte, scores []int32, maxOffset, threshold, allowed, maxElem int, filter []byte) int {
	limit := maxOffset - popWinSize
	hashCnt := 0
	for i := 0; i < limit && hashCnt < maxElem; i++ {
		s := int(scores[i])
		if s > threshold || (s == threshold && allowed > 0) {
			words := sha1Sums(block[i : i+popWinSize])
			if bfSHA1Insert(filter, words) == 0 {
				continue
			}
			hashCnt++
			if s == threshold {
				allowed--
			}
		}
	}
	return hashCnt
}

// runWorkers runs fn(0), fn(1), ..., fn(n-1) concurrently and waits for all
// of them to finish. It is the Go-idiom stand-in for sdhash's paired
// pthread start/end semaphores: goroutines need no start gate (they run as
// soon as they're scheduled), and a single sync.WaitGroup serves as the end
// signal every worker marks done exactly once.
func runWorkers(n int, fn func(worker int)) {
	if n <= 1 {
		fn(0)
		return
	}
	var wg sync.WaitGroup
	wg.Add(n)
	for w := 0; w < n; w++ {
		go func(worker int) {
			defer wg.Done()
			fn(worker)
		}(w)
	}
	wg.Wait()
}

// HashFiles hashes each of names in stream mode, distributing the files
// across threads goroutines partitioned by index modulo threads (matching
// sdbf_hash_files/thread_sdbf_hashfile). Files that fail to open or are
// too small are skipped; the returned slice has one *Digest per file that
// hashed successfully, in the order of names regardless of which worker
// finished first.
func HashFiles(names []string, threads int) []*Digest {
	if threads < 1 {
		threads = 1
	}
	results := make([]*Digest, len(names))
	runWorkers(threads, func(worker int) {
		for i := worker; i < len(names); i += threads {
			data, name, err := readFile(names[i])
			if err != nil {
				continue
			}
			dig, err := BuildStream(data, name)
			if err != nil {
				continue
			}
			results[i] = dig
		}
	})
	out := make([]*Digest, 0, len(results))
	for _, d := range results {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}
