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

// Package registry holds an ordered, indexed collection of digests and the
// pairwise operations sdhash's command-line driver runs over it: add,
// remove, get-by-index, compare-by-index, and threshold lookup. It mirrors
// the global sdbf_list/curr_sdbf state and sdbf_add/_remove/_get/_compare/
// _lookup functions in sdbf_api.c, replacing the single pthread_mutex_t
// with a sync.Mutex guarding the same slice-append/remove operations.
package registry

import (
	"strings"
	"sync"

	"github.com/sdbf-go/sdbf"
)

// Registry is an ordered collection of digests, safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	digests []*sdbf.Digest
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Add appends d to the collection and returns the collection's new size.
func (r *Registry) Add(d *sdbf.Digest) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digests = append(r.digests, d)
	return len(r.digests)
}

// Remove deletes the first digest whose name has namePrefix as a prefix and
// returns the collection's new size. It is a no-op if no digest matches.
func (r *Registry) Remove(namePrefix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, d := range r.digests {
		if strings.HasPrefix(d.Name, namePrefix) {
			r.digests = append(r.digests[:i], r.digests[i+1:]...)
			break
		}
	}
	return len(r.digests)
}

// Size returns the number of digests currently held.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.digests)
}

// Get returns the digest at index, or nil if index is out of range.
func (r *Registry) Get(index int) *sdbf.Digest {
	r.mu.Lock()
	defer r.mu.Unlock()
	if index < 0 || index >= len(r.digests) {
		return nil
	}
	return r.digests[index]
}

// Name returns the name of the digest at index, or "" if index is out of
// range.
func (r *Registry) Name(index int) string {
	d := r.Get(index)
	if d == nil {
		return ""
	}
	return d.Name
}

// Compare scores the digests at index1 and index2 against each other,
// using threads goroutines for the comparison.
func (r *Registry) Compare(index1, index2, threads int) (score int, swapped bool) {
	a, b := r.Get(index1), r.Get(index2)
	return sdbf.Compare(a, b, threads)
}

// Lookup scores query against every digest currently held and returns the
// first one whose score is at least threshold, along with that score. It
// returns (nil, 0, false) if nothing matches. It mirrors sdbf_lookup.
func (r *Registry) Lookup(query *sdbf.Digest, threshold, threads int) (*sdbf.Digest, int, bool) {
	r.mu.Lock()
	snapshot := make([]*sdbf.Digest, len(r.digests))
	copy(snapshot, r.digests)
	r.mu.Unlock()

	for _, d := range snapshot {
		score, _ := sdbf.Compare(query, d, threads)
		if score >= threshold {
			return d, score, true
		}
	}
	return nil, 0, false
}

// CompareAcross scores every digest in query against every digest in
// target, invoking report for each pair that meets threshold. It
// implements sdhash.c's MODE_FIRST two-file query-vs-target comparison: a
// distinct mode from the all-pairs comparison Compare/Lookup drive within a
// single registry.
func CompareAcross(query, target *Registry, threshold, threads int, report func(queryIdx, targetIdx, score int, swapped bool)) {
	query.mu.Lock()
	qSnap := make([]*sdbf.Digest, len(query.digests))
	copy(qSnap, query.digests)
	query.mu.Unlock()

	target.mu.Lock()
	tSnap := make([]*sdbf.Digest, len(target.digests))
	copy(tSnap, target.digests)
	target.mu.Unlock()

	for qi, q := range qSnap {
		for ti, t := range tSnap {
			score, swapped := sdbf.Compare(q, t, threads)
			if score >= threshold {
				report(qi, ti, score, swapped)
			}
		}
	}
}
