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
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	magicStream = "sdbf"
	magicBlock  = "sdbf-dd"
	codecVersion = "02"
)

// ErrInvalidEncoding is returned when a textual digest cannot be parsed:
// unrecognized magic/version, a malformed field, or a base64 payload whose
// decoded length disagrees with the header it came with.
var ErrInvalidEncoding = errors.New("sdbf: invalid digest encoding")

// Encode renders d as a single line of the colon-delimited textual digest
// format, matching sdbf_to_stream. Stream-mode digests (ElemCounts == nil)
// use the "sdbf" magic and a single trailing base64 blob; block-mode
// digests use the "sdbf-dd" magic and one ":<hex element count>:<base64>"
// group per filter.
func Encode(d *Digest) string {
	var b strings.Builder
	if d.ElemCounts == nil {
		fmt.Fprintf(&b, "%s:%s:%d:%s:sha1:%d:%d:%x:%d:%d:%d:",
			magicStream, codecVersion, len(d.Name), d.Name,
			d.FilterSize, d.HashCount, d.Mask, d.MaxElem, d.FilterCount(), d.LastCount)
		b.WriteString(base64.StdEncoding.EncodeToString(d.filters))
	} else {
		fmt.Fprintf(&b, "%s:%s:%d:%s:sha1:%d:%d:%x:%d:%d:%d",
			magicBlock, codecVersion, len(d.Name), d.Name,
			d.FilterSize, d.HashCount, d.Mask, d.MaxElem, d.FilterCount(), d.DDBlockSize)
		for i := 0; i < d.FilterCount(); i++ {
			fmt.Fprintf(&b, ":%02X:%s", d.ElemCounts[i], base64.StdEncoding.EncodeToString(d.Filter(i)))
		}
	}
	return b.String()
}

// Decode parses a single line produced by Encode back into a Digest.
func Decode(line string) (*Digest, error) {
	fields := strings.SplitN(line, ":", 5)
	if len(fields) < 5 {
		return nil, errors.Wrap(ErrInvalidEncoding, "truncated header")
	}
	magic, version, nameLenStr := fields[0], fields[1], fields[2]
	if magic != magicStream && magic != magicBlock {
		return nil, errors.Wrapf(ErrInvalidEncoding, "unrecognized magic %q", magic)
	}
	if version != codecVersion {
		return nil, errors.Wrapf(ErrInvalidEncoding, "unsupported version %q", version)
	}
	nameLen, err := strconv.Atoi(nameLenStr)
	if err != nil || nameLen < 0 {
		return nil, errors.Wrap(ErrInvalidEncoding, "bad name length")
	}

	// fields[3:], rejoined, hold "<name><rest-of-record>" where the name is
	// exactly nameLen bytes followed by the remaining colon-delimited fields.
	joined := strings.Join(fields[3:], ":")
	if len(joined) < nameLen {
		return nil, errors.Wrap(ErrInvalidEncoding, "name longer than remaining record")
	}
	name := joined[:nameLen]
	remainder := joined[nameLen:]
	remainder = strings.TrimPrefix(remainder, ":")

	parts := strings.SplitN(remainder, ":", 7)
	if len(parts) < 7 || parts[0] != "sha1" {
		return nil, errors.Wrap(ErrInvalidEncoding, "missing sha1 field")
	}
	filterSz, err1 := strconv.Atoi(parts[1])
	hashCnt, err2 := strconv.Atoi(parts[2])
	mask, err3 := strconv.ParseUint(parts[3], 16, 32)
	maxElem, err4 := strconv.Atoi(parts[4])
	filterCnt, err5 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return nil, errors.Wrap(ErrInvalidEncoding, "malformed numeric field")
	}

	d := &Digest{
		Name:       name,
		FilterSize: filterSz,
		HashCount:  hashCnt,
		Mask:       uint32(mask),
		MaxElem:    maxElem,
	}

	if magic == magicBlock {
		blockFields := strings.SplitN(parts[6], ":", 2)
		ddBlockSize, err := strconv.Atoi(blockFields[0])
		if err != nil {
			return nil, errors.Wrap(ErrInvalidEncoding, "malformed dd block size")
		}
		d.DDBlockSize = ddBlockSize

		body := ""
		if len(blockFields) > 1 {
			body = blockFields[1]
		}
		groups := strings.Split(strings.TrimPrefix(body, ":"), ":")
		if body == "" {
			groups = nil
		}
		if len(groups) != 2*filterCnt {
			return nil, errors.Wrapf(ErrInvalidEncoding, "expected %d filter groups, got %d", filterCnt, len(groups)/2)
		}
		d.filters = make([]byte, filterCnt*filterSz)
		d.ElemCounts = make([]uint16, filterCnt)
		for i := 0; i < filterCnt; i++ {
			cnt, err := strconv.ParseUint(groups[2*i], 16, 16)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidEncoding, "bad element count for filter %d", i)
			}
			d.ElemCounts[i] = uint16(cnt)
			decoded, err := base64.StdEncoding.DecodeString(groups[2*i+1])
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidEncoding, "bad base64 payload for filter %d", i)
			}
			if len(decoded) != filterSz {
				return nil, errors.Wrapf(ErrInvalidEncoding, "filter %d: decoded length %d, expected %d", i, len(decoded), filterSz)
			}
			copy(d.filters[i*filterSz:(i+1)*filterSz], decoded)
		}
	} else {
		lastFields := strings.SplitN(parts[6], ":", 2)
		lastCount, err := strconv.Atoi(lastFields[0])
		if err != nil {
			return nil, errors.Wrap(ErrInvalidEncoding, "malformed last-filter count")
		}
		d.LastCount = lastCount

		b64 := ""
		if len(lastFields) > 1 {
			b64 = lastFields[1]
		}
		decoded, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidEncoding, "bad base64 payload")
		}
		if len(decoded) != filterCnt*filterSz {
			return nil, errors.Wrapf(ErrInvalidEncoding, "decoded length %d, expected %d", len(decoded), filterCnt*filterSz)
		}
		d.filters = decoded
	}

	d.computeHamming()
	return d, nil
}
