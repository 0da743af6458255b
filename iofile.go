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

import "github.com/sdbf-go/sdbf/mmapfile"

// readFile memory-maps name and returns its contents alongside the name
// itself (for attaching to the resulting Digest). The mapping is closed
// before returning: data is copied out so HashFiles does not have to keep
// every input file mapped for the lifetime of the digests it produces.
func readFile(name string) (data []byte, resolvedName string, err error) {
	f, err := mmapfile.Open(name, MinFileSize)
	if err != nil {
		return nil, name, err
	}
	defer f.Close()

	buf := make([]byte, f.Size())
	copy(buf, f.Data())
	return buf, name, nil
}
