//  Copyright (c) 2023 Uber Technologies, Inc.
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

package state

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a digest of the state consistent with Equal. It is computed once per state.
func (s *ProgramState) Hash() uint64 {
	if s.hashed {
		return s.hash
	}
	d := xxhash.New()
	buf := make([]byte, 0, 64)
	flush := func(section byte) {
		buf = append(buf, section)
		_, _ = d.Write(buf)
		buf = buf[:0]
	}

	for it := s.bindings.Iterator(); !it.Done(); {
		sym, v, _ := it.Next()
		buf = binary.LittleEndian.AppendUint64(buf, uint64(sym))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(v.ID()))
		flush('b')
	}
	for i := 0; i < s.stack.Len(); i++ {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(s.stack.Get(i).ID()))
		flush('s')
	}
	for it := s.constraints.Iterator(); !it.Done(); {
		id, e, _ := it.Next()
		buf = binary.LittleEndian.AppendUint64(buf, uint64(id))
		key := e.cs.Key()
		buf = append(buf, key[:]...)
		flush('c')
	}
	for it := s.visits.Iterator(); !it.Done(); {
		block, n, _ := it.Next()
		buf = binary.LittleEndian.AppendUint64(buf, uint64(block))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(n))
		flush('v')
	}
	if s.exit != nil {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(s.exit.ID()))
		flush('e')
	}

	s.hash, s.hashed = d.Sum64(), true
	return s.hash
}

// Equal returns true if both states hold the same bindings, stack, constraints, visit counts and
// exit value.
func (s *ProgramState) Equal(o *ProgramState) bool {
	if s == o {
		return true
	}
	if o == nil || s.Hash() != o.Hash() {
		return false
	}
	if s.exit != o.exit ||
		s.bindings.Len() != o.bindings.Len() ||
		s.stack.Len() != o.stack.Len() ||
		s.constraints.Len() != o.constraints.Len() ||
		s.visits.Len() != o.visits.Len() {
		return false
	}
	for it := s.bindings.Iterator(); !it.Done(); {
		sym, v, _ := it.Next()
		if ov, ok := o.bindings.Get(sym); !ok || ov != v {
			return false
		}
	}
	for i := 0; i < s.stack.Len(); i++ {
		if s.stack.Get(i) != o.stack.Get(i) {
			return false
		}
	}
	for it := s.constraints.Iterator(); !it.Done(); {
		id, e, _ := it.Next()
		if oe, ok := o.constraints.Get(id); !ok || oe.cs != e.cs {
			return false
		}
	}
	for it := s.visits.Iterator(); !it.Done(); {
		block, n, _ := it.Next()
		if on, ok := o.visits.Get(block); !ok || on != n {
			return false
		}
	}
	return true
}
