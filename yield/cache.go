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

package yield

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync/atomic"

	"github.com/benbjohnson/immutable"
	"github.com/klauspost/compress/s2"
)

// exportVersion is bumped whenever the exported form of behaviors changes.
const exportVersion = 2

// ErrIncompatibleExport is returned when importing behaviors exported by another version.
var ErrIncompatibleExport = errors.New("incompatible yield export")

// Key is the key of the behavior of method under sig.
func Key(method string, sig Signature) string {
	return method + "(" + sig.Key() + ")"
}

// Cache is the store of finalized behaviors shared by concurrent analyses. Reads see an immutable
// snapshot; a publication atomically swaps in a new snapshot, and the first behavior published
// under a key wins.
type Cache struct {
	snapshot atomic.Pointer[immutable.Map[string, *Behavior]]
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	c.snapshot.Store(immutable.NewMap[string, *Behavior](nil))
	return c
}

// Get returns the behavior published under key.
func (c *Cache) Get(key string) (*Behavior, bool) {
	return c.snapshot.Load().Get(key)
}

// Publish adds b under key. It returns false, leaving the cache unchanged, if key was already
// published or b is incomplete.
func (c *Cache) Publish(key string, b *Behavior) bool {
	if !b.Complete {
		return false
	}
	for {
		cur := c.snapshot.Load()
		if _, ok := cur.Get(key); ok {
			return false
		}
		if c.snapshot.CompareAndSwap(cur, cur.Set(key, b)) {
			return true
		}
	}
}

// Snapshot returns a cache holding the behaviors published so far. Later publications to c are
// not visible in it, and publications to it are not visible in c.
func (c *Cache) Snapshot() *Cache {
	snap := &Cache{}
	snap.snapshot.Store(c.snapshot.Load())
	return snap
}

// Len returns the number of published behaviors.
func (c *Cache) Len() int {
	return c.snapshot.Load().Len()
}

// Behaviors returns the published behaviors ordered by key.
func (c *Cache) Behaviors() []*Behavior {
	snap := c.snapshot.Load()
	keys := make([]string, 0, snap.Len())
	for it := snap.Iterator(); !it.Done(); {
		k, _, _ := it.Next()
		keys = append(keys, k)
	}
	sort.Strings(keys)
	behaviors := make([]*Behavior, len(keys))
	for i, k := range keys {
		behaviors[i], _ = snap.Get(k)
	}
	return behaviors
}

type export struct {
	Version   int
	Behaviors []*Behavior
}

// GobEncode encodes the published behaviors with gob, compressed with s2.
func (c *Cache) GobEncode() (b []byte, err error) {
	var buf bytes.Buffer
	writer := s2.NewWriter(&buf)
	defer func() {
		if cerr := writer.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	if err := gob.NewEncoder(writer).Encode(export{Version: exportVersion, Behaviors: c.Behaviors()}); err != nil {
		return nil, err
	}

	// Close the s2 writer before getting the bytes such that we have complete information.
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode publishes the behaviors encoded by GobEncode. Behaviors already published are kept.
func (c *Cache) GobDecode(input []byte) error {
	if c.snapshot.Load() == nil {
		c.snapshot.Store(immutable.NewMap[string, *Behavior](nil))
	}
	var e export
	if err := gob.NewDecoder(s2.NewReader(bytes.NewReader(input))).Decode(&e); err != nil {
		return err
	}
	if e.Version != exportVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrIncompatibleExport, e.Version, exportVersion)
	}
	for _, b := range e.Behaviors {
		b.Complete = true
		c.Publish(Key(b.Method, b.Signature), b)
	}
	return nil
}

// Export writes the published behaviors to w.
func (c *Cache) Export(w io.Writer) error {
	data, err := c.GobEncode()
	if err != nil {
		return fmt.Errorf("encode yields: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write yields: %w", err)
	}
	return nil
}

// Import publishes the behaviors read from r.
func (c *Cache) Import(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read yields: %w", err)
	}
	if err := c.GobDecode(data); err != nil {
		return fmt.Errorf("decode yields: %w", err)
	}
	return nil
}
