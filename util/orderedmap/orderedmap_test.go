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

package orderedmap_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/symex/util/orderedmap"
)

func keys[K comparable, V any](m *orderedmap.OrderedMap[K, V]) []K {
	var out []K
	m.OrderedRange(func(k K, _ V) bool {
		out = append(out, k)
		return true
	})
	return out
}

func TestLoadStore(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[string, int]()
	_, ok := m.Load("a")
	require.False(t, ok)

	m.Store("a", 1)
	m.Store("b", 2)
	v, ok := m.Load("b")
	require.True(t, ok)
	require.Equal(t, 2, v)

	// Overwriting a key keeps its position.
	m.Store("a", 3)
	v, _ = m.Load("a")
	require.Equal(t, 3, v)
	require.Equal(t, []string{"a", "b"}, keys(m))
}

func TestOrderedRange(t *testing.T) {
	t.Parallel()

	// Pointer keys hash differently on every run, the iteration order must not.
	type key struct{ n int }
	want := make([]*key, 0, 100)
	m := orderedmap.New[*key, int]()
	for i := 99; i >= 0; i-- {
		k := &key{n: i}
		want = append(want, k)
		m.Store(k, i)
	}
	for i := 0; i < 5; i++ {
		require.Equal(t, want, keys(m))
	}
}

func TestOrderedRange_EarlyStop(t *testing.T) {
	t.Parallel()

	m := orderedmap.New[int, int]()
	for i := 0; i < 10; i++ {
		m.Store(i, i*i)
	}
	var seen []int
	m.OrderedRange(func(key int, value int) bool {
		seen = append(seen, value)
		return key < 2
	})
	require.Equal(t, []int{0, 1, 4}, seen)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
