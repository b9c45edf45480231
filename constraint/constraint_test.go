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

package constraint

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestConstraint(t *testing.T) {
	t.Parallel()

	require.Equal(t, Nullness, Null.Domain())
	require.Equal(t, Zero, NonZero.Domain())
	require.Equal(t, Presence, Absent.Domain())
	require.Equal(t, Present, Absent.Inverse())
	require.Equal(t, NotNull, Null.Inverse())
	require.Equal(t, Closed, Open.Inverse())
	require.True(t, Null.Contradicts(NotNull))
	require.False(t, Null.Contradicts(Null))
	require.False(t, Null.Contradicts(True))
	require.False(t, None.Contradicts(Null))
	require.Equal(t, "non-null", NotNull.Text())
	require.Equal(t, "NOT_NULL", NotNull.String())
	require.Equal(t, True, Bool(true))
	require.Equal(t, False, Bool(false))

	c, err := Parse("non_zero")
	require.NoError(t, err)
	require.Equal(t, NonZero, c)
	_, err = Parse("NONE")
	require.Error(t, err)
	require.Len(t, Domains(), int(numDomains))
}

func TestByDomain(t *testing.T) {
	t.Parallel()

	var empty ByDomain
	require.True(t, empty.IsEmpty())
	require.Equal(t, "{}", empty.String())

	b := Of(NotNull, True)
	require.False(t, b.IsEmpty())
	require.Equal(t, 2, b.Len())
	require.True(t, b.Has(NotNull))
	require.False(t, b.Has(Null))
	got, ok := b.Get(Boolean)
	require.True(t, ok)
	require.Equal(t, True, got)
	_, ok = b.Get(Zero)
	require.False(t, ok)
	require.Equal(t, "{NOT_NULL, TRUE}", b.String())

	// Values are immutable: With and Without return copies.
	c := b.With(False)
	require.True(t, b.Has(True))
	require.True(t, c.Has(False))
	require.Equal(t, Of(NotNull), b.Without(Boolean))
	require.Equal(t, Of(NotNull, True), Of(NotNull, True))

	require.True(t, b.Conflicts(c))
	require.False(t, b.Conflicts(Of(NotNull, IsZero)))

	require.Equal(t, []Constraint{False}, c.Learned(b))
	require.Equal(t, []Constraint{NotNull, True}, b.Learned(empty))
	require.Equal(t, Of(True), b.Filter(Boolean, Zero))
	require.Equal(t, []Constraint{NotNull, True}, b.Slice())
}

func TestByDomain_Intersect(t *testing.T) {
	t.Parallel()

	a := Of(NotNull, True, NonZero)
	b := Of(NotNull, False, Open)
	// Agreeing domains are kept, disagreeing and one-sided ones become unconstrained.
	require.Equal(t, Of(NotNull), a.Intersect(b))
	require.Equal(t, Of(NotNull), b.Intersect(a))
	require.True(t, a.Intersect(ByDomain{}).IsEmpty())
	require.Equal(t, a, a.Intersect(a))
}

func TestByDomain_Binary(t *testing.T) {
	t.Parallel()

	b := Of(Null, Closed)
	data, err := b.MarshalBinary()
	require.NoError(t, err)

	var decoded ByDomain
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, b, decoded)

	require.Error(t, decoded.UnmarshalBinary([]byte{1}))
	// A boolean constraint in the nullness slot is rejected.
	require.Error(t, decoded.UnmarshalBinary([]byte{byte(True), 0, 0, 0, 0}))
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
