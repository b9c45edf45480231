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
	"go.uber.org/symex/cfg"
	"go.uber.org/symex/constraint"
)

const (
	// NullPointerException is the exception thrown by the null-checking library methods.
	NullPointerException = "java.lang.NullPointerException"
	// NoSuchElementException is thrown when reading an empty optional.
	NoSuchElementException = "java.util.NoSuchElementException"
)

var (
	_null    = constraint.Of(constraint.Null)
	_notNull = constraint.Of(constraint.NotNull)
	_true    = constraint.Of(constraint.NotNull, constraint.True)
	_false   = constraint.Of(constraint.NotNull, constraint.False)
	_present = constraint.Of(constraint.NotNull, constraint.Present)
	_absent  = constraint.Of(constraint.NotNull, constraint.Absent)
)

func happy(result constraint.ByDomain, resultIndex int, params ...constraint.ByDomain) *MethodYield {
	return &MethodYield{Kind: Happy, Params: params, Result: result, ResultIndex: resultIndex}
}

func exceptional(exception string, params ...constraint.ByDomain) *MethodYield {
	return &MethodYield{Kind: Exceptional, Params: params, ResultIndex: NoResultIndex, Exception: exception}
}

func requireNonNull(method string, extra int) *Behavior {
	params := make([]constraint.ByDomain, 1+extra)
	params[0] = _notNull
	throwing := make([]constraint.ByDomain, 1+extra)
	throwing[0] = _null
	return &Behavior{
		Method:   method,
		Complete: true,
		Yields: []*MethodYield{
			happy(_notNull, 0, params...),
			exceptional(NullPointerException, throwing...),
		},
	}
}

func nullTest(method string, nullResult, notNullResult constraint.ByDomain) *Behavior {
	return &Behavior{
		Method:   method,
		Complete: true,
		Yields: []*MethodYield{
			happy(nullResult, NoResultIndex, _null),
			happy(notNullResult, NoResultIndex, _notNull),
		},
	}
}

// optional returns the behaviors of the java.util.Optional methods, under both their qualified
// and simple owner names.
func optional() []*Behavior {
	behaviors := func(owner string) []*Behavior {
		return []*Behavior{
			{
				Method: owner + "#empty()", Complete: true,
				Yields: []*MethodYield{happy(_absent, NoResultIndex)},
			},
			{
				Method: owner + "#of(Object)", Complete: true,
				Yields: []*MethodYield{
					happy(_present, NoResultIndex, _notNull),
					exceptional(NullPointerException, _null),
				},
			},
			{
				Method: owner + "#ofNullable(Object)", Complete: true,
				Yields: []*MethodYield{
					happy(_absent, NoResultIndex, _null),
					happy(_present, NoResultIndex, _notNull),
				},
			},
			{
				Method: owner + "#isPresent()", Complete: true, Receiver: true,
				Yields: []*MethodYield{
					happy(_true, NoResultIndex, _present),
					happy(_false, NoResultIndex, _absent),
				},
			},
			{
				Method: owner + "#isEmpty()", Complete: true, Receiver: true,
				Yields: []*MethodYield{
					happy(_false, NoResultIndex, _present),
					happy(_true, NoResultIndex, _absent),
				},
			},
			{
				Method: owner + "#get()", Complete: true, Receiver: true,
				Yields: []*MethodYield{
					happy(_notNull, NoResultIndex, _present),
					exceptional(NoSuchElementException, _absent),
				},
			},
			{
				Method: owner + "#orElse(Object)", Complete: true, Receiver: true,
				Yields: []*MethodYield{
					happy(_notNull, NoResultIndex, _present),
					happy(constraint.ByDomain{}, 1, _absent),
				},
			},
		}
	}
	return append(behaviors("java.util.Optional"), behaviors("Optional")...)
}

var _builtins = map[string]*Behavior{}

func init() {
	for _, b := range []*Behavior{
		requireNonNull("java.util.Objects#requireNonNull(Object)", 0),
		requireNonNull("java.util.Objects#requireNonNull(Object,String)", 1),
		requireNonNull("com.google.common.base.Preconditions#checkNotNull(Object)", 0),
		nullTest("java.util.Objects#isNull(Object)", _true, _false),
		nullTest("java.util.Objects#nonNull(Object)", _false, _true),
		nullTest("org.apache.commons.lang3.StringUtils#isEmpty(CharSequence)", _true, _notNull),
		nullTest("org.apache.commons.lang3.StringUtils#isNotEmpty(CharSequence)", _false, _notNull),
		nullTest("org.apache.commons.lang3.StringUtils#isBlank(CharSequence)", _true, _notNull),
		nullTest("org.apache.commons.lang3.StringUtils#isNotBlank(CharSequence)", _false, _notNull),
		nullTest("org.apache.commons.collections4.CollectionUtils#isEmpty(Collection)", _true, _notNull),
		nullTest("org.apache.commons.collections4.CollectionUtils#isNotEmpty(Collection)", _false, _notNull),
	} {
		_builtins[b.Method] = b
	}
	for _, b := range optional() {
		_builtins[b.Method] = b
	}
}

// Builtin returns the known behavior of a library method, valid under any signature.
func Builtin(method string) (*Behavior, bool) {
	b, ok := _builtins[method]
	return b, ok
}

// WorstCase is the behavior assumed for a call whose callee cannot be explored: it completes with
// an unconstrained result and teaches nothing about its arguments. It is incomplete so that it is
// never shared.
func WorstCase(method string, sig Signature) *Behavior {
	return &Behavior{
		Method:    method,
		Signature: sig,
		Yields:    []*MethodYield{happy(constraint.ByDomain{}, NoResultIndex)},
	}
}

// Unknown is the behavior of a method the program does not declare. Like WorstCase it assumes
// nothing, but it does not depend on the exploration in progress and can be shared.
func Unknown(method string, sig Signature) *Behavior {
	b := WorstCase(method, sig)
	b.Complete = true
	return b
}

// Contract is the behavior of a method without a body, built from its declaration: a NonNull or
// primitive result is non-null, a check-for-null result may be null or not, and each declared
// exception type may be thrown.
func Contract(m *cfg.Method, sig Signature) *Behavior {
	b := NewBehavior(m.ID, sig)
	ret := m.Returns
	switch {
	case ret.Void:
		b.Add(happy(constraint.ByDomain{}, NoResultIndex))
	case ret.Primitive || ret.Nullability == cfg.NonNull:
		b.Add(happy(_notNull, NoResultIndex))
	case ret.Nullability == cfg.CheckForNull:
		b.Add(happy(_null, NoResultIndex))
		b.Add(happy(_notNull, NoResultIndex))
	default:
		b.Add(happy(constraint.ByDomain{}, NoResultIndex))
	}
	for _, exc := range m.Throws {
		b.Add(exceptional(exc))
	}
	return b
}
