// Copyright 2026 The LexCore Authors
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

package authz

import (
	"fmt"
	"strings"
)

// Operator is a condition operator. Unknown operators fail closed.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpNotEquals  Operator = "not_equals"
	OpIn         Operator = "in"
	OpNotIn      Operator = "not_in"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
)

// Condition narrows when a permission applies: a field of the access
// context compared against a value. Conditions on one permission are a
// conjunction; all must pass.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// operatorFns is the condition interpreter dispatch table. Extending the
// operator set is a table entry, not an evaluator change.
var operatorFns = map[Operator]func(actual string, expected any) bool{
	OpEquals:     func(actual string, expected any) bool { return actual == asString(expected) },
	OpNotEquals:  func(actual string, expected any) bool { return actual != asString(expected) },
	OpIn:         func(actual string, expected any) bool { return memberOf(actual, expected) },
	OpNotIn:      func(actual string, expected any) bool { return !memberOf(actual, expected) },
	OpContains:   func(actual string, expected any) bool { return strings.Contains(actual, asString(expected)) },
	OpStartsWith: func(actual string, expected any) bool { return strings.HasPrefix(actual, asString(expected)) },
	OpEndsWith:   func(actual string, expected any) bool { return strings.HasSuffix(actual, asString(expected)) },
}

// Evaluate applies the condition against the context. Unknown operators
// evaluate to false.
func (c *Condition) Evaluate(actx *AccessContext) bool {
	fn, ok := operatorFns[c.Operator]
	if !ok {
		return false
	}
	return fn(actx.Field(c.Field), c.Value)
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// memberOf handles the list shapes JSON decoding produces for in/not_in
// values. A scalar value degrades to a single-element list.
func memberOf(actual string, expected any) bool {
	switch list := expected.(type) {
	case []string:
		for _, v := range list {
			if actual == v {
				return true
			}
		}
	case []any:
		for _, v := range list {
			if actual == asString(v) {
				return true
			}
		}
	default:
		return actual == asString(expected)
	}
	return false
}
