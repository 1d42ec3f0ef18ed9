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

// Package query models bulk queries as a typed predicate tree so tenant
// isolation can be injected structurally instead of by walking untyped
// nested maps.
package query

// Comparison is a leaf predicate operator.
type Comparison string

const (
	CmpEq  Comparison = "eq"
	CmpNeq Comparison = "neq"
	CmpIn  Comparison = "in"
	CmpLt  Comparison = "lt"
	CmpGt  Comparison = "gt"
)

// Logical combines child predicates.
type Logical string

const (
	LogicalAnd Logical = "and"
	LogicalOr  Logical = "or"
)

// Predicate is one node of the filter tree: either a leaf comparison
// (Field set) or a logical combination (Op set with Children).
type Predicate struct {
	// Leaf
	Field string     `json:"field,omitempty"`
	Cmp   Comparison `json:"cmp,omitempty"`
	Value any        `json:"value,omitempty"`

	// Branch
	Op       Logical      `json:"op,omitempty"`
	Children []*Predicate `json:"children,omitempty"`
}

// Eq builds an equality leaf.
func Eq(field string, value any) *Predicate {
	return &Predicate{Field: field, Cmp: CmpEq, Value: value}
}

// And combines predicates conjunctively, dropping nils.
func And(children ...*Predicate) *Predicate {
	kept := make([]*Predicate, 0, len(children))
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &Predicate{Op: LogicalAnd, Children: kept}
}

// Or combines predicates disjunctively, dropping nils.
func Or(children ...*Predicate) *Predicate {
	kept := make([]*Predicate, 0, len(children))
	for _, c := range children {
		if c != nil {
			kept = append(kept, c)
		}
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return &Predicate{Op: LogicalOr, Children: kept}
}

// IsLeaf reports whether the predicate is a comparison leaf.
func (p *Predicate) IsLeaf() bool {
	return p != nil && p.Field != ""
}

// Clone deep-copies the predicate tree.
func (p *Predicate) Clone() *Predicate {
	if p == nil {
		return nil
	}
	out := &Predicate{Field: p.Field, Cmp: p.Cmp, Value: p.Value, Op: p.Op}
	if p.Children != nil {
		out.Children = make([]*Predicate, len(p.Children))
		for i, c := range p.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Query describes one level of a bulk read: a filter over a collection plus
// any included relations, each with its own nested query.
type Query struct {
	Collection string            `json:"collection"`
	Where      *Predicate        `json:"where,omitempty"`
	Include    map[string]*Query `json:"include,omitempty"`
	OrderBy    string            `json:"order_by,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Offset     int               `json:"offset,omitempty"`
}

// Clone deep-copies the query and every nested level.
func (q *Query) Clone() *Query {
	if q == nil {
		return nil
	}
	out := &Query{
		Collection: q.Collection,
		Where:      q.Where.Clone(),
		OrderBy:    q.OrderBy,
		Limit:      q.Limit,
		Offset:     q.Offset,
	}
	if q.Include != nil {
		out.Include = make(map[string]*Query, len(q.Include))
		for name, sub := range q.Include {
			out.Include[name] = sub.Clone()
		}
	}
	return out
}
