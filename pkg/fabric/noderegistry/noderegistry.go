/*
Package noderegistry implements a small conjunctive predicate evaluator
over node metadata, used to filter the admin service's node listings.
Predicates are ANDed together; the REST surface that would parse them
from query parameters isn't built here.
*/
package noderegistry

import (
	"strconv"
	"strings"

	"github.com/cuemby/gridfabric/pkg/fabric"
)

// Operator is a comparison an individual Predicate applies.
type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpGreaterThan  Operator = ">"
	OpLessThan     Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
)

// Predicate tests one metadata key against a value with Operator.
type Predicate struct {
	Key      string
	Operator Operator
	Value    string
}

// ParsePredicate parses a single "key<op>value" filter expression. Longer
// operators (">=", "<=", "!=") are checked before their single-character
// prefixes so "a>=b" isn't misread as "a>" + "=b".
func ParsePredicate(expr string) (Predicate, bool) {
	for _, op := range []Operator{OpGreaterEqual, OpLessEqual, OpNotEqual, OpEqual, OpGreaterThan, OpLessThan} {
		if idx := strings.Index(expr, string(op)); idx > 0 {
			return Predicate{Key: expr[:idx], Operator: op, Value: expr[idx+len(op):]}, true
		}
	}
	return Predicate{}, false
}

// Matches reports whether node's metadata satisfies p. Values compare
// numerically if both sides parse as float64, otherwise lexicographically.
func (p Predicate) Matches(node *fabric.Node) bool {
	actual, ok := node.Metadata[p.Key]
	if !ok {
		return false
	}

	if actualNum, err1 := strconv.ParseFloat(actual, 64); err1 == nil {
		if wantNum, err2 := strconv.ParseFloat(p.Value, 64); err2 == nil {
			switch p.Operator {
			case OpEqual:
				return actualNum == wantNum
			case OpNotEqual:
				return actualNum != wantNum
			case OpGreaterThan:
				return actualNum > wantNum
			case OpLessThan:
				return actualNum < wantNum
			case OpGreaterEqual:
				return actualNum >= wantNum
			case OpLessEqual:
				return actualNum <= wantNum
			}
		}
	}

	switch p.Operator {
	case OpEqual:
		return actual == p.Value
	case OpNotEqual:
		return actual != p.Value
	case OpGreaterThan:
		return actual > p.Value
	case OpLessThan:
		return actual < p.Value
	case OpGreaterEqual:
		return actual >= p.Value
	case OpLessEqual:
		return actual <= p.Value
	}
	return false
}

// Filter returns the subset of nodes matching every predicate (AND
// conjunction).
func Filter(nodes []*fabric.Node, predicates []Predicate) []*fabric.Node {
	if len(predicates) == 0 {
		return nodes
	}
	out := make([]*fabric.Node, 0, len(nodes))
	for _, n := range nodes {
		matched := true
		for _, p := range predicates {
			if !p.Matches(n) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, n)
		}
	}
	return out
}
