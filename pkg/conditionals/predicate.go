package conditionals

import (
	"fmt"
	"strconv"
	"strings"
)

// VarPrefix is how unlock expressions refer to game variables.
const VarPrefix = "game_vars."

// Operator compares a game variable against a literal.
type Operator string

const (
	OpEqual    Operator = "=="
	OpNotEqual Operator = "!="
)

// Clause is a single comparison inside a predicate.
type Clause struct {
	Key     string
	Op      Operator
	Literal Value
}

// Predicate is a parsed unlock condition. Clauses are joined with AND.
// A predicate with Constant set ignores its clauses.
type Predicate struct {
	Source   string
	Constant *bool
	Clauses  []Clause
}

// ParsePredicate parses an unlock condition such as
//
//	game_vars.ally == 'kain' && game_vars.chapter != 1
//
// The empty string and "true" always pass; "false" never does.
func ParsePredicate(src string) (Predicate, error) {
	p := Predicate{Source: src}
	trimmed := strings.TrimSpace(src)

	switch trimmed {
	case "", "true":
		t := true
		p.Constant = &t
		return p, nil
	case "false":
		f := false
		p.Constant = &f
		return p, nil
	}

	for _, part := range splitOutsideQuotes(trimmed, "&&") {
		clause, err := parseClause(strings.TrimSpace(part))
		if err != nil {
			return Predicate{}, fmt.Errorf("invalid unlock condition %q: %w", src, err)
		}
		p.Clauses = append(p.Clauses, clause)
	}
	return p, nil
}

func parseClause(s string) (Clause, error) {
	if s == "" {
		return Clause{}, fmt.Errorf("empty clause")
	}

	op, idx := OpEqual, indexOutsideQuotes(s, string(OpEqual))
	if ne := indexOutsideQuotes(s, string(OpNotEqual)); ne >= 0 && (idx < 0 || ne < idx) {
		op, idx = OpNotEqual, ne
	}
	if idx < 0 {
		return Clause{}, fmt.Errorf("clause %q has no == or != operator", s)
	}

	left := strings.TrimSpace(s[:idx])
	right := strings.TrimSpace(s[idx+len(op):])

	if !strings.HasPrefix(left, VarPrefix) {
		return Clause{}, fmt.Errorf("clause %q must compare a %s variable", s, VarPrefix)
	}
	key := strings.TrimPrefix(left, VarPrefix)
	if !isIdentifier(key) {
		return Clause{}, fmt.Errorf("invalid variable name %q", key)
	}

	lit, err := parseLiteral(right)
	if err != nil {
		return Clause{}, err
	}
	return Clause{Key: key, Op: op, Literal: lit}, nil
}

// indexOutsideQuotes is strings.Index that skips quoted string literals.
func indexOutsideQuotes(s, sub string) int {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case strings.HasPrefix(s[i:], sub):
			return i
		}
	}
	return -1
}

func splitOutsideQuotes(s, sep string) []string {
	var parts []string
	for {
		i := indexOutsideQuotes(s, sep)
		if i < 0 {
			return append(parts, s)
		}
		parts = append(parts, s[:i])
		s = s[i+len(sep):]
	}
}

func parseLiteral(s string) (Value, error) {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return String(s[1 : len(s)-1]), nil
		}
	}
	switch s {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i), nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f), nil
	}
	return Value{}, fmt.Errorf("invalid literal %q", s)
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

// Evaluate checks the predicate against the given variables.
// A variable that is not set never equals a literal.
func (p Predicate) Evaluate(vars Vars) bool {
	if p.Constant != nil {
		return *p.Constant
	}
	if len(p.Clauses) == 0 {
		return false
	}
	for _, c := range p.Clauses {
		actual, exists := vars[c.Key]
		equal := exists && actual.Equal(c.Literal)
		switch c.Op {
		case OpEqual:
			if !equal {
				return false
			}
		case OpNotEqual:
			if equal {
				return false
			}
		}
	}
	return true
}

// IsUnlocked parses and evaluates an unlock condition in one step.
// Conditions that fail to parse keep the location locked.
func IsUnlocked(condition string, vars Vars) bool {
	p, err := ParsePredicate(condition)
	if err != nil {
		return false
	}
	return p.Evaluate(vars)
}
