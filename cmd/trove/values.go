package main

import (
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/trove/clause"
)

// parseBody decodes a YAML or JSON object.
func parseBody(s string) (map[string]any, error) {
	var body map[string]any
	if err := yaml.Unmarshal([]byte(s), &body); err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}
	if body == nil {
		return nil, fmt.Errorf("parse body: expected an object")
	}
	return body, nil
}

// parseWhere parses "path op value". The value is read as a YAML scalar or
// sequence, so `age >= 30` compares numbers and `tag in [a, b]` a list.
func parseWhere(s string) (clause.Field, error) {
	path, rest := cutSpace(strings.TrimSpace(s))
	opText, raw := cutSpace(rest)
	if path == "" || opText == "" || raw == "" {
		return clause.Field{}, fmt.Errorf("invalid where %q: expected \"path op value\"", s)
	}

	op, err := clause.ParseOperator(opText)
	if err != nil {
		return clause.Field{}, err
	}

	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return clause.Field{}, fmt.Errorf("invalid where value %q: %w", raw, err)
	}
	if op.TakesList() {
		if _, ok := value.([]any); !ok {
			return clause.Field{}, fmt.Errorf("operator %s expects a list, got %q", op, raw)
		}
	}
	return clause.Where(path, clause.Condition{Operator: op, Value: value}), nil
}

// parseFilter combines --where-json and --where flags into one filter.
func parseFilter(wheres []string, whereJSON string) (clause.Filter, error) {
	filter := clause.Filter{}
	if whereJSON != "" {
		m, err := parseBody(whereJSON)
		if err != nil {
			return nil, err
		}
		filter = append(filter, clause.Parse(m)...)
	}
	for _, w := range wheres {
		field, err := parseWhere(w)
		if err != nil {
			return nil, err
		}
		filter = append(filter, field)
	}
	return filter, nil
}

func cutSpace(s string) (string, string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}
