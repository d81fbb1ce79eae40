package stream

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Matcher is one --until condition evaluated against each job event:
// "path=value", "path=~regex", or "path exists". Paths are dot
// separated field names into the event JSON.
type Matcher struct {
	Path     string
	Operator string
	Value    string
}

// ParseMatcher parses a single --until expression.
func ParseMatcher(input string) (Matcher, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Matcher{}, fmt.Errorf("matcher cannot be empty")
	}

	if idx := strings.IndexRune(trimmed, '='); idx >= 0 {
		path := strings.TrimSpace(trimmed[:idx])
		value := strings.TrimSpace(trimmed[idx+1:])
		if path == "" {
			return Matcher{}, fmt.Errorf("missing path before '='")
		}
		if value == "" {
			return Matcher{}, fmt.Errorf("missing value after '='")
		}
		if pattern, ok := strings.CutPrefix(value, "~"); ok {
			pattern = strings.TrimSpace(pattern)
			if pattern == "" {
				return Matcher{}, fmt.Errorf("missing regex pattern after '=~'")
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return Matcher{}, fmt.Errorf("invalid regex pattern: %w", err)
			}
			return Matcher{Path: path, Operator: "regex", Value: pattern}, nil
		}
		return Matcher{Path: path, Operator: "eq", Value: value}, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 2 || fields[1] != "exists" {
		return Matcher{}, fmt.Errorf("expected 'path=value', 'path=~regex', or 'path exists'")
	}
	return Matcher{Path: fields[0], Operator: "exists"}, nil
}

// ParseMatchers parses every expression, reporting the first invalid
// one.
func ParseMatchers(inputs []string) ([]Matcher, error) {
	matchers := make([]Matcher, 0, len(inputs))
	for _, input := range inputs {
		m, err := ParseMatcher(input)
		if err != nil {
			return nil, fmt.Errorf("invalid matcher %q: %w", input, err)
		}
		matchers = append(matchers, m)
	}
	return matchers, nil
}

// Matches reports whether the matcher holds for the JSON document in
// data. Unparseable documents and missing paths never match.
func (m Matcher) Matches(data []byte) bool {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return false
	}

	value, ok := valueAtPath(payload, m.Path)
	switch m.Operator {
	case "exists":
		return ok
	case "eq":
		return ok && stringify(value) == m.Value
	case "regex":
		if !ok {
			return false
		}
		re, err := regexp.Compile(m.Value)
		if err != nil {
			return false
		}
		return re.MatchString(stringify(value))
	default:
		return false
	}
}

func anyMatches(data []byte, matchers []Matcher) bool {
	for _, m := range matchers {
		if m.Matches(data) {
			return true
		}
	}
	return false
}

func valueAtPath(payload any, path string) (any, bool) {
	current := payload
	for _, part := range strings.Split(path, ".") {
		if part == "" {
			return nil, false
		}
		switch node := current.(type) {
		case map[string]any:
			child, ok := node[part]
			if !ok {
				return nil, false
			}
			current = child
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
}
