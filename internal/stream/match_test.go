package stream

import (
	"testing"
)

func TestParseMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Matcher
		wantErr bool
	}{
		{input: "status=completed", want: Matcher{Path: "status", Operator: "eq", Value: "completed"}},
		{input: " status = completed ", want: Matcher{Path: "status", Operator: "eq", Value: "completed"}},
		{input: "status=~comp.*", want: Matcher{Path: "status", Operator: "regex", Value: "comp.*"}},
		{input: "delivery_id exists", want: Matcher{Path: "delivery_id", Operator: "exists"}},
		{input: "", wantErr: true},
		{input: "=value", wantErr: true},
		{input: "path=", wantErr: true},
		{input: "path=~", wantErr: true},
		{input: "path=~[", wantErr: true},
		{input: "just-a-path", wantErr: true},
		{input: "a b c", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseMatcher(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("ParseMatcher(%q) succeeded, want error", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMatcher(%q): %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ParseMatcher(%q) = %+v, want %+v", tc.input, got, tc.want)
			}
		})
	}
}

func TestMatcherMatches(t *testing.T) {
	t.Parallel()

	event := []byte(`{
		"type": "job",
		"status": "completed",
		"delivery_id": "d-1",
		"event": "issue_comment",
		"repository": "acme/widgets"
	}`)

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "eq match", input: "status=completed", want: true},
		{name: "eq mismatch", input: "status=failed", want: false},
		{name: "regex match", input: "repository=~^acme/", want: true},
		{name: "regex mismatch", input: "repository=~^other/", want: false},
		{name: "exists match", input: "delivery_id exists", want: true},
		{name: "exists mismatch", input: "error exists", want: false},
		{name: "missing path eq", input: "nope=1", want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := ParseMatcher(tc.input)
			if err != nil {
				t.Fatalf("ParseMatcher: %v", err)
			}
			if got := m.Matches(event); got != tc.want {
				t.Errorf("Matches(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestMatcherNestedAndArrayPaths(t *testing.T) {
	t.Parallel()

	doc := []byte(`{"a": {"b": [ {"c": 5}, {"c": true} ]}}`)

	m, err := ParseMatcher("a.b.0.c=5")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Matches(doc) {
		t.Error("numeric leaf did not match")
	}

	m, err = ParseMatcher("a.b.1.c=true")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Matches(doc) {
		t.Error("boolean leaf did not match")
	}

	m, err = ParseMatcher("a.b.9.c exists")
	if err != nil {
		t.Fatal(err)
	}
	if m.Matches(doc) {
		t.Error("out-of-range index matched")
	}
}

func TestMatcherInvalidJSON(t *testing.T) {
	t.Parallel()

	m, err := ParseMatcher("status exists")
	if err != nil {
		t.Fatal(err)
	}
	if m.Matches([]byte("{bad")) {
		t.Error("matcher fired on invalid JSON")
	}
}
