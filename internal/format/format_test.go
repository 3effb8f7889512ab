package format

import (
	"bytes"
	"strings"
	"testing"

	"tix/internal/models"
)

func TestYAMLUsesJSONFieldNames(t *testing.T) {
	ticket := models.Ticket{
		ID:        "t1",
		Title:     "Printer jam",
		Status:    models.StatusTodo,
		CreatedBy: models.UserRef{ID: "u1"},
	}

	var buf bytes.Buffer
	if err := (YAMLFormatter{}).Write(&buf, ticket); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := buf.String()
	for _, want := range []string{"_id: t1", "title: Printer jam", "status: TODO", "createdAt: null"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in yaml output:\n%s", want, got)
		}
	}
}

func TestJSONIndent(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONFormatter{Indent: true}).Write(&buf, map[string]int{"a": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.String() != "{\n  \"a\": 1\n}\n" {
		t.Fatalf("unexpected json output %q", buf.String())
	}
}

func TestForName(t *testing.T) {
	tests := []struct {
		name    string
		want    Formatter
		wantErr bool
	}{
		{name: "json", want: JSONFormatter{Indent: true}},
		{name: " YAML ", want: YAMLFormatter{}},
		{name: "yml", want: YAMLFormatter{}},
		{name: "xml", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ForName(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tt.name, err)
		}
		if got != tt.want {
			t.Fatalf("expected %T for %q, got %T", tt.want, tt.name, got)
		}
	}
}
