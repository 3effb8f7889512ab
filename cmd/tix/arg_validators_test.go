package main

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestTicketArgValidators(t *testing.T) {
	tests := []struct {
		name    string
		check   cobra.PositionalArgs
		args    []string
		wantErr string
	}{
		{name: "single id", check: requireTicketID, args: []string{"t1"}},
		{name: "padded id", check: requireTicketID, args: []string{"  t1 "}},
		{name: "missing id", check: requireTicketID, args: nil, wantErr: "ticket id is required"},
		{name: "extra args", check: requireTicketID, args: []string{"t1", "t2"}, wantErr: "ticket id is required"},
		{name: "blank id", check: requireTicketID, args: []string{"   "}, wantErr: "ticket id is required"},
		{name: "path id", check: requireTicketID, args: []string{"t1/status"}, wantErr: `invalid ticket id "t1/status"`},
		{name: "inner space", check: requireTicketID, args: []string{"t 1"}, wantErr: `invalid ticket id "t 1"`},
		{name: "body words", check: requireTicketAndBody, args: []string{"t1", "still", "broken"}},
		{name: "body missing", check: requireTicketAndBody, args: []string{"t1"}, wantErr: "ticket id and message are required"},
		{name: "latest suggestion", check: requireTicketAndComment, args: []string{"t1"}},
		{name: "named suggestion", check: requireTicketAndComment, args: []string{"t1", "c2"}},
		{name: "bad comment id", check: requireTicketAndComment, args: []string{"t1", "c\x012"}, wantErr: "invalid comment id \"c\\x012\""},
		{name: "blank comment id", check: requireTicketAndComment, args: []string{"t1", " "}, wantErr: "comment id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.check(&cobra.Command{}, tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}
