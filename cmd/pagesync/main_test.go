package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(path, []byte(`{}`), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		args      []string
		wantStdin bool
		expectErr bool
	}{
		{name: "no args reads stdin", args: nil, wantStdin: true},
		{name: "dash reads stdin", args: []string{"-"}, wantStdin: true},
		{name: "file path opens file", args: []string{path}},
		{name: "missing file fails", args: []string{filepath.Join(dir, "nope.json")}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, closeFn, err := openPayload(tt.args)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer closeFn()
			if tt.wantStdin != (r == os.Stdin) {
				t.Fatalf("stdin mismatch: got %v want %v", r == os.Stdin, tt.wantStdin)
			}
		})
	}
}
