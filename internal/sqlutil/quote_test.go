package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "users", `"users"`},
		{"mixed case", "Production Orders", `"Production Orders"`},
		{"embedded quote", `we"ird`, `"we""ird"`},
		{"empty", "", `""`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteIdentifier(tt.input); got != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestQualifiedTable(t *testing.T) {
	if got := QualifiedTable("public", "users"); got != `"public"."users"` {
		t.Errorf("QualifiedTable = %q", got)
	}
	if got := QualifiedTable("", "users"); got != `"users"` {
		t.Errorf("QualifiedTable without schema = %q", got)
	}
}

func TestQuoteString(t *testing.T) {
	if got := QuoteString("it's"); got != "'it''s'" {
		t.Errorf("QuoteString = %q", got)
	}
}

func TestHasWildcard(t *testing.T) {
	if HasWildcard("widget") {
		t.Error("plain value should not report a wildcard")
	}
	if !HasWildcard("%widget") || !HasWildcard("w_dget") {
		t.Error("patterns with % or _ should report a wildcard")
	}
}
