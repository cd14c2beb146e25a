package identity

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"lowercase passthrough", "alice", "alice"},
		{"case folded", "Alice", "alice"},
		{"mixed case", "BoB42", "bob42"},
		{"underscore kept", "cool_user", "cool_user"},
		{"spaces collapse to dash", "john  doe", "john-doe"},
		{"dots collapse", "a.b.c", "a-b-c"},
		{"surrounding junk trimmed", "  --alice--  ", "alice"},
		{"path separators stripped", "../../etc/passwd", "etc-passwd"},
		{"backslashes stripped", `..\..\windows`, "windows"},
		{"dotdot alone becomes nothing", "..", ""},
		{"unicode collapses", "héllo", "h-llo"},
		{"consecutive junk collapses once", "a!@#$b", "a-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.want == "" {
				if err == nil {
					t.Fatalf("Normalize(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", ".", "..", "---", "!!!", "/", "//", "\\"} {
		if got, err := Normalize(raw); err == nil {
			t.Errorf("Normalize(%q) = %q, want error", raw, got)
		}
	}
}

func TestNormalizeLengthCap(t *testing.T) {
	got, err := Normalize(strings.Repeat("a", 100))
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(got) != MaxLen {
		t.Errorf("len = %d, want %d", len(got), MaxLen)
	}

	// A cut that would land on a dash must not leave a trailing dash.
	raw := strings.Repeat("a", MaxLen-1) + "." + "bbbb"
	got, err = Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if strings.HasSuffix(got, "-") {
		t.Errorf("Normalize(%q) = %q, trailing dash survived the cut", raw, got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"Alice", "john doe", "a.b.c", "  weird__NAME!! ", strings.Repeat("x.", 40)}
	for _, raw := range inputs {
		once, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", raw, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q -> %q -> %q", raw, once, twice)
		}
	}
}

func TestNormalizeNeverProducesPathMeta(t *testing.T) {
	inputs := []string{"a/b", "a\\b", "a..b", "..a", "a..", "./.a", "C:\\Users\\x"}
	for _, raw := range inputs {
		got, err := Normalize(raw)
		if err != nil {
			continue
		}
		if strings.ContainsAny(got, "/\\.") || strings.Contains(got, "..") {
			t.Errorf("Normalize(%q) = %q contains path metacharacters", raw, got)
		}
	}
}
