package auth

import (
	"testing"
)

func TestNewCode_Format(t *testing.T) {
	t.Parallel()

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := NewCode()
		if err != nil {
			t.Fatalf("NewCode error: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q is not six digits", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit %q", code, r)
			}
		}
		seen[code] = true
	}
	// Fifty draws from a million-value space colliding down to a handful
	// would point at a broken source.
	if len(seen) < 40 {
		t.Fatalf("suspiciously few distinct codes: %d", len(seen))
	}
}
