package domain

import "testing"

// FuzzParseAccountID checks that arbitrary input never produces an accepted
// identifier that violates the naming invariants, and never panics.
func FuzzParseAccountID(f *testing.F) {
	for _, seed := range []string{"alice.near", "", ".", "a..b", "a-b_c", "UPPER", "x", "x2"} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, raw string) {
		id, err := ParseAccountID(raw)
		if err != nil {
			return
		}
		s := id.String()
		if s != raw {
			t.Fatalf("accepted value %q does not round-trip (%q)", raw, s)
		}
		if len(s) < minNameLen || len(s) > maxNameLen {
			t.Fatalf("accepted value %q has invalid length %d", s, len(s))
		}
		for i := 0; i < len(s); i++ {
			c := s[i]
			valid := c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '.' || c == '-' || c == '_'
			if !valid {
				t.Fatalf("accepted value %q contains invalid byte %q", s, c)
			}
		}
	})
}
