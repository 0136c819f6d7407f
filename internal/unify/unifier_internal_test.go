package unify

import "testing"

func TestNormalizeEmail(t *testing.T) {
	// Plus tags survive: sam@ and sam+tag@ stay distinct identities.
	cases := map[string]string{
		"sam@acme.com":       "sam@acme.com",
		" SAM@ACME.COM ":     "sam@acme.com",
		"Sam+tag@Acme.com":   "sam+tag@acme.com",
		"\tlee@globex.com\n": "lee@globex.com",
		"":                   "",
		"   ":                "",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanName(t *testing.T) {
	// ø is a letter of its own, not a combining mark, so it stays.
	cases := map[string]string{
		"José":     "Jose",
		"  Müller": "Muller",
		"Søren":    "Søren",
		"Plain":    "Plain",
		"  ":       "",
	}
	for in, want := range cases {
		if got := cleanName(in); got != want {
			t.Errorf("cleanName(%q) = %q, want %q", in, got, want)
		}
	}
}
