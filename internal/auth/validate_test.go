package auth

import "testing"

func TestValidateCredentials(t *testing.T) {
	cases := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"ok", "ana@cuenca.org", "rio-limpio-2024", nil},
		{"missing email", "", "rio-limpio-2024", errEmailRequired},
		{"missing password", "ana@cuenca.org", "", errEmailRequired},
		{"bad email", "ana-at-cuenca", "rio-limpio-2024", errEmailInvalid},
		{"display name form", "Ana <ana@cuenca.org>", "rio-limpio-2024", errEmailInvalid},
		{"short password", "ana@cuenca.org", "corta", errPasswordShort},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := validateCredentials(tc.email, tc.password); got != tc.want {
				t.Errorf("validateCredentials(%q, %q) = %v, want %v", tc.email, tc.password, got, tc.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := normalizeEmail("  Ana.Perez@Cuenca.ORG "); got != "ana.perez@cuenca.org" {
		t.Errorf("unexpected normalized email %q", got)
	}
}

func TestValidateProfileCountsRunes(t *testing.T) {
	// 120 multi-byte runes is within the limit even though it is >120 bytes
	name := ""
	for i := 0; i < 120; i++ {
		name += "ñ"
	}
	if err := validateProfile(name, ""); err != nil {
		t.Errorf("expected 120 runes to pass, got %v", err)
	}
	if err := validateProfile(name+"a", ""); err != errNameTooLong {
		t.Errorf("expected errNameTooLong, got %v", err)
	}
}
