// Package phone normalizes caller phone numbers to E.164.
package phone

import (
	"strings"

	"github.com/rotisserie/eris"
)

// NormalizeE164 converts common North American phone formats to E.164
// (+1XXXXXXXXXX). Punctuation, spacing, and an optional existing +1 or 1
// prefix are all tolerated. Numbers that already carry a non-NANP country
// code are passed through with their + prefix intact.
func NormalizeE164(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("phone: empty number")
	}

	hasPlus := strings.HasPrefix(raw, "+")

	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	case hasPlus && len(d) >= 8 && len(d) <= 15:
		return "+" + d, nil
	default:
		return "", eris.Errorf("phone: cannot normalize %q", raw)
	}
}

// SameNumber reports whether two raw numbers normalize to the same E.164
// value. Unparseable input never matches.
func SameNumber(a, b string) bool {
	na, err := NormalizeE164(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeE164(b)
	if err != nil {
		return false
	}
	return na == nb
}
