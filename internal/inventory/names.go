package inventory

import "strings"

// NormalizeName reduces a name to lower-case letters and digits, so
// "Red Onion", "red-onion" and "RedOnion " compare equal.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
