package masking

import "strings"

// AccountNumber hides all but the last four characters of a destination
// account. Raw destination accounts must never leave the service unmasked.
func AccountNumber(account string) string {
	trimmed := strings.TrimSpace(account)
	if len(trimmed) <= 4 {
		return strings.Repeat("*", len(trimmed))
	}
	return strings.Repeat("*", len(trimmed)-4) + trimmed[len(trimmed)-4:]
}
