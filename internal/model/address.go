package model

// addressLength is the fixed length of a ledger address in its textual
// base32 form.
const addressLength = 58

// ValidAddress reports whether s is shaped like a ledger address: exactly
// 58 characters from the base32 alphabet. It checks shape only, not the
// embedded checksum; the wallet and node validate that.
func ValidAddress(s string) bool {
	if len(s) != addressLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}
