// Package addrnorm implements the one address normalization rule shared by
// the sanctions index, compliance verifier, and provenance constraints:
// EVM addresses lowercase, everything else preserves case.
package addrnorm

import "strings"

// IsEVM reports whether addr has the 0x-prefixed, 40-hex-character shape
// common to Ethereum-family chains.
func IsEVM(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	for _, r := range addr[2:] {
		if !isHexDigit(r) {
			return false
		}
	}
	return true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Normalize lowercases EVM-format addresses and leaves all others
// case-preserved.
func Normalize(addr string) string {
	if IsEVM(addr) {
		return strings.ToLower(addr)
	}
	return addr
}
