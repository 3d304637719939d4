package dashboard

import "strings"

// PreviewLength is the number of leading secret characters left visible
const PreviewLength = 20

// MaskGlyph replaces each hidden character of a masked secret
const MaskGlyph = "•"

// Mask hides a secret for display. Secrets of at most PreviewLength characters
// are returned unchanged; longer ones keep their first PreviewLength characters
// and replace every remaining character with MaskGlyph, so the result has the
// same length as the secret.
func Mask(secret string) string {
	return MaskN(secret, PreviewLength)
}

// MaskN is Mask with a custom visible prefix length
func MaskN(secret string, visible int) string {
	runes := []rune(secret)
	if len(runes) <= visible {
		return secret
	}
	return string(runes[:visible]) + strings.Repeat(MaskGlyph, len(runes)-visible)
}

// Preview returns the first PreviewLength characters of a secret
func Preview(secret string) string {
	return PreviewN(secret, PreviewLength)
}

// PreviewN is Preview with a custom length
func PreviewN(secret string, n int) string {
	runes := []rune(secret)
	if len(runes) <= n {
		return secret
	}
	return string(runes[:n])
}
