// Package strutil holds rune-safe string helpers shared by the ai packages.
package strutil

// Runes cuts s to at most n runes. Returns "" when n <= 0.
func Runes(s string, n int) string {
	if s == "" || n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Preview is Runes with a trailing "..." when s was cut. Used for log fields.
func Preview(s string, n int) string {
	cut := Runes(s, n)
	if len(cut) < len(s) {
		return cut + "..."
	}
	return cut
}
