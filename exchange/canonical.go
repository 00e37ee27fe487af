package exchange

import "strings"

// perpSuffixes are stripped before separator handling; at most one is
// removed (the first whole-suffix match). No entry is a suffix of another,
// so "BTC-PERPETUAL" can only match "-PERPETUAL", never "-PERP".
var perpSuffixes = []string{
	"-PERPETUAL", "_PERPETUAL",
	"-PERP", "_PERP",
	"-SWAP",
	".P",
}

// Normalize maps a venue-or-user symbol spelling to one canonical form:
// uppercase, whitespace-trimmed, perpetual-contract suffix stripped, known
// separators removed. It is idempotent: Normalize(Normalize(x)) ==
// Normalize(x).
func Normalize(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if s == "" {
		return ""
	}

	for _, suf := range perpSuffixes {
		if strings.HasSuffix(s, suf) {
			s = strings.TrimSuffix(s, suf)
			break
		}
	}

	if strings.HasSuffix(s, "USDTM") {
		s = strings.TrimSuffix(s, "USDTM") + "USDT"
	} else if strings.HasSuffix(s, "PERP") {
		s = strings.TrimSuffix(s, "PERP")
	}

	if parts := splitSeparators(s); len(parts) > 1 {
		s = strings.Join(parts, "")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitSeparators splits on any of -, _, / and drops empty segments.
func splitSeparators(s string) []string {
	var parts []string
	start := 0
	for i, r := range s {
		if r == '-' || r == '_' || r == '/' {
			if i > start {
				parts = append(parts, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		parts = append(parts, s[start:])
	}
	return parts
}
