// Package normalize canonicalizes receipt fields extracted by the vision
// service into comparable forms. Everything here is pure: no clock, no IO.
package normalize

import (
	"strings"
	"time"
	"unicode"
)

// Reference strips whitespace, hyphens and dots and uppercases the rest.
// Returns "" when nothing usable remains.
func Reference(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsSpace(r), r == '-', r == '.':
			// dropped
		default:
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Phone strips every non-digit character. Returns "" when no digits remain.
func Phone(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// dateLayouts are the accepted receipt date formats. Day-first is the
// regional convention: 07/01/2026 is January 7th, never July 1st.
var dateLayouts = []string{
	"2/1/2006",
	"2006-01-02",
	"2-Jan-2006",
}

// Date parses a receipt date into an ISO calendar date (YYYY-MM-DD).
// Accepted inputs: DD/MM/YYYY, YYYY-MM-DD, DD-Mon-YYYY (three-letter month).
// Anything else returns ok=false.
func Date(text string) (string, bool) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", false
	}
	s = canonicalMonthCase(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// canonicalMonthCase rewrites "07-JAN-2026" / "07-jan-2026" to "07-Jan-2026"
// so the Mon layout matches regardless of source casing.
func canonicalMonthCase(s string) string {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return s
	}
	mid := parts[1]
	if len(mid) != 3 || !isAlpha(mid) {
		return s
	}
	parts[1] = strings.ToUpper(mid[:1]) + strings.ToLower(mid[1:])
	return strings.Join(parts, "-")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// Clock normalizes a printed time to HH:MM (24h kept as-is; a trailing
// AM/PM marker is applied). Returns "" when no time is recognizable.
func Clock(text string) string {
	s := strings.TrimSpace(strings.ToUpper(text))
	if s == "" {
		return ""
	}
	pm := strings.Contains(s, "PM")
	am := strings.Contains(s, "AM")
	s = strings.TrimSpace(strings.NewReplacer("AM", "", "PM", "", ".", ":").Replace(s))
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return ""
	}
	h, okH := atoi2(parts[0])
	m, okM := atoi2(parts[1])
	if !okH || !okM || h > 23 || m > 59 {
		return ""
	}
	if pm && h < 12 {
		h += 12
	}
	if am && h == 12 {
		h = 0
	}
	return pad2(h) + ":" + pad2(m)
}

func atoi2(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > 2 {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

func pad2(n int) string {
	if n < 10 {
		return string([]byte{'0', byte('0' + n)})
	}
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

// Amount parses the first numeric token of the text into minor units
// (cents), rounding half-up past two fraction digits. Currency symbols and
// thousands separators are ignored: "$1,250.5" -> 125050.
func Amount(text string) (int64, bool) {
	runes := []rune(text)
	i := 0
	for i < len(runes) && !unicode.IsDigit(runes[i]) {
		i++
	}
	if i == len(runes) {
		return 0, false
	}
	var intPart, fracPart strings.Builder
	inFrac := false
	for ; i < len(runes); i++ {
		r := runes[i]
		switch {
		case unicode.IsDigit(r):
			if inFrac {
				fracPart.WriteRune(r)
			} else {
				intPart.WriteRune(r)
			}
		case r == ',':
			// thousands separator
		case r == '.' && !inFrac:
			inFrac = true
		default:
			i = len(runes) // stop at first non-numeric rune
		}
	}
	var units int64
	for _, r := range intPart.String() {
		units = units*10 + int64(r-'0')
	}
	minor := units * 100
	frac := fracPart.String()
	switch {
	case len(frac) == 0:
	case len(frac) == 1:
		minor += int64(frac[0]-'0') * 10
	default:
		minor += int64(frac[0]-'0')*10 + int64(frac[1]-'0')
		if len(frac) > 2 && frac[2] >= '5' {
			minor++
		}
	}
	return minor, true
}
