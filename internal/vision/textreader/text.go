package textreader

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

var usernameToken = regexp.MustCompile(`[A-Za-z0-9._]+`)

// CleanUsername keeps the longest run of username characters in raw OCR
// output. Ties go to the earliest token.
func CleanUsername(raw string) string {
	best := ""
	for _, tok := range usernameToken.FindAllString(raw, -1) {
		if len(tok) > len(best) {
			best = tok
		}
	}
	return best
}

// Normalize lower-cases s, drops whitespace and folds the glyphs OCR confuses
// most often: l, 1 and | become "1"; o and 0 become "0". Case never changes
// the result, and i stays distinct from l. The result is only for
// comparison; never display or log it.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			continue
		case r == 'l' || r == '1' || r == '|':
			b.WriteByte('1')
		case r == 'o' || r == '0':
			b.WriteByte('0')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity scores two strings in [0, 1] as 1 - edits/max(len) over their
// normalized forms. Equal normalized strings score 1.
func Similarity(a, b string) float64 {
	na, nb := []rune(Normalize(a)), []rune(Normalize(b))
	if string(na) == string(nb) {
		return 1
	}
	longest := max(len(na), len(nb))

	m := difflib.NewMatcher(runeStrings(na), runeStrings(nb))
	edits := 0
	for _, op := range m.GetOpCodes() {
		if op.Tag == 'e' {
			continue
		}
		edits += max(op.I2-op.I1, op.J2-op.J1)
	}
	return max(0, 1-float64(edits)/float64(longest))
}

func runeStrings(rs []rune) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

// ContainsPhrase reports whether text contains any of phrases, ignoring case
// and runs of whitespace.
func ContainsPhrase(text string, phrases []string) (string, bool) {
	hay := strings.ToLower(strings.Join(strings.Fields(text), " "))
	for _, p := range phrases {
		needle := strings.ToLower(strings.Join(strings.Fields(p), " "))
		if needle != "" && strings.Contains(hay, needle) {
			return p, true
		}
	}
	return "", false
}
