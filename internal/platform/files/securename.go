package files

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureName: NFKD で分解して結合文字を落とし、ASCII の安全な文字だけ残す
func SecureName(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	s, _, err := transform.String(t, name)
	if err != nil {
		s = name
	}

	var b strings.Builder
	for _, r := range s {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	s = b.String()
	s = strings.NewReplacer("/", " ", "\\", " ").Replace(s)
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeChars.ReplaceAllString(s, "")
	return strings.Trim(s, "._")
}
