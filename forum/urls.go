package forum

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

func storyURL(base string, id int64, title string) string {
	return strings.TrimSuffix(base, "/") + "/s/" + strconv.FormatInt(id, 10) + "/" + slugify(title) + "/"
}

func commentURL(base string, storyID int64, title string, id int64) string {
	return storyURL(base, storyID, title) + "#" + commentAnchor(id)
}

// commentAnchor spells the comment id with letters, 0 as a up to 9 as j.
func commentAnchor(id int64) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return 'a' + (r - '0')
		}
		return r
	}, strconv.FormatInt(id, 10))
}

// slugify NFKC-normalizes and lowercases s, keeps letters, digits, '_'
// and '-', and turns runs of spaces and dashes into a single dash.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(norm.NFKC.String(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			dash = true
		}
	}
	return strings.Trim(b.String(), "_")
}
