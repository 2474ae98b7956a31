package nntpserver

import (
	"strings"

	"github.com/gobwas/glob"
)

// A wildmat is an RFC 3977 group name pattern: comma separated
// elements of literal text, "*" and "?", each optionally negated with
// "!". The rightmost matching element decides.
type wildmat struct {
	elems []wildmatElem
}

type wildmatElem struct {
	negated bool
	pattern glob.Glob
}

func compileWildmat(s string) (*wildmat, error) {
	w := &wildmat{}
	for _, e := range strings.Split(s, ",") {
		elem := wildmatElem{}
		if strings.HasPrefix(e, "!") {
			elem.negated = true
			e = e[1:]
		}
		g, err := glob.Compile(quoteGlob(e))
		if err != nil {
			return nil, err
		}
		elem.pattern = g
		w.elems = append(w.elems, elem)
	}
	return w, nil
}

// Match reports whether name matches. A nil wildmat matches everything.
func (w *wildmat) Match(name string) bool {
	if w == nil {
		return true
	}
	for i := len(w.elems) - 1; i >= 0; i-- {
		if w.elems[i].pattern.Match(name) {
			return !w.elems[i].negated
		}
	}
	return false
}

// Only "*" and "?" are special in a wildmat.
func quoteGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '[', ']', '{', '}', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
