package nntp

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

type keyKind byte

const (
	keyNumber keyKind = iota + 1
	keyMessageID
)

// An ArticleKey addresses an article either by its sequence number in
// the current numbering or by message-id.
type ArticleKey struct {
	kind   keyKind
	number int64
	msgid  string
}

// NumberKey addresses an article by sequence number.
func NumberKey(n int64) ArticleKey {
	return ArticleKey{kind: keyNumber, number: n}
}

// MessageIDKey addresses an article by message-id. The id is trimmed
// and wrapped in angle brackets if it is not already.
func MessageIDKey(id string) ArticleKey {
	return ArticleKey{kind: keyMessageID, msgid: NormalizeMessageID(id)}
}

// ParseArticleKey interprets a command argument: anything that parses
// as an integer is a number, everything else is a message-id.
func ParseArticleKey(arg string) ArticleKey {
	arg = strings.TrimSpace(arg)
	if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return NumberKey(n)
	}
	return MessageIDKey(arg)
}

// IsNumber reports whether k addresses an article by number.
func (k ArticleKey) IsNumber() bool { return k.kind == keyNumber }

// IsMessageID reports whether k addresses an article by message-id.
func (k ArticleKey) IsMessageID() bool { return k.kind == keyMessageID }

// Number is the sequence number of a number key.
func (k ArticleKey) Number() int64 { return k.number }

// MessageID is the bracketed message-id of a message-id key.
func (k ArticleKey) MessageID() string { return k.msgid }

func (k ArticleKey) String() string {
	if k.kind == keyNumber {
		return strconv.FormatInt(k.number, 10)
	}
	return k.msgid
}

// NormalizeMessageID trims s and makes sure it is wrapped in angle
// brackets.
func NormalizeMessageID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if !strings.HasPrefix(s, "<") {
		s = "<" + s
	}
	if !strings.HasSuffix(s, ">") {
		s += ">"
	}
	return s
}

// ErrBadDate is returned by ParseDateTime for malformed arguments.
var ErrBadDate = errors.New("malformed date or time")

// ParseDateTime parses the date and time arguments of NEWNEWS and
// NEWGROUPS (yyyymmdd or yymmdd, hhmmss) as UTC. Two digit years are
// placed in the current century unless that would be in the future
// relative to now, in which case the previous century is used.
func ParseDateTime(date, tm string, now time.Time) (time.Time, error) {
	if !allDigits(tm) || len(tm) != 6 || !allDigits(date) {
		return time.Time{}, ErrBadDate
	}
	switch len(date) {
	case 8:
	case 6:
		yy, _ := strconv.Atoi(date[:2])
		century := now.UTC().Year() / 100 * 100
		if yy > now.UTC().Year()%100 {
			century -= 100
		}
		date = strconv.Itoa(century+yy) + date[2:]
	default:
		return time.Time{}, ErrBadDate
	}
	t, err := time.ParseInLocation("20060102150405", date+tm, time.UTC)
	if err != nil {
		return time.Time{}, ErrBadDate
	}
	return t, nil
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
