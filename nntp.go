// Package nntp holds the value types shared by the NNTP server, its
// backends and the client.
package nntp

import (
	"fmt"
	"net/textproto"
	"sort"
	"strconv"
	"strings"
	"time"
)

type PostingStatus byte

const (
	Unknown             = PostingStatus(0)
	PostingPermitted    = PostingStatus('y')
	PostingNotPermitted = PostingStatus('n')
	PostingModerated    = PostingStatus('m')
)

func (ps PostingStatus) String() string {
	return fmt.Sprintf("%c", ps)
}

// A Group is a newsgroup as listed by LIST ACTIVE and selected by
// GROUP. An empty group has High == Low-1.
type Group struct {
	Name        string
	Description string
	Count       int64
	High        int64
	Low         int64
	Posting     PostingStatus
	Created     time.Time
}

// OverviewFormat is the field order of OVER lines.
var OverviewFormat = []string{
	"Subject:",
	"From:",
	"Date:",
	"Message-ID:",
	"References:",
	":bytes",
	":lines",
}

// ArticleInfo is the metadata of one article. Number is 0 when the
// article is not part of the current numbering.
type ArticleInfo struct {
	Number     int64
	Subject    string
	From       string
	Date       time.Time
	MessageID  string
	References string
	Bytes      int
	Lines      int
	// Extra carries extension headers such as URL. Keys are written
	// as given, not canonicalized.
	Extra textproto.MIMEHeader
}

// Article is an ArticleInfo with its body.
type Article struct {
	ArticleInfo
	Body string
}

// FormatDate renders t the way article Date headers carry it.
func FormatDate(t time.Time) string {
	return t.Format(time.RFC1123Z)
}

// HeaderLines returns the article headers in wire order, without the
// terminating blank line.
func (ai *ArticleInfo) HeaderLines() []string {
	rv := []string{
		"From: <" + headerValue(ai.From) + ">",
		"Subject: " + headerValue(ai.Subject),
		"Date: " + FormatDate(ai.Date),
		"Message-ID: " + ai.MessageID,
	}
	if ai.References != "" {
		rv = append(rv, "References: "+ai.References)
	}
	keys := make([]string, 0, len(ai.Extra))
	for k := range ai.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range ai.Extra[k] {
			rv = append(rv, k+": "+headerValue(v))
		}
	}
	return rv
}

// Overview returns the tab separated OVER line for the article, using
// n as the article number.
func (ai *ArticleInfo) Overview(n int64) string {
	return strings.Join([]string{
		strconv.FormatInt(n, 10),
		overviewValue(ai.Subject),
		overviewValue(ai.From),
		FormatDate(ai.Date),
		overviewValue(ai.MessageID),
		overviewValue(ai.References),
		strconv.Itoa(ai.Bytes),
		strconv.Itoa(ai.Lines),
	}, "\t")
}

// Field returns the value HDR reports for name, and whether the
// article has such a field at all.
func (ai *ArticleInfo) Field(name string) (string, bool) {
	switch strings.ToLower(strings.TrimSuffix(name, ":")) {
	case "subject":
		return overviewValue(ai.Subject), true
	case "from":
		return overviewValue(ai.From), true
	case "date":
		return FormatDate(ai.Date), true
	case "message-id":
		return ai.MessageID, true
	case "references":
		return overviewValue(ai.References), true
	case ":bytes", "bytes":
		return strconv.Itoa(ai.Bytes), true
	case ":lines", "lines":
		return strconv.Itoa(ai.Lines), true
	}
	for k, vs := range ai.Extra {
		if strings.EqualFold(k, strings.TrimSuffix(name, ":")) && len(vs) > 0 {
			return overviewValue(vs[0]), true
		}
	}
	return "", false
}

// Headers are single-line on the wire.
func headerValue(s string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(s)
}

// Overview fields additionally may not contain tabs.
func overviewValue(s string) string {
	return strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ", "\t", " ").Replace(s)
}
