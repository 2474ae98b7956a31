package forum

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind tells which collection a record comes from.
type Kind uint8

const (
	KindStory Kind = iota + 1
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindStory:
		return "story"
	case KindComment:
		return "comment"
	}
	return "unknown"
}

// SyntheticMessageID is the message-id of a record that has none stored.
func SyntheticMessageID(kind Kind, id int64, domain string) string {
	return fmt.Sprintf("<%s-%d@%s>", kind, id, domain)
}

func storyMessageID(s *Story, domain string) string {
	if s.MessageID != "" {
		return s.MessageID
	}
	return SyntheticMessageID(KindStory, s.ID, domain)
}

func commentMessageID(c *Comment, domain string) string {
	if c.MessageID != "" {
		return c.MessageID
	}
	return SyntheticMessageID(KindComment, c.ID, domain)
}

var syntheticRE = regexp.MustCompile(`^<(story|comment)-(\d+)@[^>]+>$`)

// parseSyntheticMessageID recognises ids of the SyntheticMessageID
// form, whatever their domain.
func parseSyntheticMessageID(msgid string) (Kind, int64, bool) {
	m := syntheticRE.FindStringSubmatch(strings.TrimSpace(msgid))
	if m == nil {
		return 0, 0, false
	}
	id, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if m[1] == "story" {
		return KindStory, id, true
	}
	return KindComment, id, true
}
