// Package forum exposes a forum's stories and comments as newsgroup
// articles. It implements nntpserver.Backend on top of a read-only
// Source of records.
package forum

//go:generate mockgen -source=forum.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Source or UserStore for a record that
// does not exist or is not visible.
var ErrNotFound = errors.New("forum: not found")

// ErrBadPassword is returned by UserStore.CheckPassword when the user
// exists but the password does not match.
var ErrBadPassword = errors.New("forum: bad password")

// A Story is a submitted link or text post. Stories are thread roots.
type Story struct {
	ID          int64
	Title       string
	URL         string
	Description string
	Author      string
	Created     time.Time
	// MessageID is the stored message-id, empty when the story was not
	// received by mail or news.
	MessageID string
}

// A Comment replies to a story, or to another comment of the same story
// when ParentID is not 0.
type Comment struct {
	ID       int64
	StoryID  int64
	ParentID int64
	Text     string
	Author   string
	Created  time.Time
	// Title of the story the comment belongs to.
	StoryTitle string
	MessageID  string
}

// Source is the read-only view of the forum's records.
//
// Single record lookups return ErrNotFound for records that don't
// exist. Listing methods return records ordered by Created ascending.
type Source interface {
	Stories(ctx context.Context) ([]Story, error)
	Comments(ctx context.Context) ([]Comment, error)
	Story(ctx context.Context, id int64) (*Story, error)
	StoryByMessageID(ctx context.Context, msgid string) (*Story, error)
	Comment(ctx context.Context, id int64) (*Comment, error)
	CommentByMessageID(ctx context.Context, msgid string) (*Comment, error)
	// LastModified is the most recent creation or modification time of
	// any record. The zero time means unknown.
	LastModified(ctx context.Context) (time.Time, error)
}

// A User is a forum account allowed to post.
type User struct {
	ID       int64
	Username string
}

// UserStore checks credentials.
type UserStore interface {
	// CheckPassword looks login up by username or email and verifies
	// password. It returns ErrNotFound or ErrBadPassword on failure.
	CheckPassword(ctx context.Context, login, password string) (*User, error)
	User(ctx context.Context, id int64) (*User, error)
}

// A Posting is an article received over POST, ready to be handed to
// the web application.
type Posting struct {
	User       User      `json:"user"`
	MessageID  string    `json:"message_id"`
	Subject    string    `json:"subject"`
	Newsgroups string    `json:"newsgroups,omitempty"`
	References string    `json:"references,omitempty"`
	Text       string    `json:"text"`
	// HTML is the sanitized text/html part, if the article had one.
	HTML       string    `json:"html,omitempty"`
	Raw        []byte    `json:"raw"`
	Received   time.Time `json:"received"`
}

// Receiver accepts postings.
type Receiver interface {
	Receive(ctx context.Context, p *Posting) error
}
