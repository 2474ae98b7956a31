// Package couchstore reads forum records mirrored into a CouchDB
// database.
//
// Stories and comments are stored one document each, with ids
// "story-<id>" and "comment-<id>". The design document installed by
// EnsureViews indexes them by creation time, message-id and
// modification time.
package couchstore

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-couch"
	"github.com/pkg/errors"

	"github.com/epilys/sic-sub000/forum"
)

const (
	storiesView   = "_design/forum/_view/stories"
	commentsView  = "_design/forum/_view/comments"
	msgidView     = "_design/forum/_view/by_message_id"
	modifiedView  = "_design/forum/_view/modified"
	storyPrefix   = "story-"
	commentPrefix = "comment-"
)

// database is the part of couch.Database the store uses.
type database interface {
	Query(view string, options map[string]interface{}, results interface{}) error
	Retrieve(id string, d interface{}) error
}

// Store is a forum.Source.
type Store struct {
	db     database
	dburl  string
	client *http.Client
}

var _ forum.Source = (*Store)(nil)

// Open connects to the database at url, e.g. http://localhost:5984/sic.
func Open(url string) (*Store, error) {
	db, err := couch.Connect(url)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to couch at %s", url)
	}
	return &Store{db: db, dburl: db.DBURL(), client: http.DefaultClient}, nil
}

// StoryDoc is the document of a story.
type StoryDoc struct {
	DocID       string    `json:"_id"`
	Rev         string    `json:"_rev,omitempty"`
	Type        string    `json:"type"`
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"last_modified"`
	MessageID   string    `json:"message_id,omitempty"`
	Active      bool      `json:"active"`
}

func (d *StoryDoc) story() forum.Story {
	return forum.Story{
		ID:          d.ID,
		Title:       d.Title,
		URL:         d.URL,
		Description: d.Description,
		Author:      d.Author,
		Created:     d.Created.UTC(),
		MessageID:   d.MessageID,
	}
}

// CommentDoc is the document of a comment.
type CommentDoc struct {
	DocID      string    `json:"_id"`
	Rev        string    `json:"_rev,omitempty"`
	Type       string    `json:"type"`
	ID         int64     `json:"id"`
	StoryID    int64     `json:"story_id"`
	ParentID   int64     `json:"parent_id,omitempty"`
	Text       string    `json:"text"`
	Author     string    `json:"author"`
	Created    time.Time `json:"created"`
	Modified   time.Time `json:"last_modified"`
	MessageID  string    `json:"message_id,omitempty"`
	StoryTitle string    `json:"story_title,omitempty"`
	Deleted    bool      `json:"deleted"`
}

func (d *CommentDoc) comment() forum.Comment {
	return forum.Comment{
		ID:         d.ID,
		StoryID:    d.StoryID,
		ParentID:   d.ParentID,
		Text:       d.Text,
		Author:     d.Author,
		Created:    d.Created.UTC(),
		StoryTitle: d.StoryTitle,
		MessageID:  d.MessageID,
	}
}

// NewStoryDoc builds the document mirroring s.
func NewStoryDoc(s forum.Story) StoryDoc {
	return StoryDoc{
		DocID:       StoryDocID(s.ID),
		Type:        "story",
		ID:          s.ID,
		Title:       s.Title,
		URL:         s.URL,
		Description: s.Description,
		Author:      s.Author,
		Created:     s.Created.UTC(),
		MessageID:   s.MessageID,
		Active:      true,
	}
}

// NewCommentDoc builds the document mirroring c.
func NewCommentDoc(c forum.Comment) CommentDoc {
	return CommentDoc{
		DocID:      CommentDocID(c.ID),
		Type:       "comment",
		ID:         c.ID,
		StoryID:    c.StoryID,
		ParentID:   c.ParentID,
		Text:       c.Text,
		Author:     c.Author,
		Created:    c.Created.UTC(),
		MessageID:  c.MessageID,
		StoryTitle: c.StoryTitle,
	}
}

func StoryDocID(id int64) string {
	return storyPrefix + strconv.FormatInt(id, 10)
}

func CommentDocID(id int64) string {
	return commentPrefix + strconv.FormatInt(id, 10)
}

type storyResults struct {
	Rows []struct {
		Key interface{} `json:"key"`
		Doc StoryDoc    `json:"doc"`
	} `json:"rows"`
}

type commentResults struct {
	Rows []struct {
		Key interface{} `json:"key"`
		Doc CommentDoc  `json:"doc"`
	} `json:"rows"`
}

type msgidResults struct {
	Rows []struct {
		ID  string `json:"id"`
		Key string `json:"key"`
	} `json:"rows"`
}

type modifiedResults struct {
	Rows []struct {
		Key time.Time `json:"key"`
	} `json:"rows"`
}

func (s *Store) Stories(ctx context.Context) ([]forum.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := storyResults{}
	err := s.db.Query(storiesView, map[string]interface{}{
		"include_docs": true,
	}, &results)
	if err != nil {
		return nil, errors.Wrap(err, "querying stories")
	}
	rv := make([]forum.Story, 0, len(results.Rows))
	for _, r := range results.Rows {
		rv = append(rv, r.Doc.story())
	}
	sort.SliceStable(rv, func(i, j int) bool {
		return rv[i].Created.Before(rv[j].Created)
	})
	return rv, nil
}

func (s *Store) Comments(ctx context.Context) ([]forum.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := commentResults{}
	err := s.db.Query(commentsView, map[string]interface{}{
		"include_docs": true,
	}, &results)
	if err != nil {
		return nil, errors.Wrap(err, "querying comments")
	}
	rv := make([]forum.Comment, 0, len(results.Rows))
	for _, r := range results.Rows {
		rv = append(rv, r.Doc.comment())
	}
	sort.SliceStable(rv, func(i, j int) bool {
		return rv[i].Created.Before(rv[j].Created)
	})
	return rv, nil
}

// CouchDB reports a missing document as an error mentioning the 404.
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "404") || strings.Contains(msg, "not_found")
}

func (s *Store) retrieveStory(docid string) (*forum.Story, error) {
	var doc StoryDoc
	if err := s.db.Retrieve(docid, &doc); err != nil {
		if isNotFound(err) {
			return nil, forum.ErrNotFound
		}
		return nil, errors.Wrapf(err, "retrieving %s", docid)
	}
	if doc.Type != "story" || !doc.Active {
		return nil, forum.ErrNotFound
	}
	st := doc.story()
	return &st, nil
}

func (s *Store) retrieveComment(docid string) (*forum.Comment, error) {
	var doc CommentDoc
	if err := s.db.Retrieve(docid, &doc); err != nil {
		if isNotFound(err) {
			return nil, forum.ErrNotFound
		}
		return nil, errors.Wrapf(err, "retrieving %s", docid)
	}
	if doc.Type != "comment" || doc.Deleted {
		return nil, forum.ErrNotFound
	}
	c := doc.comment()
	return &c, nil
}

func (s *Store) Story(ctx context.Context, id int64) (*forum.Story, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.retrieveStory(StoryDocID(id))
}

func (s *Store) Comment(ctx context.Context, id int64) (*forum.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.retrieveComment(CommentDocID(id))
}

// byMessageID returns the id of the document storing msgid.
func (s *Store) byMessageID(ctx context.Context, msgid string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	results := msgidResults{}
	err := s.db.Query(msgidView, map[string]interface{}{
		"key": msgid,
	}, &results)
	if err != nil {
		return "", errors.Wrapf(err, "querying message-id %s", msgid)
	}
	if len(results.Rows) == 0 {
		return "", forum.ErrNotFound
	}
	return results.Rows[0].ID, nil
}

func (s *Store) StoryByMessageID(ctx context.Context, msgid string) (*forum.Story, error) {
	docid, err := s.byMessageID(ctx, msgid)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(docid, storyPrefix) {
		return nil, forum.ErrNotFound
	}
	return s.retrieveStory(docid)
}

func (s *Store) CommentByMessageID(ctx context.Context, msgid string) (*forum.Comment, error) {
	docid, err := s.byMessageID(ctx, msgid)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(docid, commentPrefix) {
		return nil, forum.ErrNotFound
	}
	return s.retrieveComment(docid)
}

func (s *Store) LastModified(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	results := modifiedResults{}
	err := s.db.Query(modifiedView, map[string]interface{}{
		"descending": true,
		"limit":      1,
	}, &results)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "querying modification time")
	}
	if len(results.Rows) == 0 {
		return time.Time{}, nil
	}
	return results.Rows[0].Key.UTC(), nil
}
