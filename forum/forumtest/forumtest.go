// Package forumtest provides an in-memory forum.Source for tests.
package forumtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/epilys/sic-sub000/forum"
)

// Source is a forum.Source and forum.UserStore held in memory. The zero
// value is empty and ready to use.
type Source struct {
	mu       sync.Mutex
	stories  []forum.Story
	comments []forum.Comment
	users    map[string]user
	modified time.Time

	// Calls counts listing queries, to observe index rebuilds.
	Calls int
}

type user struct {
	forum.User
	password string
}

var _ forum.Source = (*Source)(nil)
var _ forum.UserStore = (*Source)(nil)

func (s *Source) touch(t time.Time) {
	if t.After(s.modified) {
		s.modified = t
	}
}

// AddStory adds a story, visible from now on.
func (s *Source) AddStory(st forum.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stories = append(s.stories, st)
	s.touch(st.Created)
}

// AddComment adds a comment, filling StoryTitle from its story.
func (s *Source) AddComment(c forum.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.stories {
		if st.ID == c.StoryID && c.StoryTitle == "" {
			c.StoryTitle = st.Title
		}
	}
	s.comments = append(s.comments, c)
	s.touch(c.Created)
}

// RemoveStory hides a story and, with it, its comments.
func (s *Source) RemoveStory(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, st := range s.stories {
		if st.ID == id {
			s.stories = append(s.stories[:i], s.stories[i+1:]...)
			break
		}
	}
	kept := s.comments[:0]
	for _, c := range s.comments {
		if c.StoryID != id {
			kept = append(kept, c)
		}
	}
	s.comments = kept
	s.touch(at)
}

// AddUser registers a user able to authenticate with password.
func (s *Source) AddUser(id int64, username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]user)
	}
	s.users[username] = user{forum.User{ID: id, Username: username}, password}
}

func (s *Source) Stories(ctx context.Context) ([]forum.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	rv := append([]forum.Story(nil), s.stories...)
	sort.SliceStable(rv, func(i, j int) bool { return rv[i].Created.Before(rv[j].Created) })
	return rv, nil
}

func (s *Source) Comments(ctx context.Context) ([]forum.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls++
	rv := append([]forum.Comment(nil), s.comments...)
	sort.SliceStable(rv, func(i, j int) bool { return rv[i].Created.Before(rv[j].Created) })
	return rv, nil
}

func (s *Source) Story(ctx context.Context, id int64) (*forum.Story, error) {
	return s.findStory(func(st *forum.Story) bool { return st.ID == id })
}

func (s *Source) StoryByMessageID(ctx context.Context, msgid string) (*forum.Story, error) {
	return s.findStory(func(st *forum.Story) bool { return st.MessageID != "" && st.MessageID == msgid })
}

func (s *Source) findStory(match func(*forum.Story) bool) (*forum.Story, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.stories {
		if match(&s.stories[i]) {
			st := s.stories[i]
			return &st, nil
		}
	}
	return nil, forum.ErrNotFound
}

func (s *Source) Comment(ctx context.Context, id int64) (*forum.Comment, error) {
	return s.findComment(func(c *forum.Comment) bool { return c.ID == id })
}

func (s *Source) CommentByMessageID(ctx context.Context, msgid string) (*forum.Comment, error) {
	return s.findComment(func(c *forum.Comment) bool { return c.MessageID != "" && c.MessageID == msgid })
}

func (s *Source) findComment(match func(*forum.Comment) bool) (*forum.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.comments {
		if match(&s.comments[i]) {
			c := s.comments[i]
			return &c, nil
		}
	}
	return nil, forum.ErrNotFound
}

func (s *Source) LastModified(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modified, nil
}

func (s *Source) CheckPassword(ctx context.Context, login, password string) (*forum.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[login]
	if !ok {
		return nil, forum.ErrNotFound
	}
	if u.password != password {
		return nil, forum.ErrBadPassword
	}
	rv := u.User
	return &rv, nil
}

func (s *Source) User(ctx context.Context, id int64) (*forum.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			rv := u.User
			return &rv, nil
		}
	}
	return nil, forum.ErrNotFound
}

// Receiver collects postings.
type Receiver struct {
	mu       sync.Mutex
	Postings []*forum.Posting
	Err      error
}

func (r *Receiver) Receive(ctx context.Context, p *forum.Posting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Postings = append(r.Postings, p)
	return nil
}
