package forum

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/epilys/sic-sub000/server"
)

// sessions maps AUTHINFO tokens to user ids. A user authenticating
// again gets their existing token back.
type sessions struct {
	mu      sync.Mutex
	byToken map[string]int64
	byUser  map[int64]string
}

func newSessions() *sessions {
	return &sessions{
		byToken: make(map[string]int64),
		byUser:  make(map[int64]string),
	}
}

func (s *sessions) issue(userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.byUser[userID]; ok {
		return tok, nil
	}
	for tries := 0; tries < 4; tries++ {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		tok := hex.EncodeToString(buf)
		if _, dup := s.byToken[tok]; dup {
			continue
		}
		s.byToken[tok] = userID
		s.byUser[userID] = tok
		return tok, nil
	}
	return "", errors.New("forum: could not generate a unique token")
}

func (s *sessions) user(token string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byToken[token]
	return id, ok
}

func (b *Backend) Authenticate(ctx context.Context, login, password string) (string, error) {
	if b.opts.Users == nil {
		return "", nntpserver.ErrAuthRejected
	}
	u, err := b.opts.Users.CheckPassword(ctx, login, password)
	if err != nil {
		if !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrBadPassword) {
			b.log.Warn("checking password", "user", login, "error", err)
		}
		return "", nntpserver.ErrAuthRejected
	}
	tok, err := b.sessions.issue(u.ID)
	if err != nil {
		b.log.Error("issuing session token", "user", login, "error", err)
		return "", nntpserver.ErrAuthRejected
	}
	return tok, nil
}
