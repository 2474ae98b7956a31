package forum

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/jhillyerd/enmime"

	"github.com/epilys/sic-sub000/server"
)

var (
	errEmptyArticle = &nntpserver.NNTPError{Code: 441, Msg: "Received empty article"}
	errUnknownUser  = &nntpserver.NNTPError{Code: 441, Msg: "User not found"}
	errMalformed    = &nntpserver.NNTPError{Code: 441, Msg: "Malformed article"}
)

// Post hands an article from an authenticated session to the Receiver,
// adding a Message-ID header when the article has none.
func (b *Backend) Post(ctx context.Context, token string, article io.Reader) error {
	uid, ok := b.sessions.user(token)
	if token == "" || !ok {
		return nntpserver.ErrNotAuthenticated
	}
	raw, err := io.ReadAll(article)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return errEmptyArticle
	}
	if b.opts.Users == nil || b.opts.Receiver == nil {
		return nntpserver.ErrPostingNotPermitted
	}
	u, err := b.opts.Users.User(ctx, uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errUnknownUser
		}
		return err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		b.log.Info("unparseable article", "user", u.Username, "error", err)
		return errMalformed
	}
	msgid := strings.TrimSpace(env.GetHeader("Message-ID"))
	if msgid == "" {
		msgid = b.newMessageID()
		raw = append([]byte("Message-ID: "+msgid+"\r\n"), raw...)
	}

	p := &Posting{
		User:       *u,
		MessageID:  msgid,
		Subject:    env.GetHeader("Subject"),
		Newsgroups: env.GetHeader("Newsgroups"),
		References: env.GetHeader("References"),
		Text:       env.Text,
		HTML:       b.ugc.Sanitize(env.HTML),
		Raw:        raw,
		Received:   b.opts.Now().UTC(),
	}
	if err := b.opts.Receiver.Receive(ctx, p); err != nil {
		b.log.Warn("receiver rejected article", "msgid", msgid, "error", err)
		return nntpserver.ErrPostingFailed
	}
	b.log.Info("article received", "msgid", msgid, "user", u.Username)
	// The web app may already have stored it.
	b.cache.invalidate()
	return nil
}

func (b *Backend) newMessageID() string {
	id := uuid.New()
	return "<nntp-" + strings.ReplaceAll(id.String(), "-", "") + "@" + b.opts.Domain + ">"
}
