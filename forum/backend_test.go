package forum_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epilys/sic-sub000"
	"github.com/epilys/sic-sub000/forum"
	"github.com/epilys/sic-sub000/forum/forumtest"
	"github.com/epilys/sic-sub000/server"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return t0.Add(time.Duration(minutes) * time.Minute) }

// fixture: two stories and three comments, interleaved in time.
func fixture() *forumtest.Source {
	src := &forumtest.Source{}
	src.AddStory(forum.Story{ID: 1, Title: "First post", URL: "https://example.com/a", Author: "alice", Created: at(1)})
	src.AddComment(forum.Comment{ID: 10, StoryID: 1, Text: "nice", Author: "bob", Created: at(2)})
	src.AddStory(forum.Story{ID: 2, Title: "Ask sic", Description: "what do you read?", Author: "bob",
		Created: at(3), MessageID: "<real-2@mail.example>"})
	src.AddComment(forum.Comment{ID: 11, StoryID: 1, ParentID: 10, Text: "thanks", Author: "alice", Created: at(4)})
	src.AddComment(forum.Comment{ID: 12, StoryID: 2, Text: "books", Author: "carol", Created: at(5),
		MessageID: "<reply-12@mail.example>"})
	src.AddUser(7, "alice", "hunter2")
	return src
}

func newBackend(src *forumtest.Source, opts forum.Options) *forum.Backend {
	if opts.Users == nil {
		opts.Users = src
	}
	return forum.NewBackend(src, opts)
}

func TestGroup(t *testing.T) {
	ctx := context.Background()
	b := newBackend(fixture(), forum.Options{})
	require.NoError(t, b.Refresh(ctx))

	g, err := b.GetGroup(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, int64(5), g.Count)
	assert.Equal(t, int64(1), g.Low)
	assert.Equal(t, int64(5), g.High)
	assert.Equal(t, nntp.PostingNotPermitted, g.Posting)
	assert.True(t, g.Created.Equal(time.Unix(0, 0)))

	_, err = b.GetGroup(ctx, "sic.all")
	assert.ErrorIs(t, err, nntpserver.ErrNoSuchGroup)

	groups, err := b.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "all", groups[0].Name)
}

func TestStoryArticle(t *testing.T) {
	ctx := context.Background()
	b := newBackend(fixture(), forum.Options{})

	a, err := b.GetArticle(ctx, nntp.NumberKey(1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Number)
	assert.Equal(t, "First post", a.Subject)
	assert.Equal(t, "alice@sic.pm", a.From)
	assert.Equal(t, "<story-1@sic.pm>", a.MessageID)
	assert.Empty(t, a.References)
	assert.Equal(t, "https://example.com/a", a.Body)
	assert.Equal(t, len("https://example.com/a"), a.Bytes)
	assert.Equal(t, 1, a.Lines)
	assert.Equal(t, []string{"https://sic.pm/s/1/first-post/"}, a.Extra["URL"])

	// Stories without a URL carry their description.
	a, err = b.GetArticle(ctx, nntp.NumberKey(3))
	require.NoError(t, err)
	assert.Equal(t, "<real-2@mail.example>", a.MessageID)
	assert.Equal(t, "what do you read?", a.Body)
	assert.Equal(t, len("what do you read?"), a.Bytes)
}

func TestArticleTextIsVerbatim(t *testing.T) {
	ctx := context.Background()
	src := &forumtest.Source{}
	src.AddStory(forum.Story{ID: 1, Title: "Why Vec<T> beats List<T>", Description: "use <stdio.h> & a<b",
		Author: "alice", Created: at(1)})
	src.AddComment(forum.Comment{ID: 2, StoryID: 1, Text: "try `Option<String>` or <https://go.dev>",
		Author: "bob", Created: at(2)})
	b := newBackend(src, forum.Options{})

	s, err := b.GetArticle(ctx, nntp.NumberKey(1))
	require.NoError(t, err)
	assert.Equal(t, "Why Vec<T> beats List<T>", s.Subject)
	assert.Equal(t, "use <stdio.h> & a<b", s.Body)
	assert.Equal(t, len("use <stdio.h> & a<b"), s.Bytes)

	c, err := b.GetArticle(ctx, nntp.NumberKey(2))
	require.NoError(t, err)
	assert.Equal(t, "Re: Why Vec<T> beats List<T>", c.Subject)
	assert.Equal(t, "try `Option<String>` or <https://go.dev>", c.Body)
	assert.Equal(t, len("try `Option<String>` or <https://go.dev>"), c.Bytes)
}

func TestCommentThreading(t *testing.T) {
	ctx := context.Background()
	b := newBackend(fixture(), forum.Options{Domain: "news.test", BaseURL: "https://web.test"})

	top, err := b.GetArticleInfo(ctx, nntp.MessageIDKey("<comment-10@news.test>"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), top.Number)
	assert.Equal(t, "Re: First post", top.Subject)
	assert.Equal(t, "bob@news.test", top.From)
	assert.Equal(t, "<story-1@news.test>", top.References)
	assert.Equal(t, []string{"https://web.test/s/1/first-post/#ba"}, top.Extra["URL"])

	nested, err := b.GetArticleInfo(ctx, nntp.NumberKey(4))
	require.NoError(t, err)
	assert.Equal(t, "<comment-11@news.test>", nested.MessageID)
	assert.Equal(t, "<comment-10@news.test>", nested.References)

	// A comment on a story with a stored message-id refers to it.
	c, err := b.GetArticle(ctx, nntp.MessageIDKey("reply-12@mail.example"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), c.Number)
	assert.Equal(t, "<real-2@mail.example>", c.References)
	assert.Equal(t, "Re: Ask sic", c.Subject)
	assert.Equal(t, "books", c.Body)
	assert.Equal(t, 5, c.Bytes)
}

func TestSyntheticIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := fixture()
	b := newBackend(src, forum.Options{})

	info, err := b.GetArticleInfo(ctx, nntp.NumberKey(1))
	require.NoError(t, err)
	require.Equal(t, "<story-1@sic.pm>", info.MessageID)

	back, err := b.GetArticleInfo(ctx, nntp.MessageIDKey(info.MessageID))
	require.NoError(t, err)
	assert.Equal(t, info, back)

	// Stories with a stored id still answer to their synthetic one.
	a, err := b.GetArticleInfo(ctx, nntp.MessageIDKey("<story-2@sic.pm>"))
	require.NoError(t, err)
	assert.Equal(t, "<real-2@mail.example>", a.MessageID)
	assert.Equal(t, int64(3), a.Number)

	_, err = b.GetArticleInfo(ctx, nntp.MessageIDKey("<story-99@sic.pm>"))
	assert.ErrorIs(t, err, nntpserver.ErrInvalidMessageID)
	_, err = b.GetArticleInfo(ctx, nntp.MessageIDKey("<nobody@nowhere>"))
	assert.ErrorIs(t, err, nntpserver.ErrInvalidMessageID)
	_, err = b.GetArticleInfo(ctx, nntp.NumberKey(6))
	assert.ErrorIs(t, err, nntpserver.ErrInvalidArticleNumber)
}

func TestResolutionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	b := newBackend(fixture(), forum.Options{})
	for _, key := range []nntp.ArticleKey{
		nntp.NumberKey(4),
		nntp.MessageIDKey("<comment-11@sic.pm>"),
		nntp.MessageIDKey("<real-2@mail.example>"),
	} {
		first, err := b.GetArticle(ctx, key)
		require.NoError(t, err)
		second, err := b.GetArticle(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, first, second, key.String())
	}
}

func TestGetArticles(t *testing.T) {
	ctx := context.Background()
	src := fixture()
	b := newBackend(src, forum.Options{})
	g, err := b.GetGroup(ctx, "all")
	require.NoError(t, err)

	infos, err := b.GetArticles(ctx, g, 2, 4)
	require.NoError(t, err)
	var ids []string
	for _, ai := range infos {
		ids = append(ids, ai.MessageID)
	}
	assert.Equal(t, []string{"<comment-10@sic.pm>", "<real-2@mail.example>", "<comment-11@sic.pm>"}, ids)
	assert.Equal(t, int64(2), infos[0].Number)

	all, err := b.GetArticles(ctx, g, 0, 1<<62)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = b.GetArticles(ctx, &nntp.Group{Name: "other"}, 1, 5)
	assert.ErrorIs(t, err, nntpserver.ErrNoSuchGroup)
}

func TestRemovedRecordsDisappear(t *testing.T) {
	ctx := context.Background()
	src := fixture()
	b := newBackend(src, forum.Options{})
	require.NoError(t, b.Refresh(ctx))

	src.RemoveStory(2, at(10))
	// Numbers from the old build no longer resolve to anything.
	_, err := b.GetArticle(ctx, nntp.NumberKey(3))
	assert.ErrorIs(t, err, nntpserver.ErrInvalidArticleNumber)
	_, err = b.GetArticle(ctx, nntp.MessageIDKey("<reply-12@mail.example>"))
	assert.ErrorIs(t, err, nntpserver.ErrInvalidMessageID)

	require.NoError(t, b.Refresh(ctx))
	g, err := b.GetGroup(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, int64(3), g.Count)
}

func TestRefreshSkipsUnchangedSource(t *testing.T) {
	ctx := context.Background()
	src := fixture()
	b := newBackend(src, forum.Options{})

	require.NoError(t, b.Refresh(ctx))
	calls := src.Calls
	require.NoError(t, b.Refresh(ctx))
	require.NoError(t, b.Refresh(ctx))
	assert.Equal(t, calls, src.Calls, "unchanged source rebuilt")

	src.AddStory(forum.Story{ID: 3, Title: "Later", URL: "https://example.com/c", Author: "carol", Created: at(20)})
	require.NoError(t, b.Refresh(ctx))
	assert.Greater(t, src.Calls, calls)
	g, err := b.GetGroup(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, int64(6), g.High)
}

func TestRefreshHonoursTTL(t *testing.T) {
	ctx := context.Background()
	src := fixture()
	now := t0
	b := newBackend(src, forum.Options{IndexTTL: time.Minute, Now: func() time.Time { return now }})

	require.NoError(t, b.Refresh(ctx))
	src.AddStory(forum.Story{ID: 3, Title: "Later", URL: "https://example.com/c", Author: "carol", Created: at(20)})
	require.NoError(t, b.Refresh(ctx))
	g, _ := b.GetGroup(ctx, "all")
	assert.Equal(t, int64(5), g.Count, "rebuilt within ttl")

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Refresh(ctx))
	g, _ = b.GetGroup(ctx, "all")
	assert.Equal(t, int64(6), g.Count)

	src.AddStory(forum.Story{ID: 4, Title: "Even later", URL: "https://example.com/d", Author: "carol", Created: at(30)})
	b.Invalidate()
	require.NoError(t, b.Refresh(ctx))
	g, _ = b.GetGroup(ctx, "all")
	assert.Equal(t, int64(7), g.Count)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	b := newBackend(fixture(), forum.Options{})

	tok, err := b.Authenticate(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Len(t, tok, 64)

	again, err := b.Authenticate(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, tok, again)

	_, err = b.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, nntpserver.ErrAuthRejected)
	_, err = b.Authenticate(ctx, "mallory", "hunter2")
	assert.ErrorIs(t, err, nntpserver.ErrAuthRejected)

	noUsers := forum.NewBackend(fixture(), forum.Options{})
	_, err = noUsers.Authenticate(ctx, "alice", "hunter2")
	assert.ErrorIs(t, err, nntpserver.ErrAuthRejected)
}

const article = "From: alice <alice@sic.pm>\r\n" +
	"Newsgroups: all\r\n" +
	"Subject: Re: First post\r\n" +
	"References: <story-1@sic.pm>\r\n" +
	"\r\n" +
	"Agreed.\r\n"

func TestPost(t *testing.T) {
	ctx := context.Background()
	src := fixture()
	recv := &forumtest.Receiver{}
	b := newBackend(src, forum.Options{Receiver: recv, Now: func() time.Time { return t0 }})

	err := b.Post(ctx, "", strings.NewReader(article))
	assert.ErrorIs(t, err, nntpserver.ErrNotAuthenticated)
	err = b.Post(ctx, "forged", strings.NewReader(article))
	assert.ErrorIs(t, err, nntpserver.ErrNotAuthenticated)

	tok, err := b.Authenticate(ctx, "alice", "hunter2")
	require.NoError(t, err)

	err = b.Post(ctx, tok, strings.NewReader(" \r\n\r\n"))
	var nerr *nntpserver.NNTPError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, 441, nerr.Code)

	require.NoError(t, b.Post(ctx, tok, strings.NewReader(article)))
	require.Len(t, recv.Postings, 1)
	p := recv.Postings[0]
	assert.Equal(t, "alice", p.User.Username)
	assert.Equal(t, int64(7), p.User.ID)
	assert.Equal(t, "Re: First post", p.Subject)
	assert.Equal(t, "<story-1@sic.pm>", p.References)
	assert.Equal(t, "all", p.Newsgroups)
	assert.Equal(t, "Agreed.", strings.TrimSpace(p.Text))
	assert.Regexp(t, `^<nntp-[0-9a-f]{32}@sic\.pm>$`, p.MessageID)
	assert.True(t, strings.HasPrefix(string(p.Raw), "Message-ID: "+p.MessageID+"\r\nFrom: alice"))
	assert.Equal(t, t0, p.Received)

	withID := "Message-ID: <mine@client>\r\n" + article
	require.NoError(t, b.Post(ctx, tok, strings.NewReader(withID)))
	assert.Equal(t, "<mine@client>", recv.Postings[1].MessageID)
	assert.Equal(t, withID, string(recv.Postings[1].Raw))

	recv.Err = errors.New("broker down")
	assert.ErrorIs(t, b.Post(ctx, tok, strings.NewReader(article)), nntpserver.ErrPostingFailed)
}

func TestPostSanitizesHTML(t *testing.T) {
	ctx := context.Background()
	recv := &forumtest.Receiver{}
	b := newBackend(fixture(), forum.Options{Receiver: recv})
	tok, err := b.Authenticate(ctx, "alice", "hunter2")
	require.NoError(t, err)

	msg := "From: alice@sic.pm\r\n" +
		"Newsgroups: all\r\n" +
		"Subject: markup\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/alternative; boundary=\"b\"\r\n" +
		"\r\n" +
		"--b\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"a<b holds\r\n" +
		"--b\r\n" +
		"Content-Type: text/html; charset=utf-8\r\n" +
		"\r\n" +
		"<p>hi</p><script>alert(1)</script>\r\n" +
		"--b--\r\n"
	require.NoError(t, b.Post(ctx, tok, strings.NewReader(msg)))
	require.Len(t, recv.Postings, 1)
	p := recv.Postings[0]
	assert.Equal(t, "a<b holds", strings.TrimSpace(p.Text))
	assert.Contains(t, p.HTML, "<p>hi</p>")
	assert.NotContains(t, p.HTML, "script")
}

func TestPostWithoutReceiver(t *testing.T) {
	ctx := context.Background()
	b := newBackend(fixture(), forum.Options{})
	tok, err := b.Authenticate(ctx, "alice", "hunter2")
	require.NoError(t, err)
	assert.ErrorIs(t, b.Post(ctx, tok, strings.NewReader(article)), nntpserver.ErrPostingNotPermitted)

	g, err := b.GetGroup(ctx, "all")
	require.NoError(t, err)
	assert.Equal(t, nntp.PostingNotPermitted, g.Posting)
}
