package forum

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/epilys/sic-sub000"
	"github.com/epilys/sic-sub000/internal/logging"
	"github.com/epilys/sic-sub000/server"
)

// Options configure a Backend. Zero values get the defaults noted.
type Options struct {
	// Domain of synthetic message-ids and sender addresses. sic.pm
	Domain string
	// BaseURL prefixes the URL header. https://{Domain}
	BaseURL string
	// GroupName is the single group holding every article. all
	GroupName        string
	GroupDescription string
	// LowWaterMark is the first article number. 1
	LowWaterMark int64
	// IndexTTL is how long a built index is used without asking the
	// Source whether anything changed. 0 asks on every refresh.
	IndexTTL time.Duration

	// Users authenticates AUTHINFO. Authentication always fails without it.
	Users UserStore
	// Receiver takes posted articles. Posting fails without it.
	Receiver Receiver

	Logger *slog.Logger
	Now    func() time.Time
}

// Backend serves a Source as one newsgroup.
type Backend struct {
	src      Source
	opts     Options
	log      *slog.Logger
	cache    *indexCache
	buildMu  sync.Mutex
	sessions *sessions
	ugc      *bluemonday.Policy
}

var _ nntpserver.Backend = (*Backend)(nil)

func NewBackend(src Source, opts Options) *Backend {
	if opts.Domain == "" {
		opts.Domain = "sic.pm"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://" + opts.Domain
	}
	if opts.GroupName == "" {
		opts.GroupName = "all"
	}
	if opts.GroupDescription == "" {
		opts.GroupDescription = opts.GroupName
	}
	if opts.LowWaterMark < 1 {
		opts.LowWaterMark = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Backend{
		src:      src,
		opts:     opts,
		log:      logging.Component(opts.Logger, "forum"),
		cache:    newIndexCache(opts.IndexTTL, opts.Now),
		sessions: newSessions(),
		ugc:      bluemonday.UGCPolicy(),
	}
}

// Refresh rebuilds the index unless it is younger than the TTL or the
// Source reports nothing changed since it was built.
func (b *Backend) Refresh(ctx context.Context) error {
	if b.cache.fresh() {
		return nil
	}
	b.buildMu.Lock()
	defer b.buildMu.Unlock()
	if b.cache.fresh() {
		return nil
	}

	lm, err := b.src.LastModified(ctx)
	if err != nil {
		b.log.Warn("reading last modification time", "error", err)
		lm = time.Time{}
	}
	if b.cache.current(lm) {
		b.cache.touch()
		return nil
	}

	start := time.Now()
	idx, err := b.build(ctx)
	if err != nil {
		return err
	}
	b.cache.store(idx, lm)
	b.log.Debug("index rebuilt", "articles", idx.Len(), "took", time.Since(start))
	return nil
}

// Invalidate makes the next Refresh rebuild the index.
func (b *Backend) Invalidate() {
	b.cache.invalidate()
}

func (b *Backend) build(ctx context.Context) (*Index, error) {
	stories, err := b.src.Stories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	comments, err := b.src.Comments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	se := make([]Entry, len(stories))
	for i := range stories {
		s := &stories[i]
		se[i] = Entry{MessageID: storyMessageID(s, b.opts.Domain), Created: s.Created, Kind: KindStory, ID: s.ID}
	}
	ce := make([]Entry, len(comments))
	for i := range comments {
		c := &comments[i]
		ce[i] = Entry{MessageID: commentMessageID(c, b.opts.Domain), Created: c.Created, Kind: KindComment, ID: c.ID}
	}
	return BuildIndex(b.opts.LowWaterMark, se, ce), nil
}

// index returns the current index, building it the first time.
func (b *Backend) index(ctx context.Context) (*Index, error) {
	if idx := b.cache.get(); idx != nil {
		return idx, nil
	}
	if err := b.Refresh(ctx); err != nil {
		return nil, err
	}
	return b.cache.get(), nil
}

func (b *Backend) group(idx *Index) *nntp.Group {
	posting := nntp.PostingNotPermitted
	if b.opts.Users != nil && b.opts.Receiver != nil {
		posting = nntp.PostingPermitted
	}
	return &nntp.Group{
		Name:        b.opts.GroupName,
		Description: b.opts.GroupDescription,
		Count:       idx.Len(),
		Low:         idx.Low(),
		High:        idx.High(),
		Posting:     posting,
		Created:     time.Unix(0, 0).UTC(),
	}
}

func (b *Backend) ListGroups(ctx context.Context) ([]*nntp.Group, error) {
	idx, err := b.index(ctx)
	if err != nil {
		return nil, err
	}
	return []*nntp.Group{b.group(idx)}, nil
}

func (b *Backend) GetGroup(ctx context.Context, name string) (*nntp.Group, error) {
	if name != b.opts.GroupName {
		return nil, nntpserver.ErrNoSuchGroup
	}
	idx, err := b.index(ctx)
	if err != nil {
		return nil, err
	}
	return b.group(idx), nil
}

func (b *Backend) GetArticleInfo(ctx context.Context, key nntp.ArticleKey) (*nntp.ArticleInfo, error) {
	a, err := b.GetArticle(ctx, key)
	if err != nil {
		return nil, err
	}
	return &a.ArticleInfo, nil
}

func (b *Backend) GetArticle(ctx context.Context, key nntp.ArticleKey) (*nntp.Article, error) {
	idx, err := b.index(ctx)
	if err != nil {
		return nil, b.notFound(key, err)
	}
	var kind Kind
	var id int64
	if key.IsNumber() {
		e, ok := idx.Entry(key.Number())
		if !ok {
			return nil, nntpserver.ErrInvalidArticleNumber
		}
		kind, id = e.Kind, e.ID
	} else if kind, id, err = b.resolve(ctx, idx, key.MessageID()); err != nil {
		return nil, b.notFound(key, err)
	}

	a, err := b.article(ctx, sourceRecords{b.src}, kind, id)
	if err != nil {
		return nil, b.notFound(key, err)
	}
	a.Number = idx.numberOf(kind, id)
	return a, nil
}

// resolve finds the record a message-id addresses: through the index,
// then as a synthetic id, then as a stored id.
func (b *Backend) resolve(ctx context.Context, idx *Index, msgid string) (Kind, int64, error) {
	if n, ok := idx.Number(msgid); ok {
		e, _ := idx.Entry(n)
		return e.Kind, e.ID, nil
	}
	if kind, id, ok := parseSyntheticMessageID(msgid); ok {
		var err error
		if kind == KindStory {
			_, err = b.src.Story(ctx, id)
		} else {
			_, err = b.src.Comment(ctx, id)
		}
		if err == nil {
			return kind, id, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return 0, 0, err
		}
	}
	s, err := b.src.StoryByMessageID(ctx, msgid)
	if err == nil {
		return KindStory, s.ID, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, 0, err
	}
	c, err := b.src.CommentByMessageID(ctx, msgid)
	if err != nil {
		return 0, 0, err
	}
	return KindComment, c.ID, nil
}

// notFound turns a lookup failure into the response for key, logging
// anything other than a missing record.
func (b *Backend) notFound(key nntp.ArticleKey, err error) error {
	if !errors.Is(err, ErrNotFound) {
		b.log.Warn("article lookup failed", "key", key.String(), "error", err)
	}
	if key.IsNumber() {
		return nntpserver.ErrInvalidArticleNumber
	}
	return nntpserver.ErrInvalidMessageID
}

func (b *Backend) GetArticles(ctx context.Context, group *nntp.Group, from, to int64) ([]*nntp.ArticleInfo, error) {
	if group.Name != b.opts.GroupName {
		return nil, nntpserver.ErrNoSuchGroup
	}
	idx, err := b.index(ctx)
	if err != nil {
		return nil, err
	}
	entries := idx.Range(from, to)
	if len(entries) == 0 {
		return nil, nil
	}
	snap, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	rv := make([]*nntp.ArticleInfo, 0, len(entries))
	for _, e := range entries {
		a, err := b.article(ctx, snap, e.Kind, e.ID)
		if err != nil {
			// Gone since the index was built.
			continue
		}
		a.Number = e.Number
		rv = append(rv, &a.ArticleInfo)
	}
	return rv, nil
}

// records looks up single stories and comments.
type records interface {
	story(ctx context.Context, id int64) (*Story, error)
	comment(ctx context.Context, id int64) (*Comment, error)
}

type sourceRecords struct{ src Source }

func (r sourceRecords) story(ctx context.Context, id int64) (*Story, error) {
	return r.src.Story(ctx, id)
}

func (r sourceRecords) comment(ctx context.Context, id int64) (*Comment, error) {
	return r.src.Comment(ctx, id)
}

// snapshot holds every record read by one listing query, for commands
// spanning many articles.
type snapshot struct {
	stories  map[int64]*Story
	comments map[int64]*Comment
}

func (b *Backend) snapshot(ctx context.Context) (*snapshot, error) {
	stories, err := b.src.Stories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing stories: %w", err)
	}
	comments, err := b.src.Comments(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	snap := &snapshot{
		stories:  make(map[int64]*Story, len(stories)),
		comments: make(map[int64]*Comment, len(comments)),
	}
	for i := range stories {
		snap.stories[stories[i].ID] = &stories[i]
	}
	for i := range comments {
		snap.comments[comments[i].ID] = &comments[i]
	}
	return snap, nil
}

func (s *snapshot) story(ctx context.Context, id int64) (*Story, error) {
	if st, ok := s.stories[id]; ok {
		return st, nil
	}
	return nil, ErrNotFound
}

func (s *snapshot) comment(ctx context.Context, id int64) (*Comment, error) {
	if c, ok := s.comments[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (b *Backend) article(ctx context.Context, r records, kind Kind, id int64) (*nntp.Article, error) {
	switch kind {
	case KindStory:
		s, err := r.story(ctx, id)
		if err != nil {
			return nil, err
		}
		return b.storyArticle(s), nil
	case KindComment:
		c, err := r.comment(ctx, id)
		if err != nil {
			return nil, err
		}
		return b.commentArticle(ctx, r, c)
	}
	return nil, ErrNotFound
}

func (b *Backend) storyArticle(s *Story) *nntp.Article {
	body := s.URL
	if body == "" {
		body = s.Description
	}
	return &nntp.Article{
		ArticleInfo: nntp.ArticleInfo{
			Subject:   s.Title,
			From:      b.address(s.Author),
			Date:      s.Created,
			MessageID: storyMessageID(s, b.opts.Domain),
			Bytes:     len(body),
			Lines:     1,
			Extra:     map[string][]string{"URL": {storyURL(b.opts.BaseURL, s.ID, s.Title)}},
		},
		Body: body,
	}
}

// commentArticle threads c under its parent comment, or under its story
// when it has no parent. Comments of stories that can't be found are
// not found either.
func (b *Backend) commentArticle(ctx context.Context, r records, c *Comment) (*nntp.Article, error) {
	story, err := r.story(ctx, c.StoryID)
	if err != nil {
		return nil, err
	}
	refs := storyMessageID(story, b.opts.Domain)
	if c.ParentID != 0 {
		parent, err := r.comment(ctx, c.ParentID)
		switch {
		case err == nil:
			refs = commentMessageID(parent, b.opts.Domain)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	title := c.StoryTitle
	if title == "" {
		title = story.Title
	}
	body := c.Text
	return &nntp.Article{
		ArticleInfo: nntp.ArticleInfo{
			Subject:    "Re: " + title,
			From:       b.address(c.Author),
			Date:       c.Created,
			MessageID:  commentMessageID(c, b.opts.Domain),
			References: refs,
			Bytes:      len(body),
			Lines:      1,
			Extra:      map[string][]string{"URL": {commentURL(b.opts.BaseURL, story.ID, story.Title, c.ID)}},
		},
		Body: body,
	}, nil
}

func (b *Backend) address(handle string) string {
	return handle + "@" + b.opts.Domain
}

