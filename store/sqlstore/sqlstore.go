// Package sqlstore reads stories, comments and users from the web
// application's SQL database. Both sqlite and postgres are supported.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/epilys/sic-sub000/forum"
)

//go:embed schema.sql
var schemaSQL string

// Store is a forum.Source and forum.UserStore.
type Store struct {
	db *sqlx.DB
}

var _ forum.Source = (*Store)(nil)
var _ forum.UserStore = (*Store)(nil)

// Open connects to driver ("sqlite" or "postgres") at dsn.
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s database", driver)
	}
	if driver == "sqlite" {
		// One writer at a time, and :memory: databases are per connection.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to %s database", driver)
	}
	return New(db), nil
}

// New wraps an open database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables read by the store if they don't exist.
// Production databases are owned by the web application.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return errors.Wrap(err, "running schema")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB is the underlying database handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

const authorExpr = `COALESCE(u.username, CAST(u.id AS TEXT))`

const storySelect = `SELECT s.id, s.title, s.url, s.description, ` + authorExpr + ` AS author,
		s.created, s.message_id
	FROM sic_story s JOIN sic_user u ON u.id = s.user_id
	WHERE s.active = TRUE`

const commentSelect = `SELECT c.id, c.story_id, c.parent_id, c.text, ` + authorExpr + ` AS author,
		c.created, c.message_id, s.title AS story_title
	FROM sic_comment c
	JOIN sic_story s ON s.id = c.story_id
	JOIN sic_user u ON u.id = c.user_id
	WHERE s.active = TRUE AND c.deleted = FALSE`

type storyRow struct {
	ID          int64          `db:"id"`
	Title       string         `db:"title"`
	URL         sql.NullString `db:"url"`
	Description sql.NullString `db:"description"`
	Author      string         `db:"author"`
	Created     time.Time      `db:"created"`
	MessageID   sql.NullString `db:"message_id"`
}

func (r *storyRow) toStory() forum.Story {
	return forum.Story{
		ID:          r.ID,
		Title:       r.Title,
		URL:         r.URL.String,
		Description: r.Description.String,
		Author:      r.Author,
		Created:     r.Created.UTC(),
		MessageID:   r.MessageID.String,
	}
}

type commentRow struct {
	ID         int64          `db:"id"`
	StoryID    int64          `db:"story_id"`
	ParentID   sql.NullInt64  `db:"parent_id"`
	Text       sql.NullString `db:"text"`
	Author     string         `db:"author"`
	Created    time.Time      `db:"created"`
	MessageID  sql.NullString `db:"message_id"`
	StoryTitle string         `db:"story_title"`
}

func (r *commentRow) toComment() forum.Comment {
	return forum.Comment{
		ID:         r.ID,
		StoryID:    r.StoryID,
		ParentID:   r.ParentID.Int64,
		Text:       r.Text.String,
		Author:     r.Author,
		Created:    r.Created.UTC(),
		StoryTitle: r.StoryTitle,
		MessageID:  r.MessageID.String,
	}
}

func (s *Store) Stories(ctx context.Context) ([]forum.Story, error) {
	var rows []storyRow
	if err := s.db.SelectContext(ctx, &rows, storySelect+` ORDER BY s.created, s.id`); err != nil {
		return nil, errors.Wrap(err, "selecting stories")
	}
	rv := make([]forum.Story, len(rows))
	for i := range rows {
		rv[i] = rows[i].toStory()
	}
	return rv, nil
}

func (s *Store) Comments(ctx context.Context) ([]forum.Comment, error) {
	var rows []commentRow
	if err := s.db.SelectContext(ctx, &rows, commentSelect+` ORDER BY c.created, c.id`); err != nil {
		return nil, errors.Wrap(err, "selecting comments")
	}
	rv := make([]forum.Comment, len(rows))
	for i := range rows {
		rv[i] = rows[i].toComment()
	}
	return rv, nil
}

func (s *Store) getStory(ctx context.Context, where string, arg interface{}) (*forum.Story, error) {
	var row storyRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(storySelect+` AND `+where), arg)
	if err == sql.ErrNoRows {
		return nil, forum.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "selecting story %v", arg)
	}
	st := row.toStory()
	return &st, nil
}

func (s *Store) Story(ctx context.Context, id int64) (*forum.Story, error) {
	return s.getStory(ctx, `s.id = ?`, id)
}

func (s *Store) StoryByMessageID(ctx context.Context, msgid string) (*forum.Story, error) {
	return s.getStory(ctx, `s.message_id = ?`, msgid)
}

func (s *Store) getComment(ctx context.Context, where string, arg interface{}) (*forum.Comment, error) {
	var row commentRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(commentSelect+` AND `+where), arg)
	if err == sql.ErrNoRows {
		return nil, forum.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "selecting comment %v", arg)
	}
	c := row.toComment()
	return &c, nil
}

func (s *Store) Comment(ctx context.Context, id int64) (*forum.Comment, error) {
	return s.getComment(ctx, `c.id = ?`, id)
}

func (s *Store) CommentByMessageID(ctx context.Context, msgid string) (*forum.Comment, error) {
	return s.getComment(ctx, `c.message_id = ?`, msgid)
}

var watermarkQueries = []string{
	`SELECT created FROM sic_story ORDER BY created DESC LIMIT 1`,
	`SELECT last_modified FROM sic_story WHERE last_modified IS NOT NULL ORDER BY last_modified DESC LIMIT 1`,
	`SELECT created FROM sic_comment ORDER BY created DESC LIMIT 1`,
	`SELECT last_modified FROM sic_comment WHERE last_modified IS NOT NULL ORDER BY last_modified DESC LIMIT 1`,
}

// LastModified is the latest creation or modification time in either
// table. Selecting the column itself, rather than MAX(), keeps its type
// under sqlite.
func (s *Store) LastModified(ctx context.Context) (time.Time, error) {
	var latest time.Time
	for _, q := range watermarkQueries {
		var t sql.NullTime
		err := s.db.GetContext(ctx, &t, q)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return time.Time{}, errors.Wrap(err, "reading modification time")
		}
		if t.Valid && t.Time.After(latest) {
			latest = t.Time
		}
	}
	return latest.UTC(), nil
}

type userRow struct {
	ID       int64          `db:"id"`
	Username sql.NullString `db:"username"`
	Password string         `db:"password"`
	IsActive bool           `db:"is_active"`
}

func (r *userRow) toUser() *forum.User {
	u := &forum.User{ID: r.ID, Username: r.Username.String}
	if !r.Username.Valid {
		u.Username = strconv.FormatInt(r.ID, 10)
	}
	return u
}

// CheckPassword accepts a username or an email address as login.
func (s *Store) CheckPassword(ctx context.Context, login, password string) (*forum.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT id, username, password, is_active FROM sic_user WHERE username = ? OR email = ?`),
		login, login)
	if err == sql.ErrNoRows {
		return nil, forum.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "selecting user %q", login)
	}
	if !row.IsActive {
		return nil, forum.ErrNotFound
	}
	ok, err := CheckPassword(password, row.Password)
	if err != nil {
		return nil, errors.Wrapf(err, "checking password of %q", login)
	}
	if !ok {
		return nil, forum.ErrBadPassword
	}
	return row.toUser(), nil
}

func (s *Store) User(ctx context.Context, id int64) (*forum.User, error) {
	var row userRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT id, username, password, is_active FROM sic_user WHERE id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, forum.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "selecting user %d", id)
	}
	if !row.IsActive {
		return nil, forum.ErrNotFound
	}
	return row.toUser(), nil
}
