//go:build integration

package sqlstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/epilys/sic-sub000/forum"
	"github.com/epilys/sic-sub000/store/sqlstore"
)

type PostgresSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	store     *sqlstore.Store
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("sic"),
		postgres.WithUsername("sic"),
		postgres.WithPassword("sic"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := sqlx.Connect("postgres", dsn)
	s.Require().NoError(err)
	s.store = sqlstore.New(db)
	s.Require().NoError(s.store.Migrate(s.ctx))
}

func (s *PostgresSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresSuite) SetupTest() {
	db := s.store.DB()
	_, _ = db.ExecContext(s.ctx, "DELETE FROM sic_comment")
	_, _ = db.ExecContext(s.ctx, "DELETE FROM sic_story")
	_, _ = db.ExecContext(s.ctx, "DELETE FROM sic_user")
	seed(s.T(), s.store)
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) TestStoriesAndComments() {
	stories, err := s.store.Stories(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stories, 2)
	s.Equal(int64(2), stories[0].ID)
	s.Equal(at(1), stories[0].Created)
	s.Equal("2", stories[0].Author)

	comments, err := s.store.Comments(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(comments, 2)
	s.Equal(int64(10), comments[1].ParentID)
	s.Equal("Earlier story", comments[0].StoryTitle)
}

func (s *PostgresSuite) TestLookupsUseRebind() {
	st, err := s.store.StoryByMessageID(s.ctx, "<orig@example.com>")
	s.Require().NoError(err)
	s.Equal(int64(2), st.ID)

	_, err = s.store.Comment(s.ctx, 12)
	s.ErrorIs(err, forum.ErrNotFound)

	u, err := s.store.CheckPassword(s.ctx, "alice@example.com", "hunter2")
	s.Require().NoError(err)
	s.Equal("alice", u.Username)
}

func (s *PostgresSuite) TestLastModified() {
	lm, err := s.store.LastModified(s.ctx)
	s.Require().NoError(err)
	s.Equal(at(7), lm)
}
