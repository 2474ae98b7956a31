package nntp

import (
	"net/textproto"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArticleKey(t *testing.T) {
	k := ParseArticleKey("42")
	assert.True(t, k.IsNumber())
	assert.Equal(t, int64(42), k.Number())

	k = ParseArticleKey("0")
	assert.True(t, k.IsNumber())
	assert.Equal(t, int64(0), k.Number())

	k = ParseArticleKey("<story-1@sic.pm>")
	assert.True(t, k.IsMessageID())
	assert.Equal(t, "<story-1@sic.pm>", k.MessageID())

	k = ParseArticleKey("story-1@sic.pm")
	assert.True(t, k.IsMessageID())
	assert.Equal(t, "<story-1@sic.pm>", k.MessageID())
}

func TestParseDateTime(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := ParseDateTime("20240102", "030405", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), got)

	got, err = ParseDateTime("240102", "000000", now)
	require.NoError(t, err)
	assert.Equal(t, 2024, got.Year())

	got, err = ParseDateTime("990102", "000000", now)
	require.NoError(t, err)
	assert.Equal(t, 1999, got.Year())

	for _, bad := range [][2]string{
		{"2024012", "000000"},
		{"20241301", "000000"},
		{"20240101", "0000"},
		{"2024o101", "000000"},
		{"20240101", "250000"},
	} {
		_, err := ParseDateTime(bad[0], bad[1], now)
		assert.ErrorIs(t, err, ErrBadDate, "%v", bad)
	}
}

func TestHeaderLines(t *testing.T) {
	ai := ArticleInfo{
		Number:     3,
		Subject:    "Re: hello\nworld",
		From:       "alice@sic.pm",
		Date:       time.Date(2021, 7, 9, 19, 59, 0, 0, time.UTC),
		MessageID:  "<comment-3@sic.pm>",
		References: "<story-1@sic.pm>",
		Extra:      textproto.MIMEHeader{"URL": {"https://sic.pm/s/1/hello/#d"}},
	}
	assert.Equal(t, []string{
		"From: <alice@sic.pm>",
		"Subject: Re: hello world",
		"Date: Fri, 09 Jul 2021 19:59:00 +0000",
		"Message-ID: <comment-3@sic.pm>",
		"References: <story-1@sic.pm>",
		"URL: https://sic.pm/s/1/hello/#d",
	}, ai.HeaderLines())
}

func TestOverview(t *testing.T) {
	ai := ArticleInfo{
		Subject:   "tab\there",
		From:      "bob@sic.pm",
		Date:      time.Date(2021, 7, 9, 19, 59, 0, 0, time.UTC),
		MessageID: "<story-1@sic.pm>",
		Bytes:     17,
		Lines:     1,
	}
	assert.Equal(t,
		"7\ttab here\tbob@sic.pm\tFri, 09 Jul 2021 19:59:00 +0000\t<story-1@sic.pm>\t\t17\t1",
		ai.Overview(7))

	v, ok := ai.Field("subject")
	assert.True(t, ok)
	assert.Equal(t, "tab here", v)
	v, ok = ai.Field(":bytes")
	assert.True(t, ok)
	assert.Equal(t, "17", v)
	ai.Extra = textproto.MIMEHeader{"URL": {"https://sic.pm/s/1/x/"}}
	v, ok = ai.Field("url")
	assert.True(t, ok)
	assert.Equal(t, "https://sic.pm/s/1/x/", v)
	_, ok = ai.Field("X-Nothing")
	assert.False(t, ok)
}
