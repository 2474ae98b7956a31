package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epilys/sic-sub000/internal/config"
)

func TestOpenSQLiteSource(t *testing.T) {
	cfg := &config.Config{Store: config.Store{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "sic.db")}}
	src, users, c, err := openSource(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()
	assert.NotNil(t, src)
	assert.NotNil(t, users)
}

func TestUnknownDriver(t *testing.T) {
	_, _, _, err := openSource(context.Background(), &config.Config{Store: config.Store{Driver: "mysql"}})
	assert.Error(t, err)
}

func TestLoadTLS(t *testing.T) {
	tc, err := loadTLS(&config.Config{})
	require.NoError(t, err)
	assert.Nil(t, tc)

	_, err = loadTLS(&config.Config{UseSSL: true, CertFile: "missing.pem", KeyFile: "missing.key"})
	assert.Error(t, err)
}
