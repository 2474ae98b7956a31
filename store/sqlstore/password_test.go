package sqlstore

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPBKDF2(t *testing.T) {
	enc := MakePassword("hunter2", "cBSRudbIhqB6ELvFAnhGWy", 1000)
	assert.Regexp(t, `^pbkdf2_sha256\$1000\$cBSRudbIhqB6ELvFAnhGWy\$[A-Za-z0-9+/]{43}=$`, enc)

	ok, err := CheckPassword("hunter2", enc)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckPassword("hunter3", enc)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBcrypt(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	ok, err := CheckPassword("hunter2", "bcrypt$"+string(hash))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = CheckPassword("nope", "bcrypt$"+string(hash))
	require.NoError(t, err)
	assert.False(t, ok)

	sum := sha256.Sum256([]byte("hunter2"))
	hash, err = bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(sum[:])), bcrypt.MinCost)
	require.NoError(t, err)
	ok, err = CheckPassword("hunter2", "bcrypt_sha256$"+string(hash))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnusablePasswords(t *testing.T) {
	for _, enc := range []string{"", "!", "!hJ3q8sVmN2"} {
		ok, err := CheckPassword("", enc)
		assert.NoError(t, err, enc)
		assert.False(t, ok, enc)
	}
}

func TestMalformedHashes(t *testing.T) {
	for _, enc := range []string{
		"plaintext",
		"md5$salt$abc",
		"pbkdf2_sha256$x$salt$abc=",
		"pbkdf2_sha256$1000$salt",
		"pbkdf2_sha256$1000$salt$%%%",
		"bcrypt$not-a-hash",
	} {
		ok, err := CheckPassword("pw", enc)
		assert.Error(t, err, enc)
		assert.False(t, ok, enc)
	}
}
