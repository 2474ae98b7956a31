package sqlstore

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// ErrUnknownHasher is returned for password hashes of an algorithm
// CheckPassword doesn't implement.
var ErrUnknownHasher = errors.New("unknown password hasher")

// CheckPassword verifies password against a Django encoded hash:
// pbkdf2_sha256, bcrypt or bcrypt_sha256. Unusable passwords (starting
// with "!") never match.
func CheckPassword(password, encoded string) (bool, error) {
	if encoded == "" || strings.HasPrefix(encoded, "!") {
		return false, nil
	}
	algorithm, rest, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, ErrUnknownHasher
	}
	switch algorithm {
	case "pbkdf2_sha256":
		return checkPBKDF2(password, rest)
	case "bcrypt":
		return checkBcrypt([]byte(password), rest)
	case "bcrypt_sha256":
		sum := sha256.Sum256([]byte(password))
		return checkBcrypt([]byte(hex.EncodeToString(sum[:])), rest)
	}
	return false, errors.Wrap(ErrUnknownHasher, algorithm)
}

// iterations$salt$hash
func checkPBKDF2(password, rest string) (bool, error) {
	parts := strings.SplitN(rest, "$", 3)
	if len(parts) != 3 {
		return false, errors.New("malformed pbkdf2_sha256 hash")
	}
	iter, err := strconv.Atoi(parts[0])
	if err != nil || iter < 1 {
		return false, errors.Errorf("bad pbkdf2_sha256 iteration count %q", parts[0])
	}
	want, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return false, errors.Wrap(err, "decoding pbkdf2_sha256 hash")
	}
	got := pbkdf2.Key([]byte(password), []byte(parts[1]), iter, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

// Django stores bcrypt hashes as "bcrypt$" + the modular crypt string.
func checkBcrypt(password []byte, hash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), password)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	}
	return false, errors.Wrap(err, "checking bcrypt hash")
}

// MakePassword encodes password the way Django's default hasher does.
func MakePassword(password, salt string, iterations int) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), iterations, sha256.Size, sha256.New)
	return "pbkdf2_sha256$" + strconv.Itoa(iterations) + "$" + salt + "$" + base64.StdEncoding.EncodeToString(key)
}
