package database

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

const (
	hashSecretEnv = "TWEETGRAM_DEDUP_HASH_SECRET"
	hashSalt      = "tweetgram-dedup-v1"
	keyIterations = 10000
	keyLength     = 32
)

// idHasher optionally hashes message identifiers before they hit disk, so a
// leaked store file does not enumerate who messaged the account. Hashing is
// deterministic: lookups keep working and dedup semantics are unchanged.
type idHasher struct {
	key []byte
}

// newIDHasher derives the hashing key from the environment. Without a
// secret the hasher passes identifiers through unchanged.
func newIDHasher() (*idHasher, error) {
	secret := os.Getenv(hashSecretEnv)
	if secret == "" {
		return &idHasher{}, nil
	}
	if len(secret) < 16 {
		return nil, fmt.Errorf("%s must be at least 16 characters", hashSecretEnv)
	}
	key := pbkdf2.Key([]byte(secret), []byte(hashSalt), keyIterations, keyLength, sha256.New)
	return &idHasher{key: key}, nil
}

// Hash returns the stable at-rest form of a message identifier
func (h *idHasher) Hash(messageID string) string {
	if h.key == nil || messageID == "" {
		return messageID
	}
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(messageID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
