package attachment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ShareKeys mints time-limited keys that authorize external access to
// internal file links.
type ShareKeys struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewShareKeys(secret string, ttl time.Duration) *ShareKeys {
	return &ShareKeys{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a key of the form "<expiry-unix>.<hmac>" bound to fileURL.
func (s *ShareKeys) Generate(fileURL string) string {
	expiry := s.now().Add(s.ttl).Unix()
	return fmt.Sprintf("%d.%s", expiry, s.sign(fileURL, expiry))
}

// Verify checks the signature and that the key has not expired.
func (s *ShareKeys) Verify(fileURL, key string) bool {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return false
	}
	expiry, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return false
	}
	if s.now().Unix() > expiry {
		return false
	}
	return hmac.Equal([]byte(parts[1]), []byte(s.sign(fileURL, expiry)))
}

func (s *ShareKeys) sign(fileURL string, expiry int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", fileURL, expiry)
	return hex.EncodeToString(mac.Sum(nil)[:16])
}
