package media

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// MintToken returns a new placeholder token: unix millis plus a random suffix.
func MintToken() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.New().String()[:8])
}

// ValidToken reports whether token can be embedded in a placeholder.
func ValidToken(token string) bool {
	return tokenPattern.MatchString(token)
}
