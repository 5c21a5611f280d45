package cart

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// SessionHeader carries the browsing-session token that owns a cart.
const SessionHeader = "X-Cart-Session"

const minSessionTokenLen = 16

// HashSession derives the storage identity of a session token. Raw tokens
// never reach storage keys or the database.
func HashSession(token string) (string, bool) {
	token = strings.TrimSpace(token)
	if len(token) < minSessionTokenLen {
		return "", false
	}
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:]), true
}
