package session

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
)

// identityBytes is the entropy behind every client and room identifier;
// base32 without padding turns 20 bytes into 32 ASCII characters.
const identityBytes = 20

var identityEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

func newIdentity() (string, error) {
	buf := make([]byte, identityBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: mint identity: %w", err)
	}
	return identityEncoding.EncodeToString(buf), nil
}
