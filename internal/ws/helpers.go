package ws

import (
	"crypto/rand"
	"encoding/hex"
)

// newConnID mints a random id correlating one websocket connection across
// logs and connection events.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
