package tracking

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// NewID produces a human-shareable tracking identifier of the form
// TRK-<millisecond timestamp>-<8 uppercase hex characters>. The random
// component comes from crypto/rand so issued ids cannot be enumerated.
func NewID() (string, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("tracking id entropy: %w", err)
	}
	random := strings.ToUpper(hex.EncodeToString(b[:]))
	return fmt.Sprintf("TRK-%d-%s", time.Now().UnixMilli(), random), nil
}
