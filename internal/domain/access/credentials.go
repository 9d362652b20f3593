package access

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Ambiguous glyphs (0/O, 1/l/I) are excluded; these passwords get read out
// over the phone to ward staff.
const passwordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const passwordLength = 10

// GeneratePassword returns a random initial password for a freshly issued
// credential.
func GeneratePassword() (string, error) {
	buf := make([]byte, passwordLength)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
