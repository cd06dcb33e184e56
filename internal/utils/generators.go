package utils

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// Crockford-style alphabet without I, L, O and U so references read back over the phone.
const referenceAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

const referenceLength = 8

// GenerateID creates a random UUID v4 string.
func GenerateID() string {
	return uuid.New().String()
}

// GenerateBookingReference returns a short customer-facing reference like "MB-7K3QX9TD".
func GenerateBookingReference() string {
	var sb strings.Builder
	sb.WriteString("MB-")
	base := big.NewInt(int64(len(referenceAlphabet)))
	for i := 0; i < referenceLength; i++ {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			// Fall back to uuid randomness if the system source fails.
			return "MB-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:referenceLength])
		}
		sb.WriteByte(referenceAlphabet[n.Int64()])
	}
	return sb.String()
}
