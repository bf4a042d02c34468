package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// GenerateSecureOTP returns a numeric code of the given length drawn uniformly from crypto/rand.
func GenerateSecureOTP(length int) (string, error) {
	var b strings.Builder
	b.Grow(length)
	ten := big.NewInt(10)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}
