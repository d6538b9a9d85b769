package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const randomCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateRandomString returns a random string of the given length using
// crypto/rand. Used for machine-generated passwords that are never shown
// to the user.
func GenerateRandomString(length int) string {
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(randomCharset))))
		if err != nil {
			// crypto/rand failing is effectively fatal; write a fixed byte
			// rather than returning a short string.
			sb.WriteByte('x')
			continue
		}
		sb.WriteByte(randomCharset[n.Int64()])
	}
	return sb.String()
}

// MaskEmail masks the local part of an email address for logging.
//
//	MaskEmail("john.doe@example.com") // "j***e@example.com"
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return email
	}
	local, domain := email[:at], email[at:]
	if len(local) == 1 {
		return email
	}
	if len(local) == 2 {
		return local[:1] + "*" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + domain
}
