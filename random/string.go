package random

import (
	crand "crypto/rand"
	"math/rand/v2"
)

const (
	CharsetAlphaNumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	CharsetDigits       = "0123456789"
)

func String(r *rand.Rand, options string, length int) (s string) {
	rOptions := []rune(options)

	var temp = make([]rune, length)
	for index := range temp {
		temp[index] = rOptions[r.IntN(len(rOptions))]
	}
	return string(temp)
}

// Token returns an unguessable alphanumeric string read from crypto/rand,
// safe for concurrent use
func Token(length int) (s string) {
	// Bytes at or above limit are dropped so every character is equally likely
	limit := 256 - 256%len(CharsetAlphaNumeric)

	token := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(token) < length {
		crand.Read(buf)
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			token = append(token, CharsetAlphaNumeric[int(b)%len(CharsetAlphaNumeric)])
			if len(token) == length {
				break
			}
		}
	}
	return string(token)
}
