package service

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
)

const (
	tokenLength   = 7
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// generateToken devuelve un token alfanumérico de un solo uso.
func generateToken() (string, error) {
	max := big.NewInt(int64(len(tokenAlphabet)))
	out := make([]byte, tokenLength)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = tokenAlphabet[n.Int64()]
	}
	return string(out), nil
}

func tokensEqual(stored *string, provided string) bool {
	if stored == nil || *stored == "" || provided == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*stored), []byte(provided)) == 1
}
