// Package cryptoutil provides the byte-level SHA-256 and HMAC-SHA256
// routines used by the S3 request signer. It reaches for nothing beyond
// the standard library, matching the teacher's own choice not to pull in
// a third-party crypto package for primitives the standard library
// already covers well.
package cryptoutil

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SHA256 returns the SHA-256 digest of data.
func SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// HMACSHA256 returns the HMAC-SHA256 of msg under key.
func HMACSHA256(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// HMACSHA256Chain computes a recursive HMAC chain: H1 = HMAC(seed, m1),
// Hk = HMAC(Hk-1, mk). It requires at least one message beyond the seed
// (k >= 1); calling it with zero messages is a programmer error.
func HMACSHA256Chain(seed []byte, messages ...[]byte) ([]byte, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("cryptoutil: HMACSHA256Chain requires at least one message")
	}
	h := HMACSHA256(seed, messages[0])
	for _, m := range messages[1:] {
		h = HMACSHA256(h, m)
	}
	return h, nil
}

// HexEncode returns the lowercase hex encoding of data with no separators.
func HexEncode(data []byte) string {
	return hex.EncodeToString(data)
}
