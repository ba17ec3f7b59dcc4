package sigv4

import (
	"crypto/hmac"
	"encoding/hex"

	"github.com/minio/sha256-simd"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, message string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(message))
	return mac.Sum(nil)
}

func hmacSHA256Hex(key []byte, message string) string {
	return hex.EncodeToString(hmacSHA256(key, message))
}

// deriveSigningKey chains HMAC-SHA256 over the secret, date, region and
// service, yielding a key valid only for the given day and scope.
func deriveSigningKey(secretKey, date, region, service string) []byte {
	k := hmacSHA256([]byte("AWS4"+secretKey), date)
	k = hmacSHA256(k, region)
	k = hmacSHA256(k, service)
	return hmacSHA256(k, requestSuffix)
}
