package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

func BytesToHex(bytes []byte) string {
	return hex.EncodeToString(bytes)
}

// Hash message using SHA256
func SHA256(msg []byte) []byte {
	digest := sha256.Sum256(msg)
	return digest[:]
}

// AppendNonce appends the decimal form of nonce to data.
func AppendNonce(data []byte, nonce uint64) []byte {
	return strconv.AppendUint(data, nonce, 10)
}

// FormatTimestamp renders t the same way regardless of location and monotonic clock reading.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
