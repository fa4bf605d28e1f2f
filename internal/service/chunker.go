package service

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"time"
)

// Sentence boundaries are a period or question mark followed by whitespace.
// Exclamation marks do not split: a greeting like "Olá! Como vai?" reads as
// one utterance and is sent as one chunk.
var chunkDelimiter = regexp.MustCompile(`[.?]\s+`)

// SplitChunks splits a generated response into sentence-level chunks, each
// sent as an individual provider message. Empty input yields no chunks.
func SplitChunks(text string) []string {
	parts := chunkDelimiter.Split(text, -1)
	chunks := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			chunks = append(chunks, part)
		}
	}
	return chunks
}

// ChatIDFromPhone maps a destination phone number to the provider chat
// identifier. Deterministic, no network call.
func ChatIDFromPhone(phoneNumber string) string {
	var digits strings.Builder
	for _, r := range phoneNumber {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	return digits.String() + "@c.us"
}

// MessageHash derives the idempotency key for one logical message from the
// destination, the text, and the send time truncated to the minute. Identical
// content within the same minute window collapses to a single delivery.
func MessageHash(phoneNumber, text string, at time.Time) string {
	minute := at.UTC().Truncate(time.Minute).Format(time.RFC3339)
	sum := sha256.Sum256([]byte(phoneNumber + "|" + text + "|" + minute))
	return hex.EncodeToString(sum[:])
}
