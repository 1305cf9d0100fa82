// Package knol derives stable card identifiers from card content.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// Normalize lowercases each part, trims surrounding whitespace and
// normalizes line endings, then joins the parts with newlines so that
// neighbouring fields never run together.
func Normalize(parts ...string) string {
	out := make([]string, len(parts))
	for i, part := range parts {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		out[i] = strings.TrimSpace(strings.ToLower(p))
	}
	return strings.Join(out, "\n")
}

// Hash is the hex SHA-256 of the owner followed by the normalized front and
// back. The owner is kept verbatim so two owners importing the same note
// get distinct cards.
func Hash(owner, front, back string) string {
	sum := sha256.Sum256([]byte(owner + "\n" + Normalize(front, back)))
	return fmt.Sprintf("%x", sum)
}
