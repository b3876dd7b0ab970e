package opting

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PseudoDomain is the fixed domain of all generated pseudo-addresses. The
// .invalid TLD guarantees the address can never route.
const PseudoDomain = "reviewer.invalid"

// GenerateSalt creates the per-journal pseudonym salt: 32 random bytes, hex
// encoded. The salt is generated once per journal and persisted; regenerating
// it would break pseudonym stability.
func GenerateSalt() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic("opting: failed to generate random salt: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// Pseudonym derives the deterministic pseudo-address for a reviewer email.
// The identity is an HMAC-SHA256 of the normalized email keyed with the
// journal's salt, so it is stable per (reviewer, journal) and
// collision-resistant, but cannot be reversed to the real address.
func Pseudonym(email, salt string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(normalized))
	digest := hex.EncodeToString(mac.Sum(nil))
	return digest[:32] + "@" + PseudoDomain
}
