// Package names derives human-friendly petnames for middleware instances.
package names

import (
	"strings"

	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"
)

// Unknown is returned when no petname can be derived.
const Unknown = "unknown"

// Petname generates a deterministic 3-word name from at least 16 bytes of
// identity material using the BIP-39 word list (e.g. "leader-monkey-parrot").
func Petname(id []byte) string {
	if len(id) < 16 {
		return Unknown
	}
	// BIP-39 requires 16, 20, 24, 28, or 32 bytes of entropy.
	entropy := make([]byte, 32)
	copy(entropy, id)
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return Unknown
	}
	words := strings.Fields(mnemonic)
	if len(words) < 3 {
		return Unknown
	}
	return words[0] + "-" + words[1] + "-" + words[2]
}

// ForInstance returns the petname of an instance id. Ids that are UUIDs use
// their 16 raw bytes; anything else is hashed into a name-based UUID first.
func ForInstance(id string) string {
	if id == "" {
		return Unknown
	}
	u, err := uuid.Parse(id)
	if err != nil {
		u = uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	}
	return Petname(u[:])
}
