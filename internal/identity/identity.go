// Package identity derives stable tenant identities from caller credentials.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DefaultInstanceID is the sentinel used when a caller supplies no instance id.
const DefaultInstanceID = "default"

// digestLen is the number of hex characters kept from the digest.
const digestLen = 8

// Derive computes the tenant identity for an (API key, instance id) pair.
// The result is the first 8 hex characters of SHA-256(key + ":" + instance).
// It is deterministic across restarts; re-derivation, not storage, maps
// names back to tenants. This is a naming convenience, not a security
// boundary.
func Derive(apiKey, instanceID string) string {
	if instanceID == "" {
		instanceID = DefaultInstanceID
	}

	sum := sha256.Sum256([]byte(apiKey + ":" + instanceID))

	return hex.EncodeToString(sum[:])[:digestLen]
}

// RecordName renders the record name for a tenant identity using the given
// template. The template must contain a single %s verb.
func RecordName(template, tenantID string) string {
	return fmt.Sprintf(template, tenantID)
}
