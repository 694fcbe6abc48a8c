package models

import "time"

// Credential represents an issued, scannable permit credential bound to
// exactly one access request. At most one credential per request is active
// at any time; regeneration retires the previous one.
type Credential struct {
	ID        int64  `json:"id"`
	RequestID string `json:"request_id"`

	// Serial is a random, URL-safe identifier unique per issuance. It is
	// embedded in the payload so two issuances for the same request are
	// distinguishable.
	Serial string `json:"serial"`

	// Payload is the self-describing JSON reference encoded into the
	// scannable artifact. It carries no authority of its own; the live
	// request is always re-checked at the checkpoint.
	Payload string `json:"payload"`

	ImageRef    string `json:"image_ref,omitempty"`
	DocumentRef string `json:"document_ref,omitempty"`

	Active    bool       `json:"active"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil = no expiry
}

// Expired reports whether the credential has a retention window that has
// already elapsed at the given instant.
func (c *Credential) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
