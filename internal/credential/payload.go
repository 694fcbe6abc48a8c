package credential

import (
	"encoding/json"
	"fmt"
	"time"
)

// Payload is the structured reference encoded into the scannable artifact.
// It is self-describing enough for a checkpoint to sanity-check identity
// and vehicle without a live join, but it carries no authority: the live
// request status is always re-checked at validation time.
type Payload struct {
	RequestID  string    `json:"request_id"`
	Serial     string    `json:"serial"`
	Plate      string    `json:"plate"`
	HolderName string    `json:"holder_name"`
	HolderID   string    `json:"holder_id"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Encode serializes the payload to its wire form
func (p Payload) Encode() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return string(data), nil
}

// ParsePayload decodes a scanned payload string. A payload without a
// request reference is malformed even when it is syntactically valid JSON.
func ParsePayload(raw string) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	if p.RequestID == "" {
		return nil, fmt.Errorf("payload has no request reference")
	}
	return &p, nil
}
