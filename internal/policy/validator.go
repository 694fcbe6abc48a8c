package policy

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/adamscao/permitserver/internal/config"
	"github.com/adamscao/permitserver/internal/models"
)

// platePattern accepts common plate shapes: 2-8 uppercase letters, digits
// and dashes after normalization.
var platePattern = regexp.MustCompile(`^[A-Z0-9-]{2,8}$`)

// OpenRequestCounter reports how many non-terminal requests a requester
// currently has. Satisfied by repository.RequestRepository.
type OpenRequestCounter interface {
	CountOpenByRequester(requesterID string) (int, error)
}

// Validator validates permit submissions against policy
type Validator struct {
	config   *config.Config
	requests OpenRequestCounter
}

// NewValidator creates a new policy validator
func NewValidator(cfg *config.Config, requests OpenRequestCounter) *Validator {
	return &Validator{
		config:   cfg,
		requests: requests,
	}
}

// ValidateSubmission validates a draft access request before it is created
func (v *Validator) ValidateSubmission(req *models.AccessRequest) error {
	required := []struct {
		field string
		value string
	}{
		{"holder name", req.HolderName},
		{"holder id", req.HolderID},
		{"email", req.Email},
		{"phone", req.Phone},
		{"program", req.Program},
		{"vehicle plate", req.VehiclePlate},
		{"vehicle model", req.VehicleModel},
		{"vehicle color", req.VehicleColor},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.field)
		}
	}

	plate := models.NormalizePlate(req.VehiclePlate)
	if !platePattern.MatchString(plate) {
		return fmt.Errorf("vehicle plate %q is not a valid plate", plate)
	}

	// Check the open-request cap for self-service submissions
	if req.RequesterID != "" && v.config.Policy.MaxOpenRequests > 0 {
		count, err := v.requests.CountOpenByRequester(req.RequesterID)
		if err != nil {
			return fmt.Errorf("failed to check open request limit: %w", err)
		}
		if count >= v.config.Policy.MaxOpenRequests {
			return fmt.Errorf("open request limit exceeded (%d/%d)", count, v.config.Policy.MaxOpenRequests)
		}
	}

	return nil
}

// CredentialExpiry computes the expiry timestamp for a credential issued at
// the given time. Returns nil when the retention window is disabled.
func (v *Validator) CredentialExpiry(issuedAt time.Time) *time.Time {
	window := v.config.ExpiryWindow()
	if window <= 0 {
		return nil
	}
	expiry := issuedAt.Add(window)
	return &expiry
}
