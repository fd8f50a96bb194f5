package enums

import "fmt"

// VideoStatus tracks whether a video's binary payload has been durably written.
type VideoStatus string

const (
	// VideoStatusPending marks a record whose blob write has not been confirmed.
	// Pending videos are never visible to principals other than the owner.
	VideoStatusPending VideoStatus = "pending"
	// VideoStatusReady marks a record backed by a finalized blob.
	VideoStatusReady VideoStatus = "ready"
)

var validVideoStatuses = []VideoStatus{
	VideoStatusPending,
	VideoStatusReady,
}

// String returns the literal string for the status.
func (s VideoStatus) String() string {
	return string(s)
}

// IsValid reports whether the status is known.
func (s VideoStatus) IsValid() bool {
	for _, candidate := range validVideoStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseVideoStatus converts raw input into a VideoStatus.
func ParseVideoStatus(value string) (VideoStatus, error) {
	for _, candidate := range validVideoStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid video status %q", value)
}
