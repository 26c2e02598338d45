package entity

import "github.com/google/uuid"

// SyncResult is the outcome of syncing one account. A sync never panics or
// throws to its caller: configuration problems and fetch failures come back
// as Success=false with a descriptive Error.
type SyncResult struct {
	AccountID     uuid.UUID `json:"account_id"`
	Success       bool      `json:"success"`
	Error         string    `json:"error,omitempty"`
	HoldingsCount int       `json:"holdings_count"`
}
