package model

import "time"

// WaitingEntry holds a seeker parked in the waiting pool. One entry per
// seeker; arrival order decides promotion order. The anonymous preference
// travels with the entry so a later promotion honors it.
type WaitingEntry struct {
	SeekerID   string    `json:"seekerId"`
	Category   string    `json:"category"`
	Anonymous  bool      `json:"anonymous"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}
