package model

import (
	"fmt"
	"time"
)

// AttemptCounter throttles validation calls per (submitter, target). It is a
// durable row, not a process-local map, so the escalation threshold holds
// across restarts and multiple instances.
type AttemptCounter struct {
	ScopeKey  string // see AttemptScopeKey
	Count     int
	UpdatedAt time.Time
}

// AttemptScopeKey builds the storage key for a submitter/target pair.
func AttemptScopeKey(submitterPhone, targetID string) string {
	return fmt.Sprintf("%s|%s", submitterPhone, targetID)
}
