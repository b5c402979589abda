package model

import "time"

// Course is the minimal view of a purchasable entitlement the engine needs:
// the all-access fan-out targets every course that is currently live.
type Course struct {
	ID        string
	Title     string
	Live      bool
	CreatedAt time.Time
}
