package ticket

import "time"

// State is the admission state of a ticket at a point in time. It is derived
// from scan_count and expires_at and is never stored.
type State string

const (
	StatePresentable      State = "presentable"
	StateExhaustedByCount State = "exhausted"
	StateExpiredByTime    State = "expired"
)

// StateAt classifies the ticket. Expiry takes precedence over the scan count:
// a ticket past expires_at reports StateExpiredByTime even when it is also at
// the cap.
func (t *Ticket) StateAt(now time.Time, maxScans int) State {
	if !now.Before(t.ExpiresAt) {
		return StateExpiredByTime
	}
	if t.ScanCount >= maxScans {
		return StateExhaustedByCount
	}
	return StatePresentable
}

// Presentable reports whether the ticket may still be admitted.
func (t *Ticket) Presentable(now time.Time, maxScans int) bool {
	return t.StateAt(now, maxScans) == StatePresentable
}

// DisplayStatus is the status a read-only view shows. It folds the derived
// state over the stored column so that a ticket nobody swept yet still reads
// as expired once its time has passed.
func (t *Ticket) DisplayStatus(now time.Time, maxScans int) Status {
	switch t.StateAt(now, maxScans) {
	case StateExpiredByTime:
		return StatusExpired
	case StateExhaustedByCount:
		return StatusUsed
	default:
		return StatusActive
	}
}

// RemainingScans returns how many admissions are left, ignoring expiry.
func (t *Ticket) RemainingScans(maxScans int) int {
	if t.ScanCount >= maxScans {
		return 0
	}
	return maxScans - t.ScanCount
}
