// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether id parses as a UUID.
func IsValidID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Acting Principal
// ═══════════════════════════════════════════════════════════════════════════

// Role is the capacity in which a principal acts.
type Role string

const (
	RoleTeacher     Role = "teacher"
	RoleCoordinator Role = "coordinator"
	RoleSecretary   Role = "secretary"
	RoleAdmin       Role = "admin"
	RoleSystem      Role = "system"
)

// Principal is the user on whose behalf a mutating operation runs.
// Access control happens before the core is invoked; the core only records it.
type Principal struct {
	UserID   string
	Name     string
	Role     Role
	SchoolID string
}

// IsZero reports whether no principal was supplied.
func (p Principal) IsZero() bool {
	return strings.TrimSpace(p.UserID) == ""
}

// String returns the user id, used in audit fields.
func (p Principal) String() string {
	return p.UserID
}

// SystemPrincipal is used by operator tooling.
func SystemPrincipal(userID string) Principal {
	if userID == "" {
		userID = "system"
	}
	return Principal{UserID: userID, Name: "system", Role: RoleSystem}
}

// ═══════════════════════════════════════════════════════════════════════════
// Date Range
// ═══════════════════════════════════════════════════════════════════════════

// DateRange is an optionally open interval of calendar days.
// A nil bound means unbounded on that side.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Unbounded returns a range with no bounds.
func Unbounded() DateRange {
	return DateRange{}
}

// Between returns a closed range [from, to].
func Between(from, to time.Time) DateRange {
	return DateRange{From: &from, To: &to}
}

// IsBounded reports whether both bounds are set.
func (r DateRange) IsBounded() bool {
	return r.From != nil && r.To != nil
}

// Contains reports whether t falls inside the range (inclusive, by day).
func (r DateRange) Contains(t time.Time) bool {
	day := truncateDay(t)
	if r.From != nil && day.Before(truncateDay(*r.From)) {
		return false
	}
	if r.To != nil && day.After(truncateDay(*r.To)) {
		return false
	}
	return true
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ═══════════════════════════════════════════════════════════════════════════
// Batch Outcome
// ═══════════════════════════════════════════════════════════════════════════

// ItemFailure records why one item of a bulk operation failed.
type ItemFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BatchOutcome partitions a bulk run into succeeded ids and failures.
type BatchOutcome struct {
	Succeeded []string      `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
}

// Succeed records a successful item.
func (b *BatchOutcome) Succeed(id string) {
	b.Succeeded = append(b.Succeeded, id)
}

// Fail records a failed item.
func (b *BatchOutcome) Fail(id string, err error) {
	b.Failed = append(b.Failed, ItemFailure{ID: id, Reason: err.Error()})
}

// Total returns the number of attempted items.
func (b BatchOutcome) Total() int {
	return len(b.Succeeded) + len(b.Failed)
}
