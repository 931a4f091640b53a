package model

import (
	"strings"
	"time"
)

type CallStatus string

const (
	CallStatusPending    CallStatus = "pending"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"

	// Older records may still carry these values.
	CallStatusCancelled  CallStatus = "cancelled"
	CallStatusNoShow     CallStatus = "no_show"
	CallStatusActive     CallStatus = "active"
	CallStatusDone       CallStatus = "done"
	CallStatusEnded      CallStatus = "ended"
	CallStatusTerminated CallStatus = "terminated"
)

var callTransitions = map[CallStatus][]CallStatus{
	CallStatusPending:    {CallStatusRinging, CallStatusFailed},
	CallStatusRinging:    {CallStatusInProgress, CallStatusCompleted, CallStatusFailed},
	CallStatusInProgress: {CallStatusCompleted, CallStatusFailed},
}

// Normalize maps legacy and platform spellings onto the lifecycle statuses.
func (s CallStatus) Normalize() CallStatus {
	switch CallStatus(strings.ToLower(strings.TrimSpace(string(s)))) {
	case CallStatusPending:
		return CallStatusPending
	case CallStatusRinging, "queued", "initiated":
		return CallStatusRinging
	case CallStatusInProgress, CallStatusActive, "in-progress":
		return CallStatusInProgress
	case CallStatusCompleted, CallStatusDone, CallStatusEnded:
		return CallStatusCompleted
	case CallStatusFailed, CallStatusCancelled, CallStatusNoShow, CallStatusTerminated:
		return CallStatusFailed
	default:
		return s
	}
}

// Terminal reports whether no further transition is allowed.
func (s CallStatus) Terminal() bool {
	n := s.Normalize()
	return n == CallStatusCompleted || n == CallStatusFailed
}

// CanTransition reports whether a call may move from s to next.
func (s CallStatus) CanTransition(next CallStatus) bool {
	for _, allowed := range callTransitions[s.Normalize()] {
		if allowed == next.Normalize() {
			return true
		}
	}
	return false
}

var knownCallStatuses = []CallStatus{
	CallStatusPending, CallStatusRinging, CallStatusInProgress, CallStatusCompleted, CallStatusFailed,
	CallStatusCancelled, CallStatusNoShow, CallStatusActive, CallStatusDone, CallStatusEnded, CallStatusTerminated,
}

// Predecessors lists the statuses from which next is reachable, in lifecycle order.
func Predecessors(next CallStatus) []CallStatus {
	var out []CallStatus
	for _, from := range knownCallStatuses[:3] {
		if from.CanTransition(next) {
			out = append(out, from)
		}
	}
	return out
}

// StoredAs expands statuses to every spelling that may be stored for them,
// so legacy rows match guarded updates.
func StoredAs(statuses ...CallStatus) []string {
	want := make(map[CallStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s.Normalize()] = true
	}
	var out []string
	for _, s := range knownCallStatuses {
		if want[s.Normalize()] {
			out = append(out, string(s))
		}
	}
	return out
}

// Lead is the person a campaign call is placed to.
type Lead struct {
	Name  string `gorm:"size:128;not null" json:"name"`
	Email string `gorm:"size:128" json:"email"`
	Phone string `gorm:"size:32;not null" json:"phone"`
}

// CallResult holds the post-call analysis.
type CallResult struct {
	Summary        string  `gorm:"type:text" json:"summary"`
	Transcript     string  `gorm:"type:mediumtext" json:"transcript"`
	QualityScore   float64 `json:"quality_score"`
	CustomerIntent string  `gorm:"size:512" json:"customer_intent"`
	RecordingURL   string  `gorm:"size:512" json:"recording_url"`
}

type Call struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	BatchID     uint       `gorm:"not null;index" json:"batch_id"`
	Status      CallStatus `gorm:"size:32;not null;index" json:"status"`
	Lead        Lead       `gorm:"embedded;embeddedPrefix:lead_" json:"user"`
	VoiceCallID *string    `gorm:"size:128;uniqueIndex" json:"vapi_call_id"`
	Error       string     `gorm:"size:512" json:"error,omitempty"`
	HasResult   bool       `json:"-"`
	Result      CallResult `gorm:"embedded;embeddedPrefix:result_" json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CallResultOrNil exposes the result only once analysis has been stored.
func (c *Call) CallResultOrNil() *CallResult {
	if !c.HasResult {
		return nil
	}
	r := c.Result
	return &r
}
