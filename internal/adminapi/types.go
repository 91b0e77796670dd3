package adminapi

import (
	"time"

	"github.com/tyemirov/timebank-admin/pkg/jsonid"
)

// Job statuses reported by the upstream API.
const (
	JobStatusOpen       = "open"
	JobStatusMatched    = "matched"
	JobStatusInProgress = "in_progress"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
)

// Verification statuses.
const (
	VerificationStatusPending  = "pending"
	VerificationStatusApproved = "approved"
	VerificationStatusRejected = "rejected"
)

// Job is a unit of work posted by a member in exchange for time credits.
type Job struct {
	ID            jsonid.ID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category,omitempty"`
	Location      string    `json:"location,omitempty"`
	Status        string    `json:"status"`
	RequesterID   jsonid.ID `json:"requesterId,omitempty"`
	RequesterName string    `json:"requesterName,omitempty"`
	ProviderID    jsonid.ID `json:"providerId,omitempty"`
	Credits       float64   `json:"credits,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// HelpRequest is a member's request for help that has not necessarily become a job yet.
type HelpRequest struct {
	ID            jsonid.ID `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category,omitempty"`
	Status        string    `json:"status"`
	RequesterName string    `json:"requesterName,omitempty"`
	Urgency       string    `json:"urgency,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// JobApplication is a provider's application to a job.
type JobApplication struct {
	ID            jsonid.ID `json:"id"`
	JobID         jsonid.ID `json:"jobId"`
	ApplicantID   jsonid.ID `json:"applicantId"`
	ApplicantName string    `json:"applicantName,omitempty"`
	Message       string    `json:"message,omitempty"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
}

// SkilledUser is a member whose skills match a job.
type SkilledUser struct {
	ID            jsonid.ID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email,omitempty"`
	Skills        []string  `json:"skills,omitempty"`
	Rating        float64   `json:"rating,omitempty"`
	CompletedJobs int       `json:"completedJobs,omitempty"`
}

// Verification is an identity-verification submission.
type Verification struct {
	ID           jsonid.ID  `json:"id"`
	UserID       jsonid.ID  `json:"userId"`
	UserName     string     `json:"userName,omitempty"`
	Email        string     `json:"email,omitempty"`
	DocumentType string     `json:"documentType,omitempty"`
	DocumentURL  string     `json:"documentUrl,omitempty"`
	SelfieURL    string     `json:"selfieUrl,omitempty"`
	Status       string     `json:"status"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// LoadState is the lifecycle of one upstream fetch.
type LoadState int

const (
	LoadStateLoading LoadState = iota
	LoadStateLoaded
	LoadStateFailed
)

func (state LoadState) String() string {
	switch state {
	case LoadStateLoading:
		return "loading"
	case LoadStateLoaded:
		return "loaded"
	case LoadStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a fetch. Value is meaningful only when State is LoadStateLoaded,
// Err only when State is LoadStateFailed.
type Result[T any] struct {
	State LoadState
	Value T
	Err   error
}

// Loaded wraps a successful value.
func Loaded[T any](value T) Result[T] {
	return Result[T]{State: LoadStateLoaded, Value: value}
}

// Failed wraps an error.
func Failed[T any](err error) Result[T] {
	return Result[T]{State: LoadStateFailed, Err: err}
}

// Unwrap returns the value and error in the usual Go shape.
func (result Result[T]) Unwrap() (T, error) {
	if result.State == LoadStateLoaded {
		return result.Value, nil
	}
	var zero T
	if result.Err != nil {
		return zero, result.Err
	}
	return zero, ErrNotLoaded
}
