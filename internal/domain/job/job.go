package job

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeDueReminder Type = "task.due_reminder"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeDueReminder:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

var (
	ErrJobNotFound    = errors.New("no runnable job")
	ErrInvalidType    = errors.New("invalid job type")
	ErrInvalidPayload = errors.New("invalid job payload")
)

// Job is one unit of asynchronous work, persisted in the jobs table and
// claimed by a worker process.
type Job struct {
	ID          string    `json:"id"`
	Type        Type      `json:"type"`
	Payload     []byte    `json:"payload"` // raw json
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"maxAttempts"`
	RunAt       time.Time `json:"runAt"`
	LockedAt    *time.Time `json:"lockedAt,omitempty"`
	LockedBy    *string   `json:"lockedBy,omitempty"`
	LastError   *string   `json:"lastError,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type CreateRequest struct {
	Type        Type
	Payload     []byte
	RunAt       time.Time
	MaxAttempts int
}

func New(req CreateRequest) (Job, error) {
	if !req.Type.IsValid() {
		return Job{}, ErrInvalidType
	}

	now := time.Now().UTC()

	runAt := req.RunAt
	if runAt.IsZero() || runAt.Before(now) {
		runAt = now
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return Job{
		ID:          uuid.NewString(),
		Type:        req.Type,
		Payload:     req.Payload,
		Status:      StatusPending,
		Attempts:    0,
		MaxAttempts: maxAttempts,
		RunAt:       runAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}
