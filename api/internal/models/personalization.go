package models

import "time"

type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusRead       Status = "read"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusInProgress, StatusCompleted, StatusRead, StatusCancelled:
		return true
	}
	return false
}

// Actionable reports whether a tassologist may still work on the request.
func (s Status) Actionable() bool {
	return s == StatusNew || s == StatusInProgress
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentWaived  PaymentStatus = "waived"
)

type TranscriptionStatus string

const (
	TranscriptionNotRequested TranscriptionStatus = "not_requested"
	TranscriptionPending      TranscriptionStatus = "pending"
	TranscriptionCompleted    TranscriptionStatus = "completed"
	TranscriptionFailed       TranscriptionStatus = "failed"
)

// Transcription is the server-side dictation sub-state of a request.
type Transcription struct {
	Status        TranscriptionStatus `json:"status"`
	OperationName string              `json:"operationName,omitempty"`
	Error         string              `json:"error,omitempty"`
	UpdatedAt     *time.Time          `json:"updatedAt,omitempty"`
}

// PersonalizationRequest is a paid, human-reviewed follow-up of a Reading.
type PersonalizationRequest struct {
	ID            string        `json:"id"`
	ReadingID     string        `json:"readingId"`
	UserID        string        `json:"userId"`
	TassologistID string        `json:"tassologistId,omitempty"`
	UserQuestion  string        `json:"userQuestion,omitempty"`
	Status        Status        `json:"status"`
	PriceCents    int64         `json:"priceCents"`
	Currency      string        `json:"currency"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	Transcription Transcription `json:"transcription"`
	RequestedAt   time.Time     `json:"requestedAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	CompletedAt   *time.Time    `json:"completedAt,omitempty"`
	ReadAt        *time.Time    `json:"readAt,omitempty"`
}
