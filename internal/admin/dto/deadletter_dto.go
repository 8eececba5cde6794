package dto

import "encoding/json"

type ListDeadLettersRequest struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

type ListDeadLettersResponse struct {
	DeadLetters []DeadLetterDTO `json:"dead_letters"`
	Limit       int             `json:"limit"`
	Offset      int             `json:"offset"`
}

type DeadLetterDTO struct {
	ID            int64           `json:"id"`
	Queue         string          `json:"queue"`
	JobType       string          `json:"job_type"`
	CorrelationID string          `json:"correlation_id"`
	Envelope      json.RawMessage `json:"envelope"`
	FailureType   string          `json:"failure_type"`
	Attempts      int             `json:"attempts"`
	LastError     string          `json:"last_error"`
	CreatedAt     string          `json:"created_at"`
	ReplayedAt    string          `json:"replayed_at,omitempty"`
}

type RequeueResponse struct {
	ID            int64  `json:"id"`
	Queue         string `json:"queue"`
	CorrelationID string `json:"correlation_id"`
	Status        string `json:"status"`
}
