package api

import (
	"encoding/json"
	"time"
)

// TokenRequest is the body for POST /auth/token: an API key exchanged for
// a short-lived service token.
type TokenRequest struct {
	ClientID string `json:"client_id" validate:"required,min=1,max=128"`
	APIKey   string `json:"api_key"   validate:"required"`
}

// TokenResponse carries the issued service token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmitTaskRequest is the body for POST /tasks and the element type for
// the aggregate endpoints. Payload is passed to the task handler as raw
// JSON; TimeoutMs of zero uses the pool default.
type SubmitTaskRequest struct {
	Type      string          `json:"type" validate:"required,min=1"`
	Payload   json.RawMessage `json:"payload"`
	Priority  int             `json:"priority"`
	TimeoutMs int             `json:"timeout_ms" validate:"gte=0"`
}

// TaskSpecRequest names one unit of work inside an aggregate submission.
type TaskSpecRequest struct {
	Type    string          `json:"type" validate:"required,min=1"`
	Payload json.RawMessage `json:"payload"`
}

// SubmitAllRequest is the body for POST /tasks/all. Priority and
// TimeoutMs apply to every task in the set.
type SubmitAllRequest struct {
	Tasks     []TaskSpecRequest `json:"tasks" validate:"required,min=1,dive"`
	Priority  int               `json:"priority"`
	TimeoutMs int               `json:"timeout_ms" validate:"gte=0"`
}

// SubmitBatchRequest is the body for POST /tasks/batch. MaxConcurrent of
// zero falls back to the pool's worker ceiling.
type SubmitBatchRequest struct {
	Tasks         []TaskSpecRequest `json:"tasks"          validate:"required,min=1,dive"`
	MaxConcurrent int               `json:"max_concurrent" validate:"gte=0"`
	Priority      int               `json:"priority"`
	TimeoutMs     int               `json:"timeout_ms" validate:"gte=0"`
}

// TaskResponse is the settlement of a single submitted task.
type TaskResponse struct {
	TaskID    uint64 `json:"task_id"`
	Outcome   string `json:"outcome"`
	Result    any    `json:"result,omitempty"`
	Attempts  int    `json:"attempts"`
	LatencyMs int64  `json:"latency_ms"`
}

// AggregateResponse is the settlement of an aggregate submission.
type AggregateResponse struct {
	Results []any `json:"results"`
}

// StatsResponse is a snapshot of the pool's state and counters.
type StatsResponse struct {
	TotalWorkers     int     `json:"total_workers"`
	BusyWorkers      int     `json:"busy_workers"`
	QueueLength      int     `json:"queue_length"`
	CircuitOpen      bool    `json:"circuit_open"`
	CompletedTasks   int64   `json:"completed_tasks"`
	FailedTasks      int64   `json:"failed_tasks"`
	RejectedTasks    int64   `json:"rejected_tasks"`
	AverageLatencyMs float64 `json:"average_latency_ms"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
}

// JournalEntry is one settlement record as exposed over HTTP.
type JournalEntry struct {
	TaskID      uint64    `json:"task_id"`
	TaskType    string    `json:"task_type"`
	Priority    int       `json:"priority"`
	Attempts    int       `json:"attempts"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	SettledAt   time.Time `json:"settled_at"`
	LatencyMs   int64     `json:"latency_ms"`
}

// JournalResponse is the body for GET /journal.
type JournalResponse struct {
	Entries []JournalEntry `json:"entries"`
}
