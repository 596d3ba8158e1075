package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/taskmill/taskmill/internal/api/shared"
	"github.com/taskmill/taskmill/internal/journal"
	"github.com/taskmill/taskmill/internal/pool"
	"github.com/taskmill/taskmill/internal/redact"
)

// journalAppendTimeout bounds how long a settlement record write may take
// once the client's own context is already done.
const journalAppendTimeout = 5 * time.Second

// TaskHandler handles task submission and pool introspection requests.
type TaskHandler struct {
	pool      *pool.Pool
	journal   journal.Journal
	validator *validator.Validate
}

// NewTaskHandler creates a new TaskHandler with the given dependencies.
func NewTaskHandler(p *pool.Pool, j journal.Journal) *TaskHandler {
	if j == nil {
		j = journal.NewNoop()
	}
	return &TaskHandler{
		pool:      p,
		journal:   j,
		validator: validator.New(),
	}
}

// Submit handles POST /tasks: runs one task and responds with its
// settlement.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	opts := &pool.TaskOptions{
		Priority: req.Priority,
		Timeout:  time.Duration(req.TimeoutMs) * time.Millisecond,
	}

	submittedAt := time.Now()
	fut, err := h.pool.Execute(r.Context(), req.Type, req.Payload, opts)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	value, execErr := fut.Wait(r.Context())
	settledAt := time.Now()

	h.record(r.Context(), journal.Record{
		TaskID:      fut.TaskID(),
		TaskType:    req.Type,
		Priority:    req.Priority,
		Attempts:    fut.Attempts(),
		Outcome:     journal.OutcomeForError(execErr),
		Error:       errText(execErr),
		SubmittedAt: submittedAt,
		SettledAt:   settledAt,
	})

	if execErr != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(execErr), GetSafeErrorMessage(execErr), execErr)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, TaskResponse{
		TaskID:    fut.TaskID(),
		Outcome:   string(journal.OutcomeSucceeded),
		Result:    value,
		Attempts:  fut.Attempts(),
		LatencyMs: settledAt.Sub(submittedAt).Milliseconds(),
	})
}

// SubmitAll handles POST /tasks/all: runs every task concurrently and
// waits for all of them.
func (h *TaskHandler) SubmitAll(w http.ResponseWriter, r *http.Request) {
	var req SubmitAllRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	results, err := h.pool.ExecuteAll(r.Context(), toSpecs(req.Tasks), &pool.TaskOptions{
		Priority: req.Priority,
		Timeout:  time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AggregateResponse{Results: results})
}

// SubmitBatch handles POST /tasks/batch: runs the tasks with a bounded
// number in flight at once.
func (h *TaskHandler) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req SubmitBatchRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	results, err := h.pool.ExecuteBatch(r.Context(), toSpecs(req.Tasks), req.MaxConcurrent, &pool.TaskOptions{
		Priority: req.Priority,
		Timeout:  time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AggregateResponse{Results: results})
}

// Stats handles GET /stats.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	s := h.pool.Stats()
	shared.RespondWithJSON(w, r, http.StatusOK, StatsResponse{
		TotalWorkers:     s.TotalWorkers,
		BusyWorkers:      s.BusyWorkers,
		QueueLength:      s.QueueLength,
		CircuitOpen:      s.CircuitOpen,
		CompletedTasks:   s.CompletedTasks,
		FailedTasks:      s.FailedTasks,
		RejectedTasks:    s.RejectedTasks,
		AverageLatencyMs: float64(s.AverageLatency) / float64(time.Millisecond),
		UptimeSeconds:    s.Uptime.Seconds(),
	})
}

// Journal handles GET /journal: the most recent settlement records.
func (h *TaskHandler) Journal(w http.ResponseWriter, r *http.Request) {
	records, err := h.journal.Recent(r.Context(), 50)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to read settlement journal", err)
		return
	}

	entries := make([]JournalEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, JournalEntry{
			TaskID:      rec.TaskID,
			TaskType:    rec.TaskType,
			Priority:    rec.Priority,
			Attempts:    rec.Attempts,
			Outcome:     string(rec.Outcome),
			Error:       rec.Error,
			SubmittedAt: rec.SubmittedAt,
			SettledAt:   rec.SettledAt,
			LatencyMs:   rec.Latency().Milliseconds(),
		})
	}

	shared.RespondWithJSON(w, r, http.StatusOK, JournalResponse{Entries: entries})
}

// record appends a settlement record. The write is detached from the
// request context so a client disconnect does not drop the record.
func (h *TaskHandler) record(reqCtx context.Context, rec journal.Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), journalAppendTimeout)
	defer cancel()
	if err := h.journal.Append(ctx, rec); err != nil {
		slog.Error("failed to journal settlement",
			"task_id", rec.TaskID,
			"task_type", rec.TaskType,
			"error", redact.Error(err))
	}
}

func toSpecs(reqs []TaskSpecRequest) []pool.TaskSpec {
	specs := make([]pool.TaskSpec, len(reqs))
	for i, r := range reqs {
		specs[i] = pool.TaskSpec{Type: r.Type, Payload: r.Payload}
	}
	return specs
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return redact.Error(err)
}
