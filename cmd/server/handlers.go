package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskmill/taskmill/internal/pool"
)

// registerBuiltinHandlers installs the task types the server ships with.
// They are primarily used by operational smoke checks; domain handlers
// are registered the same way.
func registerBuiltinHandlers(registry *pool.HandlerRegistry) error {
	builtins := map[string]pool.Handler{
		"echo":     echoHandler,
		"checksum": checksumHandler,
		"delay":    delayHandler,
	}
	for taskType, h := range builtins {
		if err := registry.Register(taskType, h); err != nil {
			return fmt.Errorf("failed to register %q handler: %w", taskType, err)
		}
	}
	return nil
}

// echoHandler returns its payload unchanged.
func echoHandler(ctx context.Context, payload any, progress func(int)) (any, error) {
	var v any
	if err := decodePayload(payload, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// checksumHandler computes the SHA-256 of the payload's "data" field.
func checksumHandler(ctx context.Context, payload any, progress func(int)) (any, error) {
	var req struct {
		Data string `json:"data"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(req.Data))
	return map[string]string{"sha256": hex.EncodeToString(sum[:])}, nil
}

// delayHandler sleeps for the requested duration, reporting progress in
// ten steps. It exists to exercise timeouts and cancellation end to end.
func delayHandler(ctx context.Context, payload any, progress func(int)) (any, error) {
	var req struct {
		DurationMs int `json:"duration_ms"`
	}
	if err := decodePayload(payload, &req); err != nil {
		return nil, err
	}
	if req.DurationMs <= 0 {
		req.DurationMs = 100
	}

	step := time.Duration(req.DurationMs) * time.Millisecond / 10
	for i := 1; i <= 10; i++ {
		select {
		case <-time.After(step):
			if progress != nil {
				progress(i * 10)
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return map[string]int{"slept_ms": req.DurationMs}, nil
}

// decodePayload unmarshals a raw JSON payload into v. Payloads submitted
// through the HTTP facade always arrive as raw JSON; in-process callers
// may pass the target type directly.
func decodePayload(payload any, v any) error {
	switch p := payload.(type) {
	case nil:
		return nil
	case json.RawMessage:
		if len(p) == 0 {
			return nil
		}
		return json.Unmarshal(p, v)
	case []byte:
		if len(p) == 0 {
			return nil
		}
		return json.Unmarshal(p, v)
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("unsupported payload type %T: %w", payload, err)
		}
		return json.Unmarshal(raw, v)
	}
}
