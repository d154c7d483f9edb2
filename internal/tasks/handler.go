package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/supermarket-teller/internal/events"
	"github.com/noah-isme/supermarket-teller/internal/obs"
)

// Handler processes receipt tasks in the worker.
type Handler struct {
	Savings *Savings
	Logger  zerolog.Logger
}

// NewServeMux routes task types to the handler.
func NewServeMux(h *Handler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeReceiptIssued, h)
	return mux
}

// ProcessTask implements asynq.Handler.
func (h *Handler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var ev events.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		countTask("invalid")
		return fmt.Errorf("decode event: %v: %w", err, asynq.SkipRetry)
	}
	var payload events.ReceiptIssued
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		countTask("invalid")
		return fmt.Errorf("decode receipt: %v: %w", err, asynq.SkipRetry)
	}

	err := h.Savings.Record(ctx, payload)
	switch {
	case errors.Is(err, ErrAlreadyRecorded):
		countTask("duplicate")
		h.Logger.Debug().Str("receipt_id", payload.ReceiptID.String()).Msg("receipt already recorded")
		return nil
	case err != nil:
		countTask("error")
		return err
	}
	countTask("ok")
	h.Logger.Info().
		Str("receipt_id", payload.ReceiptID.String()).
		Int("discounts", len(payload.Discounts)).
		Msg("receipt recorded")
	return nil
}

func countTask(result string) {
	if obs.ReceiptTasksTotal != nil {
		obs.ReceiptTasksTotal.WithLabelValues(result).Inc()
	}
}
