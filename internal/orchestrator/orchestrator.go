// Package orchestrator stages a user turn, relays the accumulated
// conversation context to the completion service with bounded retries, and
// commits or rolls back the exchange.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dkoval/consultbot/internal/control"
	"github.com/dkoval/consultbot/internal/convo"
	"github.com/dkoval/consultbot/internal/db"
	"github.com/dkoval/consultbot/internal/llm"
)

// EventSink records audit events. Implementations must tolerate concurrent
// use; a nil sink disables recording.
type EventSink interface {
	Record(eventType string, payload map[string]any)
}

// Params configures prompt assembly and retry behavior.
type Params struct {
	SystemPrompt string
	HistoryLimit int
	Retry        control.RetryPolicy
}

// ExhaustedError reports that every completion attempt failed. The
// conversation has been rolled back to its pre-request state.
type ExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("completion failed after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Orchestrator drives one exchange at a time per conversation: provisional
// user turn, bounded completion attempts, then commit or rollback.
type Orchestrator struct {
	store     *convo.Store
	completer llm.Completer
	params    Params
	logger    zerolog.Logger
	events    EventSink

	// One mutex per conversation; the store's own lock only covers map
	// access, not the stage/commit window.
	locks sync.Map

	// sleep is swapped out in tests to observe inter-attempt delays.
	sleep func(time.Duration)
}

// New creates an orchestrator. events may be nil.
func New(store *convo.Store, completer llm.Completer, params Params, logger zerolog.Logger, events EventSink) *Orchestrator {
	params.Retry = params.Retry.Normalize()
	if params.HistoryLimit < 0 {
		params.HistoryLimit = 0
	}
	return &Orchestrator{
		store:     store,
		completer: completer,
		params:    params,
		logger:    logger,
		events:    events,
		sleep:     time.Sleep,
	}
}

// Respond runs one full exchange for the conversation: ensures the record
// exists, stages the user turn, sends system prompt + trimmed history + the
// new message to the completion service, and commits the assistant turn.
// On retry exhaustion or cancellation the provisional user turn is removed
// and the history is left exactly as it was before the call.
func (o *Orchestrator) Respond(ctx context.Context, chatID int64, ownerLabel, userText string) (string, error) {
	mu := o.conversationLock(chatID)
	mu.Lock()
	defer mu.Unlock()

	exchangeID := uuid.NewString()
	log := o.logger.With().
		Str("exchange_id", exchangeID).
		Int64("chat_id", chatID).
		Logger()

	o.store.Ensure(chatID, ownerLabel)
	if err := o.store.Append(chatID, convo.Turn{Role: convo.RoleUser, Content: userText}); err != nil {
		return "", fmt.Errorf("stage user turn: %w", err)
	}

	messages := o.buildRequest(chatID, userText)

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= o.params.Retry.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		attempts++
		resp, err := o.completer.Complete(ctx, messages)
		if err == nil {
			if err := o.store.Append(chatID, convo.Turn{Role: convo.RoleAssistant, Content: resp.Content}); err != nil {
				// Contract violation: the record vanished mid-exchange.
				return "", fmt.Errorf("commit assistant turn: %w", err)
			}
			log.Info().
				Int("attempt", attempt).
				Int("input_tokens", resp.InputTokens).
				Int("output_tokens", resp.OutputTokens).
				Msg("completion succeeded")
			o.record(db.EventCompletionSucceeded, map[string]any{
				"exchange_id":   exchangeID,
				"chat_id":       chatID,
				"attempt":       attempt,
				"input_tokens":  resp.InputTokens,
				"output_tokens": resp.OutputTokens,
			})
			return resp.Content, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("completion attempt failed")
		o.record(db.EventCompletionAttemptFailed, map[string]any{
			"exchange_id": exchangeID,
			"chat_id":     chatID,
			"attempt":     attempt,
		})
		if attempt < o.params.Retry.Attempts {
			o.sleep(o.params.Retry.Delay)
		}
	}

	// Rollback must run on every failure path, cancellation included;
	// an orphaned user turn would corrupt the history permanently.
	if err := o.store.RemoveLast(chatID); err != nil {
		log.Error().Err(err).Msg("rollback of provisional turn failed")
	}
	log.Error().Err(lastErr).Int("attempts", attempts).Msg("completion exhausted, conversation rolled back")
	o.record(db.EventCompletionExhausted, map[string]any{
		"exchange_id": exchangeID,
		"chat_id":     chatID,
		"attempts":    attempts,
	})
	return "", &ExhaustedError{Attempts: attempts, LastErr: lastErr}
}

// buildRequest assembles system prompt, the trailing window of committed
// history, and the new user message. The just-staged provisional turn is
// dropped from the window: the new message is sent separately as the final
// entry, never duplicated from history.
func (o *Orchestrator) buildRequest(chatID int64, userText string) []llm.Message {
	history, err := o.store.History(chatID)
	if err != nil || len(history) == 0 {
		history = nil
	} else {
		history = history[:len(history)-1]
	}
	if o.params.HistoryLimit > 0 && len(history) > o.params.HistoryLimit {
		history = history[len(history)-o.params.HistoryLimit:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: o.params.SystemPrompt})
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: string(turn.Role), Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userText})
	return messages
}

func (o *Orchestrator) conversationLock(chatID int64) *sync.Mutex {
	v, _ := o.locks.LoadOrStore(chatID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (o *Orchestrator) record(eventType string, payload map[string]any) {
	if o.events == nil {
		return
	}
	o.events.Record(eventType, payload)
}
