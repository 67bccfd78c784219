// Package bot polls the chat transport, normalizes updates into events, and
// dispatches them to the conversation handlers.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	cmdpkg "github.com/dkoval/consultbot/internal/commander"
	"github.com/dkoval/consultbot/internal/control"
	"github.com/dkoval/consultbot/internal/convo"
	"github.com/dkoval/consultbot/internal/db"
)

// Responder runs one full completion exchange for a conversation.
type Responder interface {
	Respond(ctx context.Context, chatID int64, ownerLabel, userText string) (string, error)
}

// EventSink records audit events; a nil sink disables recording.
type EventSink interface {
	Record(eventType string, payload map[string]any)
}

// Options tunes the poll loop.
type Options struct {
	PollTimeout          int
	SleepSeconds         int
	DropPending          bool
	PendingWindowSeconds int64
	PendingMaxMessages   int
}

// Bot owns the poll/dispatch loop. Events for different conversations are
// handled concurrently; the responder serializes work within one
// conversation.
type Bot struct {
	commander cmdpkg.Commander
	store     *convo.Store
	responder Responder
	opts      Options
	logger    zerolog.Logger
	events    EventSink
	circuit   *control.CircuitBreaker

	wg sync.WaitGroup
}

// New creates a bot. events may be nil.
func New(commander cmdpkg.Commander, store *convo.Store, responder Responder, opts Options, logger zerolog.Logger, events EventSink) *Bot {
	if opts.SleepSeconds <= 0 {
		opts.SleepSeconds = 1
	}
	return &Bot{
		commander: commander,
		store:     store,
		responder: responder,
		opts:      opts,
		logger:    logger,
		events:    events,
		circuit:   control.NewCircuitBreaker(5, 30*time.Second),
	}
}

// Run polls the transport until ctx is cancelled, then waits for in-flight
// handlers to finish.
func (b *Bot) Run(ctx context.Context) error {
	offset := int64(0)
	if b.opts.DropPending {
		bootstrapped, err := b.bootstrapOffset()
		if err != nil {
			b.logger.Warn().Err(err).Msg("bootstrap offset failed")
		} else {
			offset = bootstrapped
		}
	}

	b.logger.Info().Int64("offset", offset).Msg("bot polling started")

	for {
		select {
		case <-ctx.Done():
			b.wg.Wait()
			return ctx.Err()
		default:
		}

		if !b.circuit.Allow(time.Now()) {
			b.pause(ctx)
			continue
		}

		updates, err := b.commander.GetUpdates(offset, b.opts.PollTimeout)
		if err != nil {
			b.logger.Warn().Err(err).Msg("getUpdates failed")
			b.circuit.RecordFailure(classifyError(err), time.Now())
			b.pause(ctx)
			continue
		}
		b.circuit.RecordSuccess()

		for _, update := range updates {
			offset = update.UpdateID + 1
			ev, ok := cmdpkg.Normalize(update)
			if !ok {
				continue
			}
			b.wg.Add(1)
			go func(ev cmdpkg.Event) {
				defer b.wg.Done()
				b.Handle(ctx, ev)
			}(ev)
		}

		if len(updates) == 0 {
			b.pause(ctx)
		}
	}
}

// Handle dispatches one normalized event and sends the resulting reply.
func (b *Bot) Handle(ctx context.Context, ev cmdpkg.Event) {
	switch ev.Kind {
	case cmdpkg.EventStart:
		b.handleStart(ev)
	case cmdpkg.EventClear:
		b.handleClear(ev)
	case cmdpkg.EventText:
		b.handleText(ctx, ev)
	case cmdpkg.EventOther:
		b.handleOther(ev)
	}
}

func (b *Bot) handleStart(ev cmdpkg.Event) {
	_, created := b.store.Ensure(ev.ChatID, ev.DisplayName)
	b.logger.Info().
		Int64("chat_id", ev.ChatID).
		Str("user", ev.DisplayName).
		Bool("created", created).
		Msg("start command")
	if created {
		b.record(db.EventConversationCreated, map[string]any{
			"chat_id": ev.ChatID,
			"owner":   ev.DisplayName,
		})
	}
	b.send(ev.ChatID, fmt.Sprintf(greetingTemplate, ev.DisplayName))
}

func (b *Bot) handleClear(ev cmdpkg.Event) {
	existed := b.store.Clear(ev.ChatID)
	// The user always gets the same confirmation; only the log and the
	// audit trail distinguish whether anything was removed.
	b.logger.Info().
		Int64("chat_id", ev.ChatID).
		Bool("existed", existed).
		Msg("clear command")
	b.record(db.EventConversationCleared, map[string]any{
		"chat_id": ev.ChatID,
		"existed": existed,
	})
	b.send(ev.ChatID, clearConfirmation)
}

func (b *Bot) handleText(ctx context.Context, ev cmdpkg.Event) {
	b.record(db.EventMessageReceived, map[string]any{"chat_id": ev.ChatID})

	reply, err := b.responder.Respond(ctx, ev.ChatID, ev.DisplayName, ev.Text)
	if err != nil {
		// Exhaustion details are already logged by the orchestrator with
		// the exchange id; the user gets only the generic apology.
		b.logger.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("completion failed")
		b.send(ev.ChatID, completionApology)
		return
	}
	b.send(ev.ChatID, reply)
	b.record(db.EventReplySent, map[string]any{"chat_id": ev.ChatID})
}

func (b *Bot) handleOther(ev cmdpkg.Event) {
	b.logger.Warn().Int64("chat_id", ev.ChatID).Msg("non-text content rejected")
	b.record(db.EventContentRejected, map[string]any{"chat_id": ev.ChatID})
	b.send(ev.ChatID, nonTextRejection)
}

func (b *Bot) send(chatID int64, text string) {
	if err := b.commander.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("sendMessage failed")
	}
}

func (b *Bot) pause(ctx context.Context) {
	select {
	case <-time.After(time.Duration(b.opts.SleepSeconds) * time.Second):
	case <-ctx.Done():
	}
}

func (b *Bot) record(eventType string, payload map[string]any) {
	if b.events == nil {
		return
	}
	b.events.Record(eventType, payload)
}

// bootstrapOffset drops pending updates that are older than the recency
// window, so a restarted bot does not replay a backlog of stale messages.
func (b *Bot) bootstrapOffset() (int64, error) {
	updates, err := b.commander.GetUpdates(0, 0)
	if err != nil {
		return 0, err
	}
	if len(updates) == 0 {
		return 0, nil
	}

	cutoff := time.Now().Unix() - b.opts.PendingWindowSeconds

	var inWindow []cmdpkg.Update
	for _, u := range updates {
		if u.Message != nil && u.Message.Date >= cutoff {
			inWindow = append(inWindow, u)
		}
	}

	if len(inWindow) == 0 {
		return updates[len(updates)-1].UpdateID + 1, nil
	}

	if b.opts.PendingMaxMessages > 0 && len(inWindow) > b.opts.PendingMaxMessages {
		inWindow = inWindow[len(inWindow)-b.opts.PendingMaxMessages:]
	}

	return inWindow[0].UpdateID, nil
}

// classifyError buckets transport errors for the circuit breaker.
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "telegram"), strings.Contains(msg, "commander"):
		return "command_source_api"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline"):
		return "timeout"
	default:
		return "unknown"
	}
}
