// Package dummy provides scripted commander and completer doubles for tests
// and offline runs. Scripts are comma-separated actions: "ok", "err:<class>",
// "sleep:<ms>", "msg:<text>", "start:<name>", "clear", "other".
package dummy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cmdpkg "github.com/dkoval/consultbot/internal/commander"
	"github.com/dkoval/consultbot/internal/llm"
)

type action struct {
	kind string
	arg  string
}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		switch {
		case token == "ok":
			actions = append(actions, action{kind: "ok"})
		case token == "clear":
			actions = append(actions, action{kind: "clear"})
		case token == "other":
			actions = append(actions, action{kind: "other"})
		case strings.HasPrefix(token, "err:"):
			actions = append(actions, action{kind: "err", arg: strings.TrimPrefix(token, "err:")})
		case strings.HasPrefix(token, "sleep:"):
			actions = append(actions, action{kind: "sleep", arg: strings.TrimPrefix(token, "sleep:")})
		case strings.HasPrefix(token, "msg:"):
			actions = append(actions, action{kind: "msg", arg: strings.TrimPrefix(token, "msg:")})
		case strings.HasPrefix(token, "start:"):
			actions = append(actions, action{kind: "start", arg: strings.TrimPrefix(token, "start:")})
		default:
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

// Commander is a scripted chat transport double.
type Commander struct {
	mu       sync.Mutex
	poll     *scriptRunner
	send     *scriptRunner
	updateID int64
	sent     []string
}

func NewCommander(pollScript, sendScript string) (*Commander, error) {
	poll, err := newRunner(pollScript)
	if err != nil {
		return nil, err
	}
	send, err := newRunner(sendScript)
	if err != nil {
		return nil, err
	}
	return &Commander{poll: poll, send: send, updateID: 1}, nil
}

func (c *Commander) GetUpdates(offset int64, timeout int) ([]cmdpkg.Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.poll.next()
	switch a.kind {
	case "ok":
		return nil, nil
	case "err":
		return nil, fmt.Errorf("dummy commander error class=%s", emptyAs(a.arg, "command_source_api"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		return nil, nil
	case "msg":
		return c.update(textUpdate(a.arg)), nil
	case "start":
		return c.update(commandUpdate("/start", a.arg)), nil
	case "clear":
		return c.update(commandUpdate("/clear", "")), nil
	case "other":
		return c.update(&cmdpkg.Message{Chat: cmdpkg.Chat{ID: 1}, Date: time.Now().Unix()}), nil
	default:
		return nil, nil
	}
}

func (c *Commander) SendMessage(chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := c.send.next()
	switch a.kind {
	case "err":
		return fmt.Errorf("dummy commander send error class=%s", emptyAs(a.arg, "command_source_api"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
	}
	c.sent = append(c.sent, text)
	return nil
}

// Sent returns every message delivered through the double.
func (c *Commander) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *Commander) update(msg *cmdpkg.Message) []cmdpkg.Update {
	c.updateID++
	return []cmdpkg.Update{{UpdateID: c.updateID, Message: msg}}
}

func textUpdate(text string) *cmdpkg.Message {
	return &cmdpkg.Message{
		Chat: cmdpkg.Chat{ID: 1},
		From: &cmdpkg.User{Username: "dummy"},
		Text: &text,
		Date: time.Now().Unix(),
	}
}

func commandUpdate(command, username string) *cmdpkg.Message {
	msg := textUpdate(command)
	if username != "" {
		msg.From = &cmdpkg.User{Username: username}
	}
	return msg
}

// Completer is a scripted completion-service double.
type Completer struct {
	mu     sync.Mutex
	script *scriptRunner
}

func NewCompleter(script string) (*Completer, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Completer{script: runner}, nil
}

func (c *Completer) Complete(ctx context.Context, messages []llm.Message) (llm.Completion, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a := c.script.next()
	switch a.kind {
	case "err":
		return llm.Completion{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "sleep":
		ms, _ := strconv.Atoi(a.arg)
		if ms > 0 {
			time.Sleep(time.Duration(ms) * time.Millisecond)
		}
		return llm.Completion{Content: "dummy-after-sleep", InputTokens: 1, OutputTokens: 1}, nil
	case "msg":
		return llm.Completion{Content: a.arg, InputTokens: 1, OutputTokens: 1}, nil
	default:
		return llm.Completion{Content: emptyAs(a.arg, "dummy-ok"), InputTokens: 1, OutputTokens: 1}, nil
	}
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
