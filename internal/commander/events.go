package commander

import "strings"

// EventKind discriminates normalized inbound events.
type EventKind string

const (
	EventStart EventKind = "start"
	EventClear EventKind = "clear"
	EventText  EventKind = "text"
	EventOther EventKind = "other"
)

// Event is a normalized inbound event. The core consumes these instead of
// raw transport updates.
type Event struct {
	Kind        EventKind
	ChatID      int64
	DisplayName string
	Text        string
}

// fallbackDisplayName is used when the sender exposes neither a username
// nor a first name.
const fallbackDisplayName = "пользователь"

// Normalize maps a raw update to an inbound event. Updates without a
// message carry nothing actionable and are skipped.
func Normalize(u Update) (Event, bool) {
	if u.Message == nil {
		return Event{}, false
	}
	msg := u.Message
	ev := Event{
		ChatID:      msg.Chat.ID,
		DisplayName: displayName(msg.From),
	}
	if msg.Text == nil {
		ev.Kind = EventOther
		return ev, true
	}
	text := strings.TrimSpace(*msg.Text)
	if text == "" {
		ev.Kind = EventOther
		return ev, true
	}
	switch commandOf(text) {
	case "start":
		ev.Kind = EventStart
	case "clear":
		ev.Kind = EventClear
	default:
		ev.Kind = EventText
		ev.Text = text
	}
	return ev, true
}

// commandOf recognizes the supported bot commands, tolerating the
// "@botname" suffix Telegram appends in group chats.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd := strings.Fields(text)[0]
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/start":
		return "start"
	case "/clear":
		return "clear"
	}
	return ""
}

func displayName(u *User) string {
	if u == nil {
		return fallbackDisplayName
	}
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return fallbackDisplayName
}
