package commander

// Commander is the chat transport abstraction used by the bot loop.
type Commander interface {
	GetUpdates(offset int64, timeout int) ([]Update, error)
	SendMessage(chatID int64, text string) error
}

// Update represents an incoming transport update.
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message represents a source message. Text is nil for non-text content
// (photos, stickers, files).
type Message struct {
	Chat Chat    `json:"chat"`
	From *User   `json:"from,omitempty"`
	Text *string `json:"text,omitempty"`
	Date int64   `json:"date"`
}

// Chat identifies a conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// User identifies the message sender.
type User struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}
