package chat

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Source struct {
	Title string
	URI   string
}

type Message struct {
	ID        string
	Role      Role
	Text      string
	Sources   []Source
	CreatedAt time.Time
	// Pending is true while the model message is still streaming.
	Pending bool
	Err     error
}

func newMessage(role Role, text string) Message {
	return Message{ID: uuid.NewString(), Role: role, Text: text, CreatedAt: time.Now()}
}

func newPendingMessage() Message {
	m := newMessage(RoleModel, "")
	m.Pending = true
	return m
}

// Chunk is one step of a streamed reply.
type Chunk struct {
	// Delta is the text added by this step; Text is everything so far.
	Delta   string
	Text    string
	Sources []Source
}
