package events

import "github.com/koscakluka/ema-live/core/chat"

const (
	// KindChatMessageUpdated identifies a mutable streamed reply snapshot.
	KindChatMessageUpdated Kind = "chat.message_updated"
	// KindChatMessageFinal identifies a completed or failed reply.
	KindChatMessageFinal Kind = "chat.message_final"
)

// ChatMessageUpdated carries the reply streamed so far.
type ChatMessageUpdated struct {
	Base
	Chunk chat.Chunk
}

// NewChatMessageUpdated creates a chat message updated event.
func NewChatMessageUpdated(chunk chat.Chunk) ChatMessageUpdated {
	return ChatMessageUpdated{Base: NewBase(KindChatMessageUpdated), Chunk: chunk}
}

// ChatMessageFinal carries the finished reply as stored in history.
type ChatMessageFinal struct {
	Base
	Message chat.Message
}

// NewChatMessageFinal creates a chat message final event.
func NewChatMessageFinal(message chat.Message) ChatMessageFinal {
	return ChatMessageFinal{Base: NewBase(KindChatMessageFinal), Message: message}
}
