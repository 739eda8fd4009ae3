package model

// MessageKind distinguishes chat lines from warnings shown to an actor.
type MessageKind string

const (
	KindMessage MessageKind = "message"
	KindNotice  MessageKind = "notice"
)

// ChatPrefix tags every plugin chat line.
const ChatPrefix = "[NewU] "

// Message is one line delivered to an actor.
type Message struct {
	Kind MessageKind `json:"kind"`
	Text string      `json:"text"`
}

// Info returns a prefixed chat message.
func Info(text string) Message {
	return Message{Kind: KindMessage, Text: ChatPrefix + text}
}

// Notice returns a notice.
func Notice(text string) Message {
	return Message{Kind: KindNotice, Text: text}
}
