package relay

import (
	"encoding/json"
	"time"

	"github.com/nulzo/chat-relay/pkg/api"
)

type EventKind int

const (
	EventContent EventKind = iota
	EventDone
	EventError
)

// Event is one frame of a relayed stream: Content, then exactly one Done or Error.
type Event struct {
	Kind      EventKind
	Content   string
	Mode      string
	Timestamp time.Time
	Err       *Error
}

func contentEvent(text string) Event {
	return Event{Kind: EventContent, Content: text}
}

func doneEvent(mode string, at time.Time) Event {
	return Event{Kind: EventDone, Mode: mode, Timestamp: at}
}

// ErrorEvent wraps err as a terminal event.
func ErrorEvent(err *Error) Event {
	return Event{Kind: EventError, Err: err}
}

// Terminal reports whether no event may follow e.
func (e Event) Terminal() bool {
	return e.Kind != EventContent
}

type contentFrame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type doneFrame struct {
	Done      bool   `json:"done"`
	Model     string `json:"model"`
	Timestamp string `json:"timestamp"`
}

type errorFrame struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

// MarshalJSON renders the wire shape of the event's SSE data line.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Kind {
	case EventDone:
		return json.Marshal(doneFrame{Done: true, Model: e.Mode, Timestamp: api.FormatTimestamp(e.Timestamp)})
	case EventError:
		frame := errorFrame{Error: "Unknown error"}
		if e.Err != nil {
			frame = errorFrame{Error: e.Err.Message, Details: e.Err.Details, Message: e.Err.Hint}
		}
		return json.Marshal(frame)
	default:
		return json.Marshal(contentFrame{Content: e.Content})
	}
}
