package models

// Push event types.
const (
	EventJoined  = "joined"
	EventOnline  = "online"
	EventMessage = "message"
	EventError   = "error"
	EventPong    = "pong"
)

// Event is what travels on the bus and over the push channel. Origin names
// the connection that caused it; the push channel never sends an event back
// to its origin and strips the field before writing.
type Event struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id,omitempty"`
	SequenceNo int64  `json:"sequence_no,omitempty"`
	Timestamp  int64  `json:"timestamp,omitempty"` // unix millis
	Body       string `json:"body,omitempty"`
	SenderID   int    `json:"sender_id,omitempty"`
	UserID     int    `json:"user_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	Origin     string `json:"origin,omitempty"`
}

func MessageEvent(m Message, origin string) Event {
	return Event{
		Type:       EventMessage,
		SessionID:  m.SessionID,
		SequenceNo: m.SequenceNo,
		Timestamp:  m.Timestamp.UnixMilli(),
		Body:       m.Body,
		SenderID:   m.SenderID,
		Origin:     origin,
	}
}
