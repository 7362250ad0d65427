package models

import "time"

type Message struct {
	SessionID  string    `json:"session_id"`
	SequenceNo int64     `json:"sequence_no"`
	SenderID   int       `json:"sender_id"`
	Body       string    `json:"body"`
	Timestamp  time.Time `json:"timestamp"`
}

// ID returns the natural key of the message.
func (m Message) ID() MessageID {
	return MessageID{SessionID: m.SessionID, SequenceNo: m.SequenceNo}
}

type MessageID struct {
	SessionID  string `json:"session_id"`
	SequenceNo int64  `json:"sequence_no"`
}
