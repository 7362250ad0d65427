package models

import "time"

// InitialMessageBody is the first message of every chat session.
const InitialMessageBody = "New Chat Request"

// NoMessagesYet stands in for the latest message of an empty session.
const NoMessagesYet = "No messages yet"

// ChatSession is a two-party thread. Initiator and Recipient keep the roles
// of the first contact but the pair is otherwise unordered.
type ChatSession struct {
	ID          string    `json:"id"`
	InitiatorID int       `json:"initiator_id"`
	RecipientID int       `json:"recipient_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s ChatSession) HasParticipant(userID int) bool {
	return s.InitiatorID == userID || s.RecipientID == userID
}

// Other returns the participant that is not userID.
func (s ChatSession) Other(userID int) int {
	if s.InitiatorID == userID {
		return s.RecipientID
	}
	return s.InitiatorID
}

// Pair returns the participants in canonical (low, high) order.
func (s ChatSession) Pair() (int, int) {
	return OrderedPair(s.InitiatorID, s.RecipientID)
}

func OrderedPair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

// InboxEntry is one session seen from one participant.
type InboxEntry struct {
	SessionID      string    `json:"session_id"`
	OtherUserID    int       `json:"other_user_id"`
	Username       string    `json:"username"`
	Active         bool      `json:"active"`
	Online         bool      `json:"online"`
	LatestMessage  string    `json:"latest_message"`
	LatestSequence int64     `json:"latest_sequence,omitempty"`
	LatestAt       time.Time `json:"latest_at,omitempty"`
}
