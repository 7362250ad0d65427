package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"chat-sessions/errors"
	"chat-sessions/models"
)

// PostMessage appends body to the session and publishes it to live
// subscribers. A zero timestamp means now.
func (s *ChatService) PostMessage(ctx context.Context, sessionID string, sender models.Identity, body string, timestamp time.Time) (models.MessageID, error) {
	msg, err := s.PostMessageFrom(ctx, "", sessionID, sender, body, timestamp)
	if err != nil {
		return models.MessageID{}, err
	}
	return msg.ID(), nil
}

// PostMessageFrom is PostMessage for a push connection: origin is the
// connection id, and subscribers on that connection are not sent the echo.
func (s *ChatService) PostMessageFrom(ctx context.Context, origin, sessionID string, sender models.Identity, body string, timestamp time.Time) (models.Message, error) {
	if strings.TrimSpace(body) == "" {
		return models.Message{}, fmt.Errorf("%w: empty message", errors.ErrInvalidOperation)
	}
	if utf8.RuneCountInString(body) > s.maxMessageLength {
		return models.Message{}, fmt.Errorf("%w: message too long (max %d characters)", errors.ErrInvalidOperation, s.maxMessageLength)
	}
	if timestamp.IsZero() {
		timestamp = s.now()
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.authorize(ctx, sessionID, sender); err != nil {
		return models.Message{}, err
	}

	msg := models.Message{
		SessionID: sessionID,
		SenderID:  sender.UserID,
		Body:      body,
		Timestamp: timestamp.UTC().Truncate(time.Millisecond),
	}

	saved, err := s.appendMessage(ctx, msg)
	if err != nil {
		return models.Message{}, err
	}

	s.log.Debug("Message posted", "session_id", saved.SessionID, "sequence_no", saved.SequenceNo, "sender", saved.SenderID)
	s.publish(models.MessageEvent(saved, origin))
	return saved, nil
}

// appendMessage holds the session lock across read-max and insert. A
// conflict means another process won the sequence number; it is retried
// once before giving up.
func (s *ChatService) appendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	unlock := s.sessionLocks.Lock(msg.SessionID)
	defer unlock()

	saved, err := s.messages.Append(ctx, msg)
	if stderrors.Is(err, errors.ErrConflict) {
		s.log.Warn("Sequence conflict, retrying", "session_id", msg.SessionID, "error", err)
		saved, err = s.messages.Append(ctx, msg)
		if stderrors.Is(err, errors.ErrConflict) {
			return models.Message{}, fmt.Errorf("%w: %v", errors.ErrUnavailable, err)
		}
	}
	if err != nil {
		return models.Message{}, storeErr(err)
	}
	return saved, nil
}

// GetHistory returns every message of the session in sequence order.
func (s *ChatService) GetHistory(ctx context.Context, sessionID string, caller models.Identity) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if _, err := s.authorize(ctx, sessionID, caller); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	return msgs, nil
}
