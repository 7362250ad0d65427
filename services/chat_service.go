package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"chat-sessions/config"
	"chat-sessions/errors"
	"chat-sessions/models"
	"chat-sessions/repository"
	"chat-sessions/utils"

	"github.com/go-playground/validator/v10"
)

const maxSessionIDAttempts = 5

// Publisher is the slice of the message bus the chat service needs.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Presence reports whether a user holds a live push connection.
type Presence interface {
	IsOnline(userID int) bool
}

// ChatService creates two-party sessions, orders their messages and builds
// inbox views. Every call receives the caller identity explicitly.
type ChatService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	messages repository.MessageRepository
	bus      Publisher
	presence Presence
	log      *slog.Logger

	maxMessageLength int
	storeTimeout     time.Duration

	pairLocks    *utils.KeyedMutex
	sessionLocks *utils.KeyedMutex
	validate     *validator.Validate
	now          func() time.Time
}

func NewChatService(ur repository.UserRepository, sr repository.SessionRepository, mr repository.MessageRepository, bus Publisher, log *slog.Logger, cfg *config.Config) *ChatService {
	return &ChatService{
		users:            ur,
		sessions:         sr,
		messages:         mr,
		bus:              bus,
		log:              log,
		maxMessageLength: cfg.MaxMessageLength,
		storeTimeout:     cfg.StoreTimeout,
		pairLocks:        utils.NewKeyedMutex(),
		sessionLocks:     utils.NewKeyedMutex(),
		validate:         validator.New(),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// SetPresence wires the push hub in after construction; the hub itself
// depends on the service.
func (s *ChatService) SetPresence(p Presence) {
	s.presence = p
}

type startSessionInput struct {
	Target string `validate:"required,max=64"`
}

// StartSession returns the session between initiator and targetUsername,
// creating it with a "New Chat Request" message when none exists.
func (s *ChatService) StartSession(ctx context.Context, initiator models.Identity, targetUsername string) (string, error) {
	if err := s.validate.Struct(startSessionInput{Target: targetUsername}); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidOperation, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	target, err := s.users.FindByUsername(ctx, targetUsername)
	if err != nil {
		return "", storeErr(err)
	}
	if target.ID == initiator.UserID {
		return "", fmt.Errorf("%w: cannot start a chat with yourself", errors.ErrInvalidOperation)
	}

	lo, hi := models.OrderedPair(initiator.UserID, target.ID)
	unlock := s.pairLocks.Lock(fmt.Sprintf("%d:%d", lo, hi))
	defer unlock()

	if existing, err := s.findByPair(ctx, lo, hi); err != nil || existing != nil {
		if err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	for range maxSessionIDAttempts {
		id, err := utils.NewSessionID()
		if err != nil {
			return "", fmt.Errorf("%w: %v", errors.ErrUnavailable, err)
		}
		if _, err := s.sessions.FindByID(ctx, id); err == nil {
			s.log.Debug("Session id collision", "session_id", id)
			continue
		} else if !stderrors.Is(err, errors.ErrNotFound) {
			return "", storeErr(err)
		}

		now := s.now().Truncate(time.Millisecond)
		session := models.ChatSession{ID: id, InitiatorID: initiator.UserID, RecipientID: target.ID, CreatedAt: now}
		first := models.Message{SessionID: id, SenderID: initiator.UserID, Body: models.InitialMessageBody, Timestamp: now}

		err = s.sessions.Create(ctx, session, first)
		if err == nil {
			s.log.Info("Chat session started", "session_id", id, "initiator", initiator.UserID, "recipient", target.ID)
			return id, nil
		}
		if !stderrors.Is(err, errors.ErrConflict) {
			return "", storeErr(err)
		}
		// Either another process created the pair or the id was taken.
		if existing, ferr := s.findByPair(ctx, lo, hi); ferr != nil || existing != nil {
			if ferr != nil {
				return "", ferr
			}
			return existing.ID, nil
		}
	}
	return "", fmt.Errorf("%w: could not allocate a session id", errors.ErrUnavailable)
}

// findByPair returns nil, nil when the pair has no session.
func (s *ChatService) findByPair(ctx context.Context, a, b int) (*models.ChatSession, error) {
	session, err := s.sessions.FindByPair(ctx, a, b)
	if stderrors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(err)
	}
	return session, nil
}

// Session returns the session if caller takes part in it.
func (s *ChatService) Session(ctx context.Context, sessionID string, caller models.Identity) (*models.ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.authorize(ctx, sessionID, caller)
}

func (s *ChatService) authorize(ctx context.Context, sessionID string, caller models.Identity) (*models.ChatSession, error) {
	if !utils.IsSessionID(sessionID) {
		return nil, fmt.Errorf("%w: malformed session id %q", errors.ErrInvalidOperation, sessionID)
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, storeErr(err)
	}
	if !session.HasParticipant(caller.UserID) {
		return nil, fmt.Errorf("%w: user %d is not part of session %s", errors.ErrForbidden, caller.UserID, sessionID)
	}
	return session, nil
}

// GetInbox yields one entry per session of user, resolving each entry as
// the caller iterates. activeSessionID marks the currently open session and
// may be empty. The sequence can be ranged over once.
func (s *ChatService) GetInbox(ctx context.Context, user models.Identity, activeSessionID string) iter.Seq2[models.InboxEntry, error] {
	var consumed atomic.Bool
	return func(yield func(models.InboxEntry, error) bool) {
		if !consumed.CompareAndSwap(false, true) {
			yield(models.InboxEntry{}, fmt.Errorf("%w: inbox already consumed", errors.ErrInvalidOperation))
			return
		}

		listCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
		sessions, err := s.sessions.ListByUser(listCtx, user.UserID)
		cancel()
		if err != nil {
			yield(models.InboxEntry{}, storeErr(err))
			return
		}

		for _, session := range sessions {
			entry, err := s.inboxEntry(ctx, user, session, activeSessionID)
			if !yield(entry, err) || err != nil {
				return
			}
		}
	}
}

func (s *ChatService) inboxEntry(ctx context.Context, user models.Identity, session models.ChatSession, active string) (models.InboxEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	otherID := session.Other(user.UserID)
	other, err := s.users.FindByID(ctx, otherID)
	if err != nil {
		return models.InboxEntry{}, storeErr(err)
	}

	entry := models.InboxEntry{
		SessionID:     session.ID,
		OtherUserID:   otherID,
		Username:      other.Username,
		Active:        active != "" && active == session.ID,
		LatestMessage: models.NoMessagesYet,
	}
	if s.presence != nil {
		entry.Online = s.presence.IsOnline(otherID)
	}

	latest, err := s.messages.Latest(ctx, session.ID)
	switch {
	case err == nil:
		entry.LatestMessage = latest.Body
		entry.LatestSequence = latest.SequenceNo
		entry.LatestAt = latest.Timestamp
	case !stderrors.Is(err, errors.ErrNotFound):
		return models.InboxEntry{}, storeErr(err)
	}
	return entry, nil
}

// CollectInbox drains an inbox sequence, stopping at the first error.
func CollectInbox(seq iter.Seq2[models.InboxEntry, error]) ([]models.InboxEntry, error) {
	entries := []models.InboxEntry{}
	for entry, err := range seq {
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *ChatService) publish(event models.Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error("Encoding event failed", "type", event.Type, "error", err)
		return
	}
	s.bus.Publish(event.SessionID, payload)
}

// storeErr keeps taxonomy errors as they are and turns anything else coming
// out of the store (timeouts, driver failures) into ErrUnavailable.
func storeErr(err error) error {
	for _, known := range []error{
		errors.ErrNotFound, errors.ErrForbidden, errors.ErrInvalidOperation,
		errors.ErrConflict, errors.ErrUnavailable,
	} {
		if stderrors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", errors.ErrUnavailable, err)
}
