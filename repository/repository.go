//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=../mocks/mock_repository.go -package=mocks
package repository

import (
	"context"

	"chat-sessions/models"
)

type UserRepository interface {
	// Create fails with errors.ErrUserAlreadyExists on a taken username.
	Create(ctx context.Context, username, hashedPwd string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByID(ctx context.Context, id int) (*models.User, error)
}

type SessionRepository interface {
	// Create stores the session together with its first message. It fails
	// with errors.ErrConflict when the id or the participant pair is taken.
	Create(ctx context.Context, session models.ChatSession, first models.Message) error
	FindByID(ctx context.Context, id string) (*models.ChatSession, error)
	// FindByPair ignores the order of a and b.
	FindByPair(ctx context.Context, a, b int) (*models.ChatSession, error)
	// ListByUser returns the user's sessions in creation order.
	ListByUser(ctx context.Context, userID int) ([]models.ChatSession, error)
}

type MessageRepository interface {
	// Append stores msg under the next sequence number of its session and
	// returns it with SequenceNo set. It fails with errors.ErrConflict when a
	// concurrent writer took that number first.
	Append(ctx context.Context, msg models.Message) (models.Message, error)
	// ListBySession returns the full history in ascending sequence order.
	ListBySession(ctx context.Context, sessionID string) ([]models.Message, error)
	// Latest returns the message with the highest sequence number, or
	// errors.ErrNotFound for an empty session.
	Latest(ctx context.Context, sessionID string) (*models.Message, error)
}
