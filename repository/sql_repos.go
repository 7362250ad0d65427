package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"chat-sessions/errors"
	"chat-sessions/models"
)

type SQLUserRepo struct {
	db *sql.DB
}

func (r *SQLUserRepo) Create(ctx context.Context, username, hashedPwd string) (*models.User, error) {
	now := time.Now().UTC().Truncate(time.Millisecond)
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (username, password, created_at) VALUES (?, ?, ?)",
		username, hashedPwd, toMillis(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.ErrUserAlreadyExists
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.User{ID: int(id), Username: username, Password: hashedPwd, CreatedAt: now}, nil
}

func (r *SQLUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, password, created_at FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %q", errors.ErrNotFound, username)
	}
	return u, err
}

func (r *SQLUserRepo) FindByID(ctx context.Context, id int) (*models.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT id, username, password, created_at FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %d", errors.ErrNotFound, id)
	}
	return u, err
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u       models.User
		created int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.Password, &created); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	return &u, nil
}

type SQLSessionRepo struct {
	db *sql.DB
}

const sessionColumns = "id, initiator_id, recipient_id, created_at"

func (r *SQLSessionRepo) Create(ctx context.Context, session models.ChatSession, first models.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	lo, hi := session.Pair()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, initiator_id, recipient_id, participant_lo, participant_hi, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.InitiatorID, session.RecipientID, lo, hi, toMillis(session.CreatedAt),
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: session %s or pair %d/%d exists", errors.ErrConflict, session.ID, lo, hi)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, sequence_no, sender_id, body, sent_at)
		VALUES (?, 1, ?, ?, ?)`,
		session.ID, first.SenderID, first.Body, toMillis(first.Timestamp),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *SQLSessionRepo) FindByID(ctx context.Context, id string) (*models.ChatSession, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM chat_sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", errors.ErrNotFound, id)
	}
	return s, err
}

func (r *SQLSessionRepo) FindByPair(ctx context.Context, a, b int) (*models.ChatSession, error) {
	lo, hi := models.OrderedPair(a, b)
	row := r.db.QueryRowContext(ctx,
		"SELECT "+sessionColumns+" FROM chat_sessions WHERE participant_lo = ? AND participant_hi = ?", lo, hi)
	s, err := scanSession(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no session for %d/%d", errors.ErrNotFound, lo, hi)
	}
	return s, err
}

func (r *SQLSessionRepo) ListByUser(ctx context.Context, userID int) ([]models.ChatSession, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sessionColumns+" FROM chat_sessions WHERE participant_lo = ? OR participant_hi = ? ORDER BY created_at, id",
		userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.ChatSession, error) {
	var (
		s       models.ChatSession
		created int64
	)
	if err := row.Scan(&s.ID, &s.InitiatorID, &s.RecipientID, &created); err != nil {
		return nil, err
	}
	s.CreatedAt = fromMillis(created)
	return &s, nil
}

type SQLMessageRepo struct {
	db *sql.DB
}

// Append reads the current maximum and inserts max+1 in one transaction.
// The primary key on (session_id, sequence_no) turns a lost race into
// errors.ErrConflict.
func (r *SQLMessageRepo) Append(ctx context.Context, msg models.Message) (models.Message, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var current int64
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sequence_no), 0) FROM messages WHERE session_id = ?", msg.SessionID,
	).Scan(&current); err != nil {
		return models.Message{}, err
	}

	msg.SequenceNo = current + 1
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (session_id, sequence_no, sender_id, body, sent_at)
		VALUES (?, ?, ?, ?, ?)`,
		msg.SessionID, msg.SequenceNo, msg.SenderID, msg.Body, toMillis(msg.Timestamp),
	); err != nil {
		if isUniqueViolation(err) {
			return models.Message{}, fmt.Errorf("%w: sequence %d of %s taken", errors.ErrConflict, msg.SequenceNo, msg.SessionID)
		}
		return models.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return models.Message{}, fmt.Errorf("%w: sequence %d of %s taken", errors.ErrConflict, msg.SequenceNo, msg.SessionID)
		}
		return models.Message{}, err
	}
	return msg, nil
}

func (r *SQLMessageRepo) ListBySession(ctx context.Context, sessionID string) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT session_id, sequence_no, sender_id, body, sent_at
		FROM messages WHERE session_id = ? ORDER BY sequence_no ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *SQLMessageRepo) Latest(ctx context.Context, sessionID string) (*models.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT session_id, sequence_no, sender_id, body, sent_at
		FROM messages WHERE session_id = ? ORDER BY sequence_no DESC LIMIT 1`, sessionID)
	m, err := scanMessage(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s has no messages", errors.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessage(row rowScanner) (models.Message, error) {
	var (
		m    models.Message
		sent int64
	)
	if err := row.Scan(&m.SessionID, &m.SequenceNo, &m.SenderID, &m.Body, &sent); err != nil {
		return models.Message{}, err
	}
	m.Timestamp = fromMillis(sent)
	return m, nil
}
