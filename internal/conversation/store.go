package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conversationCols is the standard SELECT column list for scanConversation.
const conversationCols = `id, user_id, title, is_archived, message_count,
	last_activity, created_at, updated_at`

// messageCols is the standard SELECT column list for scanMessage.
const messageCols = `id, conversation_id, user_id, role, content,
	is_edited, edited_at, created_at, updated_at`

// Store manages conversations and their messages in PostgreSQL.
//
// Mutations that touch both a message and its conversation's derived
// statistics run in a single transaction with the conversation row
// locked, so messageCount and lastActivity stay consistent under
// concurrent appends and deletes.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a conversation Store. A nil logger falls back to
// slog.Default().
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Create inserts a conversation for userID. A blank title becomes
// DefaultTitle.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, title string) (*Conversation, error) {
	if title == "" {
		title = DefaultTitle
	}

	c, err := scanConversation(s.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, title)
		VALUES ($1, $2)
		RETURNING `+conversationCols,
		userID, title))
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("created conversation", "id", c.ID, "user_id", userID)
	return c, nil
}

// List returns one page of the user's conversations filtered by archived
// state, ordered by last activity descending.
func (s *Store) List(ctx context.Context, userID uuid.UUID, archived bool, page, pageSize int) ([]*Conversation, Pagination, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM conversations
		WHERE user_id = $1 AND is_archived = $2`,
		userID, archived).Scan(&total)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("counting conversations: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+conversationCols+` FROM conversations
		WHERE user_id = $1 AND is_archived = $2
		ORDER BY last_activity DESC
		LIMIT $3 OFFSET $4`,
		userID, archived, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	items, err := collectConversations(rows)
	if err != nil {
		return nil, Pagination{}, err
	}

	return items, paginate(page, pageSize, total), nil
}

// Get returns a conversation and its full message list in creation order.
// Returns ErrNotFound unless the conversation exists and belongs to userID.
func (s *Store) Get(ctx context.Context, id, userID uuid.UUID) (*Conversation, []*Message, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		SELECT `+conversationCols+` FROM conversations
		WHERE id = $1 AND user_id = $2`,
		id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("getting conversation: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC`,
		id)
	if err != nil {
		return nil, nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, nil, err
	}

	return c, msgs, nil
}

// Update applies patch to an owned conversation. lastActivity is always
// refreshed, regardless of which fields changed.
func (s *Store) Update(ctx context.Context, id, userID uuid.UUID, patch Patch) (*Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		UPDATE conversations
		SET title       = COALESCE($3, title),
		    is_archived = COALESCE($4, is_archived),
		    last_activity = now(),
		    updated_at    = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+conversationCols,
		id, userID, patch.Title, patch.IsArchived))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("updating conversation: %w", err)
	}

	s.logger.Debug("updated conversation", "id", id)
	return c, nil
}

// SetArchived sets the archived flag on an owned conversation.
func (s *Store) SetArchived(ctx context.Context, id, userID uuid.UUID, archived bool) (*Conversation, error) {
	c, err := scanConversation(s.pool.QueryRow(ctx, `
		UPDATE conversations
		SET is_archived = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+conversationCols,
		id, userID, archived))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archiving conversation: %w", err)
	}
	return c, nil
}

// Delete removes an owned conversation and, through the messages table's
// ON DELETE CASCADE constraint, every message under it in the same
// statement. No orphaned messages can survive.
func (s *Store) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM conversations WHERE id = $1 AND user_id = $2`,
		id, userID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("deleted conversation", "id", id)
	return nil
}

// AppendMessage adds a message to an owned conversation and updates the
// conversation's derived statistics in the same transaction:
//
//   - messageCount is incremented
//   - lastActivity is set to now
//   - the first user-role message of an empty conversation derives the title
//
// The conversation row is locked with SELECT ... FOR UPDATE so concurrent
// appends cannot lose counter updates. Returns ErrNotFound unless the
// conversation exists and belongs to userID.
func (s *Store) AppendMessage(ctx context.Context, userID, conversationID uuid.UUID, content, role string) (*Message, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	var messageCount int
	err = tx.QueryRow(ctx, `
		SELECT message_count FROM conversations
		WHERE id = $1 AND user_id = $2
		FOR UPDATE`,
		conversationID, userID).Scan(&messageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("locking conversation: %w", err)
	}

	msg, err := scanMessage(tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, user_id, role, content)
		VALUES ($1, $2, $3, $4)
		RETURNING `+messageCols,
		conversationID, userID, role, content))
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}

	if role == RoleUser && messageCount == 0 {
		_, err = tx.Exec(ctx, `
			UPDATE conversations
			SET message_count = message_count + 1,
			    last_activity = now(),
			    updated_at    = now(),
			    title         = $2
			WHERE id = $1`,
			conversationID, DeriveTitle(content))
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE conversations
			SET message_count = message_count + 1,
			    last_activity = now(),
			    updated_at    = now()
			WHERE id = $1`,
			conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("updating conversation stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing message append: %w", err)
	}

	s.logger.Debug("appended message",
		"id", msg.ID, "conversation_id", conversationID, "role", role)
	return msg, nil
}

// ListMessages returns one page of a conversation's messages in creation
// order. Returns ErrNotFound unless the conversation belongs to userID.
func (s *Store) ListMessages(ctx context.Context, conversationID, userID uuid.UUID, page, pageSize int) ([]*Message, Pagination, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT c.message_count FROM conversations c
		WHERE c.id = $1 AND c.user_id = $2`,
		conversationID, userID).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Pagination{}, ErrNotFound
		}
		return nil, Pagination{}, fmt.Errorf("checking conversation ownership: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageCols+` FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3`,
		conversationID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs, err := collectMessages(rows)
	if err != nil {
		return nil, Pagination{}, err
	}

	return msgs, paginate(page, pageSize, total), nil
}

// EditMessage replaces the content of a message authored by userID,
// marking it edited. Only content may change; role and ownership are
// immutable. Returns ErrMessageNotFound unless the message exists and
// userID is its author.
func (s *Store) EditMessage(ctx context.Context, id, userID uuid.UUID, content string) (*Message, error) {
	msg, err := scanMessage(s.pool.QueryRow(ctx, `
		UPDATE messages
		SET content = $3, is_edited = TRUE, edited_at = now(), updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+messageCols,
		id, userID, content))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("editing message: %w", err)
	}

	s.logger.Debug("edited message", "id", id)
	return msg, nil
}

// DeleteMessage removes a message authored by userID and updates the
// owning conversation's statistics in the same transaction. The counter
// decrement floors at zero rather than going negative.
func (s *Store) DeleteMessage(ctx context.Context, id, userID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", err)
		}
	}()

	var conversationID uuid.UUID
	err = tx.QueryRow(ctx, `
		DELETE FROM messages
		WHERE id = $1 AND user_id = $2
		RETURNING conversation_id`,
		id, userID).Scan(&conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("deleting message: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET message_count = GREATEST(message_count - 1, 0),
		    last_activity = now(),
		    updated_at    = now()
		WHERE id = $1`,
		conversationID)
	if err != nil {
		return fmt.Errorf("updating conversation stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing message delete: %w", err)
	}

	s.logger.Debug("deleted message", "id", id, "conversation_id", conversationID)
	return nil
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.IsArchived, &c.MessageCount,
		&c.LastActivity, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectConversations(rows pgx.Rows) ([]*Conversation, error) {
	items := make([]*Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	return items, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content,
		&m.IsEdited, &m.EditedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func collectMessages(rows pgx.Rows) ([]*Message, error) {
	items := make([]*Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return items, nil
}
