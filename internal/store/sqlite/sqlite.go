package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/buddychat/buddychat-server/internal/store"
)

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	screen_name   TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS buddies (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id   INTEGER NOT NULL REFERENCES users(id),
	buddy_id   INTEGER NOT NULL REFERENCES users(id),
	nick       TEXT NOT NULL DEFAULT '',
	group_name TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(owner_id, buddy_id)
);
CREATE INDEX IF NOT EXISTS idx_buddies_buddy ON buddies(buddy_id);

CREATE TABLE IF NOT EXISTS messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user_id INTEGER NOT NULL REFERENCES users(id),
	to_user_id   INTEGER NOT NULL REFERENCES users(id),
	body         TEXT NOT NULL,
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_read      BOOLEAN NOT NULL DEFAULT 0,
	is_delivered BOOLEAN NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(from_user_id, to_user_id, id);

CREATE TABLE IF NOT EXISTS offline_messages (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	recipient_id INTEGER NOT NULL REFERENCES users(id),
	message_id   INTEGER NOT NULL REFERENCES messages(id),
	created_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_offline_recipient ON offline_messages(recipient_id, id);

CREATE TABLE IF NOT EXISTS presence (
	user_id      INTEGER PRIMARY KEY REFERENCES users(id),
	status       TEXT NOT NULL DEFAULT 'online',
	away_message TEXT NOT NULL DEFAULT '',
	last_seen_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with a hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, screenName, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (screen_name, password_hash)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, screenName, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, screen_name, password_hash, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.ScreenName,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// GetUserByScreenName retrieves a user by screen name.
func (s *SQLiteStore) GetUserByScreenName(ctx context.Context, screenName string) (*store.User, error) {
	query := `
		SELECT id, screen_name, password_hash, created_at
		FROM users
		WHERE screen_name = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, screenName).Scan(
		&user.ID,
		&user.ScreenName,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	return &user, nil
}

// SearchUsers searches for users by screen name substring.
func (s *SQLiteStore) SearchUsers(ctx context.Context, query string) ([]*store.User, error) {
	q := `
		SELECT id, screen_name, password_hash, created_at
		FROM users
		WHERE screen_name LIKE ?
		ORDER BY screen_name ASC
		LIMIT 50
	`
	rows, err := s.db.QueryContext(ctx, q, "%"+query+"%")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]*store.User, 0)
	for rows.Next() {
		var user store.User
		if err := rows.Scan(&user.ID, &user.ScreenName, &user.PasswordHash, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// ==== BuddyStore implementation ====

// CreateBuddy inserts a directed edge owner -> buddy.
func (s *SQLiteStore) CreateBuddy(ctx context.Context, ownerID, buddyID int64, nick, groupName string) (*store.Buddy, error) {
	query := `
		INSERT INTO buddies (owner_id, buddy_id, nick, group_name)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, ownerID, buddyID, nick, groupName)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert buddy: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getBuddyByID(ctx, id)
}

func (s *SQLiteStore) getBuddyByID(ctx context.Context, id int64) (*store.Buddy, error) {
	query := `
		SELECT id, owner_id, buddy_id, nick, group_name, created_at
		FROM buddies
		WHERE id = ?
	`
	var b store.Buddy
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&b.ID, &b.OwnerID, &b.BuddyID, &b.Nick, &b.GroupName, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query buddy: %w", err)
	}
	return &b, nil
}

// GetBuddy retrieves a single edge.
func (s *SQLiteStore) GetBuddy(ctx context.Context, ownerID, buddyID int64) (*store.Buddy, error) {
	query := `
		SELECT id, owner_id, buddy_id, nick, group_name, created_at
		FROM buddies
		WHERE owner_id = ? AND buddy_id = ?
	`
	var b store.Buddy
	err := s.db.QueryRowContext(ctx, query, ownerID, buddyID).Scan(
		&b.ID, &b.OwnerID, &b.BuddyID, &b.Nick, &b.GroupName, &b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query buddy: %w", err)
	}
	return &b, nil
}

// UpdateBuddy replaces nick and group name on an existing edge.
func (s *SQLiteStore) UpdateBuddy(ctx context.Context, ownerID, buddyID int64, nick, groupName string) error {
	query := `
		UPDATE buddies SET nick = ?, group_name = ?
		WHERE owner_id = ? AND buddy_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, nick, groupName, ownerID, buddyID)
	if err != nil {
		return fmt.Errorf("update buddy: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteBuddy removes an edge. Absent edges are not an error.
func (s *SQLiteStore) DeleteBuddy(ctx context.Context, ownerID, buddyID int64) (bool, error) {
	query := `
		DELETE FROM buddies WHERE owner_id = ? AND buddy_id = ?
	`
	result, err := s.db.ExecContext(ctx, query, ownerID, buddyID)
	if err != nil {
		return false, fmt.Errorf("delete buddy: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListBuddies lists the owner's edges.
func (s *SQLiteStore) ListBuddies(ctx context.Context, ownerID int64) ([]*store.Buddy, error) {
	query := `
		SELECT id, owner_id, buddy_id, nick, group_name, created_at
		FROM buddies
		WHERE owner_id = ?
		ORDER BY group_name, nick
	`
	return s.queryBuddies(ctx, query, ownerID)
}

// ListAllBuddies returns every edge, used to warm the in-memory index.
func (s *SQLiteStore) ListAllBuddies(ctx context.Context) ([]*store.Buddy, error) {
	query := `
		SELECT id, owner_id, buddy_id, nick, group_name, created_at
		FROM buddies
	`
	return s.queryBuddies(ctx, query)
}

func (s *SQLiteStore) queryBuddies(ctx context.Context, query string, args ...any) ([]*store.Buddy, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query buddies: %w", err)
	}
	defer rows.Close()

	buddies := make([]*store.Buddy, 0)
	for rows.Next() {
		var b store.Buddy
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.BuddyID, &b.Nick, &b.GroupName, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan buddy: %w", err)
		}
		buddies = append(buddies, &b)
	}
	return buddies, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message and assigns its ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (from_user_id, to_user_id, body, created_at, is_read, is_delivered)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.FromUserID, msg.ToUserID, msg.Body, msg.CreatedAt, msg.IsRead, msg.IsDelivered)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// MarkDelivered flips the delivered flag on one message.
func (s *SQLiteStore) MarkDelivered(ctx context.Context, id int64) error {
	query := `UPDATE messages SET is_delivered = 1 WHERE id = ?`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// MarkConversationRead flips the read flag on every message sent from
// fromID to readerID.
func (s *SQLiteStore) MarkConversationRead(ctx context.Context, readerID, fromID int64) (int64, error) {
	query := `
		UPDATE messages SET is_read = 1
		WHERE from_user_id = ? AND to_user_id = ? AND is_read = 0
	`
	result, err := s.db.ExecContext(ctx, query, fromID, readerID)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListConversation retrieves one page of the conversation between two
// users in ascending order. beforeID of 0 means the most recent page.
func (s *SQLiteStore) ListConversation(ctx context.Context, userA, userB int64, limit int, beforeID int64) ([]*store.Message, error) {
	query := `
		SELECT id, from_user_id, to_user_id, body, created_at, is_read, is_delivered
		FROM messages
		WHERE ((from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?))
	`
	args := []any{userA, userB, userB, userA}
	if beforeID > 0 {
		query += ` AND id < ?`
		args = append(args, beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.FromUserID, &m.ToUserID, &m.Body, &m.CreatedAt, &m.IsRead, &m.IsDelivered); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Fetched newest-first for the LIMIT; callers get ascending order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// CountConversation returns the total message count between two users.
func (s *SQLiteStore) CountConversation(ctx context.Context, userA, userB int64) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE (from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)
	`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, userA, userB, userB, userA).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// ==== OfflineStore implementation ====

// EnqueueOffline appends a message to the recipient's backlog.
func (s *SQLiteStore) EnqueueOffline(ctx context.Context, recipientID, messageID int64) error {
	query := `
		INSERT INTO offline_messages (recipient_id, message_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, recipientID, messageID); err != nil {
		return fmt.Errorf("insert offline message: %w", err)
	}
	return nil
}

// FlushOffline atomically drains the recipient's backlog in FIFO order,
// marking all drained messages delivered.
func (s *SQLiteStore) FlushOffline(ctx context.Context, recipientID int64) ([]*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin flush: %w", err)
	}
	defer tx.Rollback()

	query := `
		SELECT m.id, m.from_user_id, m.to_user_id, m.body, m.created_at, m.is_read, m.is_delivered
		FROM offline_messages o
		JOIN messages m ON m.id = o.message_id
		WHERE o.recipient_id = ?
		ORDER BY o.id ASC
	`
	rows, err := tx.QueryContext(ctx, query, recipientID)
	if err != nil {
		return nil, fmt.Errorf("query offline messages: %w", err)
	}

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var m store.Message
		if err := rows.Scan(&m.ID, &m.FromUserID, &m.ToUserID, &m.Body, &m.CreatedAt, &m.IsRead, &m.IsDelivered); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan offline message: %w", err)
		}
		m.IsDelivered = true
		messages = append(messages, &m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(messages) == 0 {
		return messages, tx.Commit()
	}

	mark := `
		UPDATE messages SET is_delivered = 1
		WHERE id IN (SELECT message_id FROM offline_messages WHERE recipient_id = ?)
	`
	if _, err := tx.ExecContext(ctx, mark, recipientID); err != nil {
		return nil, fmt.Errorf("mark flushed delivered: %w", err)
	}

	drain := `DELETE FROM offline_messages WHERE recipient_id = ?`
	if _, err := tx.ExecContext(ctx, drain, recipientID); err != nil {
		return nil, fmt.Errorf("clear offline queue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit flush: %w", err)
	}
	return messages, nil
}

// CountOffline returns the recipient's backlog size.
func (s *SQLiteStore) CountOffline(ctx context.Context, recipientID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM offline_messages WHERE recipient_id = ?`
	var count int64
	if err := s.db.QueryRowContext(ctx, query, recipientID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count offline messages: %w", err)
	}
	return count, nil
}

// ==== PresenceStore implementation ====

// UpsertPresence writes the user's durable presence row.
func (s *SQLiteStore) UpsertPresence(ctx context.Context, p *store.Presence) error {
	query := `
		INSERT INTO presence (user_id, status, away_message, last_seen_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			status = excluded.status,
			away_message = excluded.away_message,
			last_seen_at = excluded.last_seen_at
	`
	if _, err := s.db.ExecContext(ctx, query, p.UserID, p.Status, p.AwayMessage, p.LastSeenAt); err != nil {
		return fmt.Errorf("upsert presence: %w", err)
	}
	return nil
}

// GetPresence retrieves a user's durable presence row.
func (s *SQLiteStore) GetPresence(ctx context.Context, userID int64) (*store.Presence, error) {
	query := `
		SELECT user_id, status, away_message, last_seen_at
		FROM presence
		WHERE user_id = ?
	`
	var p store.Presence
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&p.UserID, &p.Status, &p.AwayMessage, &p.LastSeenAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query presence: %w", err)
	}
	return &p, nil
}
