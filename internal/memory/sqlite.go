package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteMemory implements Memory using SQLite.
type SQLiteMemory struct {
	db *sql.DB
}

// NewSQLiteMemory opens (or creates) a SQLite database at the given path.
func NewSQLiteMemory(dbPath string) (*SQLiteMemory, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	m := &SQLiteMemory{db: db}
	if err := m.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return m, nil
}

func (m *SQLiteMemory) migrate() error {
	for _, stmt := range migrations {
		if _, err := m.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *SQLiteMemory) SaveMessage(ctx context.Context, msg *StoredMessage) (int64, error) {
	var probsJSON *string
	if len(msg.EmotionProbabilities) > 0 {
		data, _ := json.Marshal(msg.EmotionProbabilities)
		s := string(data)
		probsJSON = &s
	}

	res, err := m.db.ExecContext(ctx,
		`INSERT INTO messages (user_id, session_id, role, content, emotion, emotion_text, emotion_probabilities)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msg.UserID, msg.SessionID, msg.Role, msg.Content,
		nullable(msg.Emotion), nullable(msg.EmotionText), probsJSON,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetHistory returns the most recent limit turns of one session in
// chronological order.
func (m *SQLiteMemory) GetHistory(ctx context.Context, userID, sessionID string, limit int) ([]StoredMessage, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, role, content, emotion, emotion_text, emotion_probabilities, created_at FROM (
			SELECT id, user_id, session_id, role, content, emotion, emotion_text, emotion_probabilities, created_at
			FROM messages WHERE user_id = ? AND session_id = ? ORDER BY id DESC LIMIT ?
		) sub ORDER BY id ASC`,
		userID, sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []StoredMessage
	for rows.Next() {
		var msg StoredMessage
		var emotion, emotionText, probsJSON, createdAt sql.NullString

		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.SessionID, &msg.Role, &msg.Content,
			&emotion, &emotionText, &probsJSON, &createdAt); err != nil {
			return nil, err
		}

		msg.Emotion = emotion.String
		msg.EmotionText = emotionText.String
		msg.CreatedAt = parseSQLiteTime(createdAt.String)
		if probsJSON.Valid {
			_ = json.Unmarshal([]byte(probsJSON.String), &msg.EmotionProbabilities)
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// ListSessions returns the sessions recorded for a user, newest first, with
// any stored summary attached.
func (m *SQLiteMemory) ListSessions(ctx context.Context, userID string) ([]SessionInfo, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT m.session_id, COUNT(*), MAX(m.created_at), COALESCE(s.summary, '')
		FROM messages m
		LEFT JOIN summaries s ON s.user_id = m.user_id AND s.session_id = m.session_id
		WHERE m.user_id = ?
		GROUP BY m.session_id
		ORDER BY MAX(m.created_at) DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var last sql.NullString
		if err := rows.Scan(&info.SessionID, &info.MessageCount, &last, &info.Summary); err != nil {
			return nil, err
		}
		info.LastActivity = parseSQLiteTime(last.String)
		sessions = append(sessions, info)
	}
	return sessions, rows.Err()
}

func (m *SQLiteMemory) SaveSummary(ctx context.Context, userID, sessionID, summary string) error {
	_, err := m.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO summaries (user_id, session_id, summary, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`,
		userID, sessionID, summary,
	)
	return err
}

func (m *SQLiteMemory) GetSummary(ctx context.Context, userID, sessionID string) (string, error) {
	var summary string
	err := m.db.QueryRowContext(ctx,
		`SELECT summary FROM summaries WHERE user_id = ? AND session_id = ?`,
		userID, sessionID,
	).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return summary, err
}

// SearchSummaries returns a user's summaries newest first, filtered by a
// substring match when query is non-empty.
func (m *SQLiteMemory) SearchSummaries(ctx context.Context, userID, query string, limit int) ([]SummaryRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT user_id, session_id, summary, updated_at FROM summaries
		WHERE user_id = ? AND (? = '' OR summary LIKE '%' || ? || '%')
		ORDER BY updated_at DESC LIMIT ?`,
		userID, query, query, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SummaryRecord
	for rows.Next() {
		var rec SummaryRecord
		var updated sql.NullString
		if err := rows.Scan(&rec.UserID, &rec.SessionID, &rec.Summary, &updated); err != nil {
			return nil, err
		}
		rec.UpdatedAt = parseSQLiteTime(updated.String)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteOlderThan removes messages created before the cutoff and returns
// how many rows were swept.
func (m *SQLiteMemory) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM messages WHERE created_at < ?`,
		cutoff.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (m *SQLiteMemory) Close() error {
	return m.db.Close()
}

// sqliteTimeLayout matches CURRENT_TIMESTAMP output, so string comparisons
// in SQL order correctly.
const sqliteTimeLayout = "2006-01-02 15:04:05"

func parseSQLiteTime(s string) time.Time {
	if t, err := time.Parse(sqliteTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
