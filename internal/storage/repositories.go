package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// Common errors
var (
	ErrNotFound        = errors.New("record not found")
	ErrConflict        = errors.New("record conflict")
	ErrInvalidProgress = errors.New("invalid progress delta")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// isUniqueViolation matches the unique-constraint errors of both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

// UserRepository handles user CRUD operations.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a user. A taken username or email returns ErrConflict.
func (r *UserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO users (id, username, email, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, username, email, created_at FROM users WHERE id = $1`
	user := &User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// GetByUsername retrieves a user by username.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT id, username, email, created_at FROM users WHERE username = $1`
	user := &User{}
	err := r.db.QueryRowContext(ctx, query, username).Scan(&user.ID, &user.Username, &user.Email, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return user, err
}

// SessionRepository handles study session operations.
type SessionRepository struct {
	db DB
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a session with zeroed counters. SessionDate is normalized to midnight UTC.
func (r *SessionRepository) Create(ctx context.Context, session *domain.SessionRecord) error {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.SessionDate = day(session.SessionDate)

	query := `
		INSERT INTO study_sessions (id, user_id, session_date, questions_answered, correct_answers,
			study_time_minutes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.SessionDate,
		session.QuestionsAnswered, session.CorrectAnswers, session.StudyMinutes,
		time.Now().UTC(),
	)
	return err
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SessionRecord, error) {
	query := `
		SELECT id, user_id, session_date, questions_answered, correct_answers, study_time_minutes
		FROM study_sessions WHERE id = $1
	`
	s := &domain.SessionRecord{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.SessionDate, &s.QuestionsAnswered, &s.CorrectAnswers, &s.StudyMinutes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// AddProgress increments a session's counters.
func (r *SessionRepository) AddProgress(ctx context.Context, id uuid.UUID, delta ProgressDelta) error {
	query := `
		UPDATE study_sessions SET
			questions_answered = questions_answered + $1,
			correct_answers = correct_answers + $2,
			study_time_minutes = study_time_minutes + $3
		WHERE id = $4
	`
	result, err := r.db.ExecContext(ctx, query,
		delta.QuestionsAnswered, delta.CorrectAnswers, delta.StudyMinutes, id,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser lists a user's sessions, most recent first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.SessionRecord, error) {
	query := `
		SELECT id, user_id, session_date, questions_answered, correct_answers, study_time_minutes
		FROM study_sessions
		WHERE user_id = $1
		ORDER BY session_date DESC, created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.SessionRecord
	for rows.Next() {
		s := &domain.SessionRecord{}
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.SessionDate, &s.QuestionsAnswered, &s.CorrectAnswers, &s.StudyMinutes,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DocumentRepository records extracted documents.
type DocumentRepository struct {
	db DB
}

// NewDocumentRepository creates a new document repository.
func NewDocumentRepository(db DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert records a document. Re-recording the same identity refreshes its upload date and preview.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *DocumentRecord) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now().UTC()
	}

	query := `
		INSERT INTO documents (id, filename, sha256, format, char_count, upload_date, content_preview)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (filename, sha256) DO UPDATE SET
			upload_date = excluded.upload_date,
			content_preview = excluded.content_preview
	`
	_, err := r.db.ExecContext(ctx, query,
		doc.ID, doc.DocumentID.Filename, doc.DocumentID.SHA256, doc.Format,
		doc.CharCount, doc.UploadDate, doc.ContentPreview,
	)
	return err
}

// Get retrieves a document record by identity.
func (r *DocumentRepository) Get(ctx context.Context, id domain.DocumentID) (*DocumentRecord, error) {
	query := `
		SELECT id, filename, sha256, format, char_count, upload_date, content_preview
		FROM documents WHERE filename = $1 AND sha256 = $2
	`
	doc := &DocumentRecord{}
	var preview sql.NullString
	err := r.db.QueryRowContext(ctx, query, id.Filename, id.SHA256).Scan(
		&doc.ID, &doc.DocumentID.Filename, &doc.DocumentID.SHA256, &doc.Format,
		&doc.CharCount, &doc.UploadDate, &preview,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	doc.ContentPreview = preview.String
	return doc, err
}

// ListRecent lists the most recently uploaded documents.
func (r *DocumentRepository) ListRecent(ctx context.Context, limit int) ([]*DocumentRecord, error) {
	query := `
		SELECT id, filename, sha256, format, char_count, upload_date, content_preview
		FROM documents
		ORDER BY upload_date DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*DocumentRecord
	for rows.Next() {
		doc := &DocumentRecord{}
		var preview sql.NullString
		if err := rows.Scan(
			&doc.ID, &doc.DocumentID.Filename, &doc.DocumentID.SHA256, &doc.Format,
			&doc.CharCount, &doc.UploadDate, &preview,
		); err != nil {
			return nil, err
		}
		doc.ContentPreview = preview.String
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// OutcomeRepository stores task outcome records.
type OutcomeRepository struct {
	db DB
}

// NewOutcomeRepository creates a new outcome repository.
func NewOutcomeRepository(db DB) *OutcomeRepository {
	return &OutcomeRepository{db: db}
}

// Create inserts an outcome.
func (r *OutcomeRepository) Create(ctx context.Context, o *domain.Outcome) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.OccurredAt.IsZero() {
		o.OccurredAt = time.Now().UTC()
	}

	var errorKind sql.NullString
	if o.ErrorKind != "" {
		errorKind = sql.NullString{String: string(o.ErrorKind), Valid: true}
	}

	query := `
		INSERT INTO task_outcomes (id, filename, sha256, task_kind, success, error_kind, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		o.ID, o.DocumentID.Filename, o.DocumentID.SHA256, o.TaskKind, o.Success, errorKind, o.OccurredAt,
	)
	return err
}

// ListByDocument lists a document's outcomes, most recent first.
func (r *OutcomeRepository) ListByDocument(ctx context.Context, id domain.DocumentID, limit int) ([]*domain.Outcome, error) {
	query := `
		SELECT id, filename, sha256, task_kind, success, error_kind, occurred_at
		FROM task_outcomes
		WHERE filename = $1 AND sha256 = $2
		ORDER BY occurred_at DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, id.Filename, id.SHA256, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []*domain.Outcome
	for rows.Next() {
		o := &domain.Outcome{}
		var errorKind sql.NullString
		if err := rows.Scan(
			&o.ID, &o.DocumentID.Filename, &o.DocumentID.SHA256, &o.TaskKind, &o.Success, &errorKind, &o.OccurredAt,
		); err != nil {
			return nil, err
		}
		o.ErrorKind = domain.Kind(errorKind.String)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

// day truncates t to midnight UTC.
func day(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
