package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/chunk"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

// PreviewChars is the default length of a stored document preview.
const PreviewChars = 500

// ProgressStore is the persistence sink for study progress. It implements domain.OutcomeSink.
type ProgressStore struct {
	users     *UserRepository
	sessions  *SessionRepository
	documents *DocumentRepository
	outcomes  *OutcomeRepository
	preview   int
	now       func() time.Time
}

// StoreOption configures a ProgressStore.
type StoreOption func(*ProgressStore)

// WithPreviewChars sets the stored preview length.
func WithPreviewChars(n int) StoreOption {
	return func(s *ProgressStore) {
		if n > 0 {
			s.preview = n
		}
	}
}

// WithStoreClock overrides the time source.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *ProgressStore) { s.now = now }
}

// NewProgressStore creates a store over an open, migrated database.
func NewProgressStore(db *sql.DB, opts ...StoreOption) *ProgressStore {
	s := &ProgressStore{
		users:     NewUserRepository(db),
		sessions:  NewSessionRepository(db),
		documents: NewDocumentRepository(db),
		outcomes:  NewOutcomeRepository(db),
		preview:   PreviewChars,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Report persists a task outcome.
func (s *ProgressStore) Report(ctx context.Context, outcome domain.Outcome) error {
	if err := s.outcomes.Create(ctx, &outcome); err != nil {
		return fmt.Errorf("store outcome: %w", err)
	}
	return nil
}

// Outcomes lists a document's most recent outcomes.
func (s *ProgressStore) Outcomes(ctx context.Context, id domain.DocumentID, limit int) ([]*domain.Outcome, error) {
	return s.outcomes.ListByDocument(ctx, id, limit)
}

// RecordDocument stores an extracted document with a preview of its text.
func (s *ProgressStore) RecordDocument(ctx context.Context, id domain.DocumentID, format domain.Format, text string) (*DocumentRecord, error) {
	rec := &DocumentRecord{
		DocumentID:     id,
		Format:         format,
		CharCount:      len([]rune(text)),
		UploadDate:     s.now().UTC(),
		ContentPreview: chunk.Preview(text, s.preview),
	}
	if err := s.documents.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	return rec, nil
}

// Document retrieves a recorded document.
func (s *ProgressStore) Document(ctx context.Context, id domain.DocumentID) (*DocumentRecord, error) {
	return s.documents.Get(ctx, id)
}

// RecentDocuments lists the latest uploads.
func (s *ProgressStore) RecentDocuments(ctx context.Context, limit int) ([]*DocumentRecord, error) {
	return s.documents.ListRecent(ctx, limit)
}

// CreateUser registers a learner.
func (s *ProgressStore) CreateUser(ctx context.Context, username, email string) (*User, error) {
	user := &User{Username: username, Email: email}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// User retrieves a learner by ID.
func (s *ProgressStore) User(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// UserByName retrieves a learner by username.
func (s *ProgressStore) UserByName(ctx context.Context, username string) (*User, error) {
	return s.users.GetByUsername(ctx, username)
}

// StartSession opens a study session for today.
func (s *ProgressStore) StartSession(ctx context.Context, userID uuid.UUID) (*domain.SessionRecord, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	session := &domain.SessionRecord{UserID: userID, SessionDate: s.now()}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return session, nil
}

// AddProgress adds answered questions, correct answers and minutes to a session and returns
// the updated session.
func (s *ProgressStore) AddProgress(ctx context.Context, sessionID uuid.UUID, delta ProgressDelta) (*domain.SessionRecord, error) {
	if delta.QuestionsAnswered < 0 || delta.CorrectAnswers < 0 || delta.StudyMinutes < 0 {
		return nil, fmt.Errorf("%w: counters cannot decrease", ErrInvalidProgress)
	}
	if delta.CorrectAnswers > delta.QuestionsAnswered {
		return nil, fmt.Errorf("%w: %d correct of %d answered", ErrInvalidProgress, delta.CorrectAnswers, delta.QuestionsAnswered)
	}

	if err := s.sessions.AddProgress(ctx, sessionID, delta); err != nil {
		return nil, err
	}
	return s.sessions.GetByID(ctx, sessionID)
}

// Dashboard aggregates a user's sessions.
func (s *ProgressStore) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return summarize(userID, sessions, s.now()), nil
}

func summarize(userID uuid.UUID, sessions []*domain.SessionRecord, now time.Time) *Dashboard {
	d := &Dashboard{UserID: userID, Sessions: len(sessions)}
	days := make([]time.Time, 0, len(sessions))
	for _, session := range sessions {
		d.QuestionsAnswered += session.QuestionsAnswered
		d.CorrectAnswers += session.CorrectAnswers
		d.StudyMinutes += session.StudyMinutes
		days = append(days, day(session.SessionDate))
	}
	if d.QuestionsAnswered > 0 {
		d.Accuracy = float64(d.CorrectAnswers) / float64(d.QuestionsAnswered)
	}
	if len(days) > 0 {
		last := days[0]
		d.LastSession = &last
	}
	d.StreakDays = streak(days, day(now))
	return d
}

// streak counts consecutive study days ending today, or yesterday if there is no session yet
// today. days must be sorted most recent first.
func streak(days []time.Time, today time.Time) int {
	if len(days) == 0 {
		return 0
	}
	expect := today
	if days[0].Before(today) {
		expect = today.AddDate(0, 0, -1)
	}

	n := 0
	for _, d := range days {
		switch {
		case d.Equal(expect):
			n++
			expect = expect.AddDate(0, 0, -1)
		case d.After(expect):
			// another session on an already counted day
		default:
			return n
		}
	}
	return n
}
