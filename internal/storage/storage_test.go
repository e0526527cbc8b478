package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

func openTestStore(t *testing.T) *storeFixture {
	t.Helper()
	ctx := context.Background()

	cfg := config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "study.db")},
	}
	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	clock := &fakeClock{now: time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)}
	return &storeFixture{
		store: NewProgressStore(db, WithStoreClock(clock.Now)),
		clock: clock,
		cfg:   cfg,
	}
}

type storeFixture struct {
	store *ProgressStore
	clock *fakeClock
	cfg   config.DatabaseConfig
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestOpen_MigrationsIdempotent(t *testing.T) {
	f := openTestStore(t)
	ctx := context.Background()

	// A second open of the same file finds nothing pending.
	db, err := Open(ctx, f.cfg)
	require.NoError(t, err)
	defer db.Close()

	status, err := NewMigrator(db, "sqlite").Check(ctx)
	require.NoError(t, err)
	assert.True(t, status.UpToDate)
	assert.Equal(t, []string{"0001_init_sqlite.sql"}, status.Applied)
	assert.Empty(t, status.Pending)
}

func TestMigrator_PostgresFileSet(t *testing.T) {
	m := NewMigrator(nil, "postgres")
	files, err := m.listMigrations()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql"}, files)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestReport_PersistsOutcomes(t *testing.T) {
	f := openTestStore(t)
	ctx := context.Background()
	doc := domain.NewDocumentID("notes.txt", []byte("notes"))

	require.NoError(t, f.store.Report(ctx, domain.Outcome{
		DocumentID: doc,
		TaskKind:   domain.TaskQuestion,
		Success:    true,
		OccurredAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, f.store.Report(ctx, domain.Outcome{
		DocumentID: doc,
		TaskKind:   domain.TaskSummarize,
		Success:    false,
		ErrorKind:  domain.KindDispatchFailure,
		OccurredAt: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}))

	outcomes, err := f.store.Outcomes(ctx, doc, 10)
	require.NoError(t, err)
	require.Len(t, outcomes, 2)

	assert.Equal(t, domain.TaskSummarize, outcomes[0].TaskKind)
	assert.False(t, outcomes[0].Success)
	assert.Equal(t, domain.KindDispatchFailure, outcomes[0].ErrorKind)

	assert.Equal(t, domain.TaskQuestion, outcomes[1].TaskKind)
	assert.True(t, outcomes[1].Success)
	assert.Equal(t, domain.Kind(""), outcomes[1].ErrorKind)
	assert.Equal(t, doc, outcomes[1].DocumentID)
}

func TestRecordDocument(t *testing.T) {
	f := openTestStore(t)
	ctx := context.Background()
	doc := domain.NewDocumentID("biology.pdf", []byte("%PDF"))
	text := strings.Repeat("é", 800)

	rec, err := f.store.RecordDocument(ctx, doc, domain.FormatPDF, text)
	require.NoError(t, err)
	assert.Equal(t, 800, rec.CharCount)
	assert.Equal(t, 500, len([]rune(rec.ContentPreview)))

	// Re-recording the same identity refreshes instead of duplicating.
	f.clock.now = f.clock.now.Add(time.Hour)
	_, err = f.store.RecordDocument(ctx, doc, domain.FormatPDF, "short")
	require.NoError(t, err)

	got, err := f.store.Document(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, "short", got.ContentPreview)
	assert.Equal(t, domain.FormatPDF, got.Format)
	assert.True(t, got.UploadDate.Equal(f.clock.now))

	recent, err := f.store.RecentDocuments(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)

	_, err = f.store.Document(ctx, domain.NewDocumentID("other.pdf", nil))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUsers(t *testing.T) {
	f := openTestStore(t)
	ctx := context.Background()

	user, err := f.store.CreateUser(ctx, "ada", "ada@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)

	_, err = f.store.CreateUser(ctx, "ada", "other@example.com")
	assert.ErrorIs(t, err, ErrConflict)

	got, err := f.store.UserByName(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = f.store.User(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionsAndDashboard(t *testing.T) {
	f := openTestStore(t)
	ctx := context.Background()

	user, err := f.store.CreateUser(ctx, "grace", "grace@example.com")
	require.NoError(t, err)

	// Sessions on Mar 8, Mar 9 and twice on Mar 10.
	f.clock.now = time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	s1, err := f.store.StartSession(ctx, user.ID)
	require.NoError(t, err)
	_, err = f.store.AddProgress(ctx, s1.ID, ProgressDelta{QuestionsAnswered: 10, CorrectAnswers: 7, StudyMinutes: 30})
	require.NoError(t, err)

	f.clock.now = time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC)
	_, err = f.store.StartSession(ctx, user.ID)
	require.NoError(t, err)

	f.clock.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s3, err := f.store.StartSession(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), s3.SessionDate)

	updated, err := f.store.AddProgress(ctx, s3.ID, ProgressDelta{QuestionsAnswered: 10, CorrectAnswers: 9, StudyMinutes: 15})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.QuestionsAnswered)
	updated, err = f.store.AddProgress(ctx, s3.ID, ProgressDelta{StudyMinutes: 5})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.StudyMinutes)

	_, err = f.store.StartSession(ctx, user.ID)
	require.NoError(t, err)

	dash, err := f.store.Dashboard(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, dash.Sessions)
	assert.Equal(t, 20, dash.QuestionsAnswered)
	assert.Equal(t, 16, dash.CorrectAnswers)
	assert.InDelta(t, 0.8, dash.Accuracy, 1e-9)
	assert.Equal(t, 50, dash.StudyMinutes)
	assert.Equal(t, 3, dash.StreakDays)
	require.NotNil(t, dash.LastSession)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), *dash.LastSession)
}

func TestAddProgress_Errors(t *testing.T) {
	f := openTestStore(t)
	ctx := context.Background()

	_, err := f.store.AddProgress(ctx, uuid.New(), ProgressDelta{QuestionsAnswered: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.store.AddProgress(ctx, uuid.New(), ProgressDelta{QuestionsAnswered: -1})
	assert.ErrorIs(t, err, ErrInvalidProgress)

	_, err = f.store.AddProgress(ctx, uuid.New(), ProgressDelta{QuestionsAnswered: 1, CorrectAnswers: 2})
	assert.ErrorIs(t, err, ErrInvalidProgress)

	_, err = f.store.StartSession(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDashboard_Empty(t *testing.T) {
	f := openTestStore(t)
	ctx := context.Background()

	user, err := f.store.CreateUser(ctx, "alan", "alan@example.com")
	require.NoError(t, err)

	dash, err := f.store.Dashboard(ctx, user.ID)
	require.NoError(t, err)
	assert.Zero(t, dash.Sessions)
	assert.Zero(t, dash.Accuracy)
	assert.Zero(t, dash.StreakDays)
	assert.Nil(t, dash.LastSession)
}

func TestStreak(t *testing.T) {
	today := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	d := func(offset int) time.Time { return today.AddDate(0, 0, offset) }

	tests := []struct {
		name string
		days []time.Time
		want int
	}{
		{"no sessions", nil, 0},
		{"today only", []time.Time{d(0)}, 1},
		{"yesterday only", []time.Time{d(-1)}, 1},
		{"lapsed", []time.Time{d(-2), d(-3)}, 0},
		{"run through today", []time.Time{d(0), d(-1), d(-2), d(-4)}, 3},
		{"duplicates", []time.Time{d(0), d(0), d(-1), d(-1)}, 2},
		{"run ending yesterday", []time.Time{d(-1), d(-2)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, streak(tt.days, today))
		})
	}
}
