//go:build integration

package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/config"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
)

func TestProgressStore_Postgres(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("study_engine_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := config.DatabaseConfig{Driver: "postgres", Postgres: config.PostgresConfig{DSN: dsn}}
	db, err := Open(ctx, cfg)
	require.NoError(t, err)
	defer db.Close()

	status, err := NewMigrator(db, "postgres").Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql"}, status.Applied)

	store := NewProgressStore(db)

	user, err := store.CreateUser(ctx, "ada", "ada@example.com")
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, "ada", "ada2@example.com")
	assert.ErrorIs(t, err, ErrConflict)

	session, err := store.StartSession(ctx, user.ID)
	require.NoError(t, err)
	_, err = store.AddProgress(ctx, session.ID, ProgressDelta{QuestionsAnswered: 4, CorrectAnswers: 3, StudyMinutes: 12})
	require.NoError(t, err)

	dash, err := store.Dashboard(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, dash.Sessions)
	assert.InDelta(t, 0.75, dash.Accuracy, 1e-9)
	assert.Equal(t, 1, dash.StreakDays)

	doc := domain.NewDocumentID("notes.txt", []byte("notes"))
	_, err = store.RecordDocument(ctx, doc, domain.FormatText, "Some notes.")
	require.NoError(t, err)
	_, err = store.RecordDocument(ctx, doc, domain.FormatText, "Some notes.")
	require.NoError(t, err)

	require.NoError(t, store.Report(ctx, domain.Outcome{
		DocumentID: doc,
		TaskKind:   domain.TaskGenerateQuiz,
		ErrorKind:  domain.KindInvalidTask,
	}))
	outcomes, err := store.Outcomes(ctx, doc, 5)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.KindInvalidTask, outcomes[0].ErrorKind)
}
