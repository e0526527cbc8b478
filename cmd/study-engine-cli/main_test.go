package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical-ai/spherical/libs/study-engine/internal/domain"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/storage"
	"github.com/spherical-ai/spherical/libs/study-engine/internal/study"
)

const notes = "Photosynthesis converts light energy into chemical energy in plants. " +
	"Chlorophyll absorbs mostly blue and red light from the sun. " +
	"The Calvin cycle fixes carbon dioxide into sugar molecules."

func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("STUDY_MODEL_PROVIDER", "mock")
	t.Setenv("DATABASE_URL", "sqlite:"+filepath.Join(dir, "study.db"))

	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte(notes), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "--no-color"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestExtract(t *testing.T) {
	path := setupEnv(t)

	out, err := run(t, "--json", "extract", path)
	require.NoError(t, err)

	var doc study.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "notes.txt", doc.ID.Filename)
	assert.Equal(t, domain.FormatText, doc.Format)
	assert.Equal(t, 28, doc.Words)
}

func TestExtract_Unsupported(t *testing.T) {
	setupEnv(t)
	path := filepath.Join(t.TempDir(), "slides.pptx")
	require.NoError(t, os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o644))

	_, err := run(t, "extract", path)
	require.Error(t, err)
	assert.Equal(t, domain.KindUnsupportedFormat, domain.KindOf(err))
	assert.NotEmpty(t, hintFor(err))
}

func TestAsk(t *testing.T) {
	path := setupEnv(t)

	out, err := run(t, "ask", path, "What", "does", "chlorophyll", "absorb?")
	require.NoError(t, err)
	assert.Contains(t, out, "Chlorophyll absorbs mostly blue and red light from the sun")
	assert.Contains(t, out, "Confidence: 25%")
	assert.Contains(t, out, "Low confidence answer")
}

func TestSummarize_ShortDocument(t *testing.T) {
	path := setupEnv(t)

	out, err := run(t, "--json", "summarize", path, "--max", "5")
	require.NoError(t, err)

	var res domain.TaskResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.NotNil(t, res.Summary)
	assert.Equal(t, domain.StateDone, res.State)
	assert.Equal(t, 28, res.Summary.OriginalWords)
	assert.Equal(t, 1, res.Summary.WindowsSkipped)
	assert.Empty(t, res.Summary.Text)
}

func TestQuiz(t *testing.T) {
	path := setupEnv(t)

	out, err := run(t, "quiz", path, "--count", "2", "--difficulty", "easy")
	require.NoError(t, err)
	assert.Contains(t, out, "Quiz (easy)")
	assert.Contains(t, out, "Photosynthesis")
}

func TestQuiz_InvalidDifficulty(t *testing.T) {
	path := setupEnv(t)

	_, err := run(t, "quiz", path, "--difficulty", "impossible")
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidTask, domain.KindOf(err))
}

func TestModelsStatus(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "models", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Models (mock)")
	assert.Contains(t, out, "3 of 3 capabilities ready")
}

func TestModelsStatus_MissingToken(t *testing.T) {
	setupEnv(t)
	t.Setenv("STUDY_MODEL_PROVIDER", "hfinference")
	t.Setenv("STUDY_MODEL_API_TOKEN", "")
	t.Setenv("HF_API_TOKEN", "")

	out, err := run(t, "models", "status")
	require.Error(t, err)
	assert.Equal(t, domain.KindLoadError, domain.KindOf(err))
	assert.Contains(t, out, "Models (hfinference)")
	assert.Contains(t, out, "API token is required")
}

func TestExtract_WithoutModelToken(t *testing.T) {
	path := setupEnv(t)
	t.Setenv("STUDY_MODEL_PROVIDER", "hfinference")
	t.Setenv("STUDY_MODEL_API_TOKEN", "")
	t.Setenv("HF_API_TOKEN", "")

	out, err := run(t, "--json", "extract", path)
	require.NoError(t, err)

	var doc study.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 28, doc.Words)
}

func TestSessionFlow(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "session", "user-create", "ada", "--email", "ada@example.com")
	require.NoError(t, err)

	_, err = run(t, "session", "user-create", "ada", "--email", "ada@example.com")
	require.Error(t, err)

	out, err := run(t, "--json", "session", "start", "--user", "ada")
	require.NoError(t, err)
	var session domain.SessionRecord
	require.NoError(t, json.Unmarshal([]byte(out), &session))

	_, err = run(t, "session", "progress", session.ID.String(), "--answered", "4", "--correct", "3", "--minutes", "15")
	require.NoError(t, err)

	_, err = run(t, "session", "progress", session.ID.String(), "--answered", "1", "--correct", "2")
	require.ErrorIs(t, err, storage.ErrInvalidProgress)

	out, err = run(t, "--json", "session", "dashboard", "--user", "ada")
	require.NoError(t, err)
	var d storage.Dashboard
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.Equal(t, 1, d.Sessions)
	assert.Equal(t, 4, d.QuestionsAnswered)
	assert.InDelta(t, 0.75, d.Accuracy, 1e-9)
	assert.Equal(t, 1, d.StreakDays)
}

func TestSession_UnknownUser(t *testing.T) {
	setupEnv(t)

	_, err := run(t, "session", "start", "--user", "nobody")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestVersion(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "study-engine "+version+"\n", out)
}
