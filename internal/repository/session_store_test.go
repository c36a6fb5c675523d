package repository

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-evaluator/internal/models"
)

func newTestStore(t *testing.T, ttl time.Duration) (SessionStore, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSessionStore(client, ttl), server
}

func TestSessionStoreRoundTripAndExpiry(t *testing.T) {
	store, server := newTestStore(t, time.Hour)
	ctx := context.Background()

	session := models.Session{
		ID:         "s1",
		Provider:   "gemini",
		Credential: "secret",
		RubricName: "rubrica.pdf",
		RubricText: "Claridad",
		Settings:   models.SessionSettings{Temperature: 0.5, MaxTokens: 1200},
	}
	require.NoError(t, store.Save(ctx, session))

	loaded, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "Claridad", loaded.RubricText)
	require.Equal(t, 1200, loaded.Settings.MaxTokens)

	server.FastForward(45 * time.Minute)
	require.NoError(t, store.Touch(ctx, "s1"))
	server.FastForward(45 * time.Minute)
	_, err = store.Get(ctx, "s1")
	require.NoError(t, err)

	server.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreReports(t *testing.T) {
	store, server := newTestStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, models.Session{ID: "s1"}))
	require.NoError(t, store.SaveReport(ctx, "s1", models.StoredReport{
		EvaluationID: "e1",
		FileName:     "ensayo.docx",
		DownloadName: "Evaluacion_ensayo.txt",
		Feedback:     "PUNTOS FUERTES",
	}))

	report, err := store.GetReport(ctx, "s1", "e1")
	require.NoError(t, err)
	require.Equal(t, "Evaluacion_ensayo.txt", report.DownloadName)
	require.True(t, server.TTL("evaluator:session:s1:reports") > 0)

	_, err = store.GetReport(ctx, "s1", "missing")
	require.ErrorIs(t, err, ErrReportNotFound)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreTouchMissingSession(t *testing.T) {
	store, _ := newTestStore(t, time.Hour)
	require.ErrorIs(t, store.Touch(context.Background(), "ghost"), ErrSessionNotFound)
	require.Equal(t, time.Hour, store.TTL())
}
