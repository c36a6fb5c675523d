package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/fumiama/go-docx"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-evaluator/internal/config"
	"github.com/noah-isme/gema-evaluator/internal/handler"
	"github.com/noah-isme/gema-evaluator/internal/models"
	"github.com/noah-isme/gema-evaluator/internal/repository"
	"github.com/noah-isme/gema-evaluator/internal/router"
	"github.com/noah-isme/gema-evaluator/internal/service"
	"github.com/noah-isme/gema-evaluator/internal/utils"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
)

type stubEvaluator struct {
	failFor string
}

func (s *stubEvaluator) Evaluate(_ context.Context, input ai.EvaluationInput) (ai.EvaluationResult, error) {
	if s.failFor != "" && strings.Contains(input.Prompt, s.failFor) {
		return ai.EvaluationResult{}, errors.New("upstream timeout")
	}
	return ai.EvaluationResult{
		Text:     "## PUNTOS FUERTES\n- Estructura clara\n\n## COMENTARIOS FINALES\nSigue así.\n\nCALIFICACIÓN: 8/10",
		Model:    "stub-model",
		Provider: "stub",
	}, nil
}

type stubFactory struct {
	evaluator ai.Evaluator
}

func (f stubFactory) New(context.Context, string, string) (ai.Evaluator, error) {
	return f.evaluator, nil
}

type archiveStub struct{}

func (archiveStub) Upload(_ context.Context, name string, reader io.Reader) (string, error) {
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return "", err
	}
	return "https://archive.example.com/" + name, nil
}

type testApp struct {
	app      *fiber.App
	progress service.ProgressService
	redis    *miniredis.Miniredis
}

func setupApp(t *testing.T, evaluator ai.Evaluator) testApp {
	t.Helper()

	mini, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mini.Close)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.EvaluationRecord{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := zerolog.New(io.Discard)
	validate := validator.New(validator.WithRequiredStructEnabled())
	uploads := service.NewUploadPolicy(5)
	cfg := config.Config{AppName: "Test Evaluator", AppEnv: "test", AIProvider: ai.ProviderGemini}

	store := repository.NewSessionStore(client, time.Hour)
	sessions := service.NewSessionService(store, validate, service.SessionConfig{
		Provider:    ai.ProviderGemini,
		Temperature: 0.5,
		MaxTokens:   1200,
	}, logger)
	progress := service.NewProgressService(nil, "", logger)
	evaluations := service.NewEvaluationService(
		sessions,
		store,
		repository.NewEvaluationRepository(db),
		stubFactory{evaluator: evaluator},
		service.NewGrader(uploads, nil, logger),
		progress,
		archiveStub{},
		service.EvaluationConfig{Workers: 1, TopP: 0.9},
		logger,
	)

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		SessionHandler:    handler.NewSessionHandler(sessions, uploads, logger),
		EvaluationHandler: handler.NewEvaluationHandler(evaluations, uploads, 100, logger),
		ProgressHandler:   handler.NewProgressHandler(sessions, progress, logger),
		HealthChecks: map[string]handler.HealthCheckFunc{
			"redis": func(ctx context.Context) error { return client.Ping(ctx).Err() },
		},
	})

	return testApp{app: app, progress: progress, redis: mini}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

func decodeResponse(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var payload envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return payload
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type upload struct {
	field string
	name  string
	data  []byte
}

func doMultipart(t *testing.T, app *fiber.App, path string, files ...upload) *http.Response {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.name)
		require.NoError(t, err)
		_, err = part.Write(file.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func rubricPDF(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "extract", "testdata", "rubric.pdf"))
	require.NoError(t, err)
	return data
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	doc := docx.New().WithDefaultTheme()
	for _, text := range paragraphs {
		doc.AddParagraph().AddText(text)
	}
	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func createSession(t *testing.T, app *fiber.App, body interface{}) string {
	t.Helper()
	resp := doJSON(t, app, http.MethodPost, "/api/v1/sessions", body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	payload := decodeResponse(t, resp)

	var session struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(payload.Data, &session))
	require.NotEmpty(t, session.ID)
	return session.ID
}

func startFiberServer(t *testing.T, app *fiber.App) (string, func()) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("fiber listener stopped: %v", err)
		}
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)

	shutdown := func() {
		_ = app.Shutdown()
		_ = listener.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}

	return listener.Addr().String(), shutdown
}

func TestHealthReportsDependencies(t *testing.T) {
	env := setupApp(t, &stubEvaluator{})

	resp := doJSON(t, env.app, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Test Evaluator", resp.Header.Get("X-Application"))

	var health handler.HealthResponse
	require.NoError(t, json.Unmarshal(decodeResponse(t, resp).Data, &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Dependencies["redis"])
}

func TestErrorEnvelopeShape(t *testing.T) {
	env := setupApp(t, &stubEvaluator{})

	resp := doJSON(t, env.app, http.MethodGet, "/api/v1/sessions/unknown", nil)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var payload utils.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.False(t, payload.Success)
	require.Equal(t, "session not found", payload.Message)
}

func TestMetricsEndpointServesScrape(t *testing.T) {
	env := setupApp(t, &stubEvaluator{})
	sessionID := readySession(t, env, false)

	resp := doMultipart(t, env.app, "/api/v1/sessions/"+sessionID+"/evaluations", upload{field: "files", name: "tarea.docx", data: buildDOCX(t, "Ensayo")})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	metrics, err := env.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, metrics.StatusCode)
	body, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "evaluator_evaluations_total")
}
