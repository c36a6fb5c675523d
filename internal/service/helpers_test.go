package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/fumiama/go-docx"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-evaluator/internal/models"
	"github.com/noah-isme/gema-evaluator/internal/repository"
	"github.com/noah-isme/gema-evaluator/pkg/ai"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func rubricPDF(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "extract", "testdata", "rubric.pdf"))
	require.NoError(t, err)
	return data
}

// malformedPDF breaks the first object header of the rubric fixture, which makes
// the pdf reader panic while resolving objects.
func malformedPDF(t *testing.T) []byte {
	t.Helper()
	data := bytes.Clone(rubricPDF(t))
	data[9] = ')'
	return data
}

func buildDOCX(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	doc := docx.New().WithDefaultTheme()
	for _, text := range paragraphs {
		para := doc.AddParagraph()
		if text != "" {
			para.AddText(text)
		}
	}
	var buf bytes.Buffer
	_, err := doc.WriteTo(&buf)
	require.NoError(t, err)
	return buf.Bytes()
}

func buildFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {"form-data; name=\"file\"; filename=\"" + filename + "\""},
		"Content-Type":        {"application/octet-stream"},
	})
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(body, writer.Boundary())
	form, err := reader.ReadForm(int64(len(content) + 1024))
	require.NoError(t, err)
	files := form.File["file"]
	require.Len(t, files, 1)
	return files[0]
}

// fakeEvaluator answers with a canned reply per submission heading, or fails for names in failFor.
type fakeEvaluator struct {
	mu      sync.Mutex
	prompts []string
	reply   func(prompt string) string
	failFor string
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, input ai.EvaluationInput) (ai.EvaluationResult, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, input.Prompt)
	f.mu.Unlock()

	if f.failFor != "" && strings.Contains(input.Prompt, f.failFor) {
		return ai.EvaluationResult{}, errors.New("quota exceeded")
	}
	text := "## PUNTOS FUERTES\n- Buen trabajo"
	if f.reply != nil {
		text = f.reply(input.Prompt)
	}
	return ai.EvaluationResult{Text: text, Model: "fake-model", Provider: "fake", InputTokens: 10, OutputTokens: 5}, nil
}

type fakeFactory struct {
	evaluator ai.Evaluator
	provider  string
	apiKey    string
}

func (f *fakeFactory) New(ctx context.Context, provider, apiKey string) (ai.Evaluator, error) {
	f.provider = provider
	f.apiKey = apiKey
	return f.evaluator, nil
}

type storageStub struct {
	mu       sync.Mutex
	uploaded map[string]string
}

func (s *storageStub) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploaded == nil {
		s.uploaded = make(map[string]string)
	}
	s.uploaded[name] = string(content)
	return "https://cdn.example.com/" + name, nil
}

type testDeps struct {
	store    repository.SessionStore
	repo     repository.EvaluationRepository
	sessions SessionService
	redis    *miniredis.Miniredis
}

func newTestDeps(t *testing.T, fallback map[string]string) testDeps {
	t.Helper()

	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.EvaluationRecord{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := repository.NewSessionStore(client, 0)
	sessions := NewSessionService(store, validator.New(), SessionConfig{
		Provider:    ai.ProviderGemini,
		Temperature: 0.5,
		MaxTokens:   1200,
		FallbackKey: func(provider string) string { return fallback[provider] },
	}, testLogger())

	return testDeps{
		store:    store,
		repo:     repository.NewEvaluationRepository(db),
		sessions: sessions,
		redis:    server,
	}
}
