package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/gema-evaluator/internal/models"
)

// ErrSessionNotFound indicates the session expired or never existed.
var ErrSessionNotFound = errors.New("session not found")

// ErrReportNotFound indicates no stored feedback exists for the evaluation.
var ErrReportNotFound = errors.New("report not found")

// SessionStore keeps session state and downloadable reports in Redis.
type SessionStore interface {
	Save(ctx context.Context, session models.Session) error
	Get(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	SaveReport(ctx context.Context, sessionID string, report models.StoredReport) error
	GetReport(ctx context.Context, sessionID, evaluationID string) (models.StoredReport, error)
	TTL() time.Duration
}

type redisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewSessionStore builds a Redis backed session store with a sliding ttl.
func NewSessionStore(client *redis.Client, ttl time.Duration) SessionStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &redisSessionStore{client: client, ttl: ttl, prefix: "evaluator:session:"}
}

func (s *redisSessionStore) sessionKey(id string) string {
	return s.prefix + id
}

func (s *redisSessionStore) reportsKey(id string) string {
	return s.prefix + id + ":reports"
}

func (s *redisSessionStore) Save(ctx context.Context, session models.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(session.ID), payload, s.ttl)
	pipe.Expire(ctx, s.reportsKey(session.ID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *redisSessionStore) Get(ctx context.Context, id string) (models.Session, error) {
	payload, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(payload, &session); err != nil {
		return models.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *redisSessionStore) Touch(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	refreshed := pipe.Expire(ctx, s.sessionKey(id), s.ttl)
	pipe.Expire(ctx, s.reportsKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("refresh session: %w", err)
	}
	if !refreshed.Val() {
		return ErrSessionNotFound
	}
	return nil
}

// TTL reports how long sessions live without activity.
func (s *redisSessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *redisSessionStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, s.sessionKey(id), s.reportsKey(id)).Err()
}

func (s *redisSessionStore) SaveReport(ctx context.Context, sessionID string, report models.StoredReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.reportsKey(sessionID), report.EvaluationID, payload)
	pipe.Expire(ctx, s.reportsKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func (s *redisSessionStore) GetReport(ctx context.Context, sessionID, evaluationID string) (models.StoredReport, error) {
	payload, err := s.client.HGet(ctx, s.reportsKey(sessionID), evaluationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.StoredReport{}, ErrReportNotFound
	}
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("load report: %w", err)
	}

	var report models.StoredReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return models.StoredReport{}, fmt.Errorf("decode report: %w", err)
	}
	return report, nil
}
