package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-evaluator/internal/models"
)

// EvaluationRepository persists evaluation audit records.
type EvaluationRepository interface {
	Create(ctx context.Context, record *models.EvaluationRecord) error
	ListBySession(ctx context.Context, sessionID string) ([]models.EvaluationRecord, error)
	GetByID(ctx context.Context, sessionID, id string) (models.EvaluationRecord, error)
	CountByStatus(ctx context.Context, sessionID string) (map[string]int64, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) Create(ctx context.Context, record *models.EvaluationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *evaluationRepository) ListBySession(ctx context.Context, sessionID string) ([]models.EvaluationRecord, error) {
	var records []models.EvaluationRecord
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Order("position ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

func (r *evaluationRepository) GetByID(ctx context.Context, sessionID, id string) (models.EvaluationRecord, error) {
	var record models.EvaluationRecord
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Where("id = ?", id).
		First(&record).Error; err != nil {
		return models.EvaluationRecord{}, err
	}

	return record, nil
}

func (r *evaluationRepository) CountByStatus(ctx context.Context, sessionID string) (map[string]int64, error) {
	type row struct {
		Status string
		Total  int64
	}

	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.EvaluationRecord{}).
		Select("status, COUNT(*) AS total").
		Where("session_id = ?", sessionID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, item := range rows {
		counts[item.Status] = item.Total
	}
	return counts, nil
}
