package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/einvoice/backend/internal/infrastructure/persistence/models"
	"github.com/einvoice/backend/internal/infrastructure/provider"
)

// GormPayloadRepository stores and resolves prepared transfer files. It
// backs the provider adapter's payload source.
type GormPayloadRepository struct {
	db *gorm.DB
}

// NewGormPayloadRepository creates a new GormPayloadRepository
func NewGormPayloadRepository(db *gorm.DB) *GormPayloadRepository {
	return &GormPayloadRepository{db: db}
}

var _ provider.PayloadSource = (*GormPayloadRepository)(nil)

// Fetch returns the prepared transfer file for a document
func (r *GormPayloadRepository) Fetch(ctx context.Context, tenantID, documentID uuid.UUID, _ einvoice.Profile) (*provider.TransferPayload, error) {
	var model models.DocumentPayloadModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", tenantID, documentID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &provider.TransferPayload{
		FileName: model.FileName,
		Content:  model.Content,
	}, nil
}

// Store writes or replaces the prepared transfer file for a document
func (r *GormPayloadRepository) Store(ctx context.Context, tenantID, documentID uuid.UUID, fileName string, content []byte) error {
	now := time.Now()
	model := models.DocumentPayloadModel{
		DocumentID: documentID,
		TenantID:   tenantID,
		FileName:   fileName,
		Content:    content,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "document_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"file_name", "content", "updated_at"}),
		}).
		Create(&model).Error
}
