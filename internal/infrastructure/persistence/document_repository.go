package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/einvoice/backend/internal/domain/einvoice"
	"github.com/einvoice/backend/internal/domain/shared"
	"github.com/einvoice/backend/internal/infrastructure/persistence/models"
)

// GormDocumentRepository implements einvoice.DocumentRepository using GORM
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GormDocumentRepository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

var _ einvoice.DocumentRepository = (*GormDocumentRepository)(nil)

// Save creates a document, or updates the submission-owned columns with
// optimistic locking. Invoice identity columns are written once at creation
// and never touched afterwards.
func (r *GormDocumentRepository) Save(ctx context.Context, doc *einvoice.Document) error {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("id = ?", doc.ID).
		Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return r.create(ctx, doc)
	}
	return r.update(ctx, doc)
}

func (r *GormDocumentRepository) create(ctx context.Context, doc *einvoice.Document) error {
	model := models.DocumentModelFromDomain(doc)
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *GormDocumentRepository) update(ctx context.Context, doc *einvoice.Document) error {
	currentVersion := doc.Version
	doc.IncrementVersion()
	doc.UpdatedAt = time.Now()

	model := models.DocumentModelFromDomain(doc)

	result := r.db.WithContext(ctx).
		Model(&models.DocumentModel{}).
		Where("id = ? AND version = ?", doc.ID, currentVersion).
		Updates(map[string]any{
			"profile":              model.Profile,
			"status":               model.Status,
			"external_ref_id":      model.ExternalRefID,
			"provider_state_code":  model.ProviderStateCode,
			"error_message":        model.ErrorMessage,
			"last_status_check_at": model.LastStatusCheckAt,
			"version":              model.Version,
			"updated_at":           model.UpdatedAt,
		})

	if result.Error != nil {
		doc.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		doc.Version = currentVersion
		return shared.NewDomainError("OPTIMISTIC_LOCK_ERROR", "The document has been modified by another transaction")
	}
	return nil
}

// FindByID finds a document by its ID
func (r *GormDocumentRepository) FindByID(ctx context.Context, id uuid.UUID) (*einvoice.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, einvoice.ErrDocumentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDForTenant finds a document by ID within a tenant
func (r *GormDocumentRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*einvoice.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, einvoice.ErrDocumentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByExternalRef finds a document by the provider-assigned reference
func (r *GormDocumentRepository) FindByExternalRef(ctx context.Context, tenantID uuid.UUID, externalRefID string) (*einvoice.Document, error) {
	var model models.DocumentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND external_ref_id = ?", tenantID, externalRefID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, einvoice.ErrDocumentNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindReconcilable returns documents the provider accepted but that have not
// reached a terminal state, least recently checked first. Crosses tenants:
// the reconciliation pass serves every tenant in one sweep.
func (r *GormDocumentRepository) FindReconcilable(ctx context.Context, limit int) ([]einvoice.Document, error) {
	var documentModels []models.DocumentModel
	if err := r.db.WithContext(ctx).
		Where("external_ref_id <> '' AND status NOT IN ?",
			[]einvoice.DocumentStatus{einvoice.StatusDelivered, einvoice.StatusError}).
		Order("last_status_check_at ASC NULLS FIRST").
		Limit(limit).
		Find(&documentModels).Error; err != nil {
		return nil, err
	}

	documents := make([]einvoice.Document, len(documentModels))
	for i, model := range documentModels {
		documents[i] = *model.ToDomain()
	}
	return documents, nil
}

// ListForTenant returns a page of documents for a tenant with the total count
func (r *GormDocumentRepository) ListForTenant(ctx context.Context, tenantID uuid.UUID, filter shared.Filter) ([]einvoice.Document, int64, error) {
	var total int64
	countQuery := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&models.DocumentModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := r.applyFilterWithoutPagination(
		r.db.WithContext(ctx).Model(&models.DocumentModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	var documentModels []models.DocumentModel
	if err := r.applyPagination(listQuery, filter).Find(&documentModels).Error; err != nil {
		return nil, 0, err
	}

	documents := make([]einvoice.Document, len(documentModels))
	for i, model := range documentModels {
		documents[i] = *model.ToDomain()
	}
	return documents, total, nil
}

// applyFilterWithoutPagination applies filter options without pagination
func (r *GormDocumentRepository) applyFilterWithoutPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("invoice_number LIKE ? OR counterpart_name LIKE ? OR counterpart_tax_id LIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	for key, value := range filter.Filters {
		switch key {
		case "status":
			query = query.Where("status = ?", value)
		case "profile":
			query = query.Where("profile = ?", value)
		case "external_ref_id":
			query = query.Where("external_ref_id = ?", value)
		case "invoice_number":
			query = query.Where("invoice_number = ?", value)
		}
	}

	return query
}

// applyPagination applies ordering and pagination to the query
func (r *GormDocumentRepository) applyPagination(query *gorm.DB, filter shared.Filter) *gorm.DB {
	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	if filter.OrderBy != "" {
		orderBy := ValidateSortField(filter.OrderBy, DocumentSortFields, "created_at")
		orderDir := ValidateSortOrder(filter.OrderDir)
		query = query.Order(orderBy + " " + orderDir)
	} else {
		query = query.Order("created_at DESC")
	}

	return query
}
