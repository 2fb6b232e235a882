package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tenantrag/internal/model"
)

var claimableStatuses = []model.DocumentStatus{
	model.DocumentQueued,
	model.DocumentFailed,
	model.DocumentVectorizing,
}

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateWithinQuota inserts doc as queued if the tenant's page total stays
// within quota. The tenant row is locked for the duration of the check so
// concurrent uploads for one tenant cannot jointly overrun it.
func (r *DocumentRepository) CreateWithinQuota(ctx context.Context, doc *model.Document, quota int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tenant model.Tenant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", doc.TenantID).
			First(&tenant).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTenantNotFound
			}
			return fmt.Errorf("lock tenant failed: %w", err)
		}

		var used int64
		if err := tx.Model(&model.Document{}).
			Select("COALESCE(SUM(num_pages), 0)").
			Where("tenant_id = ?", doc.TenantID).
			Scan(&used).Error; err != nil {
			return fmt.Errorf("sum tenant pages failed: %w", err)
		}
		if int(used)+doc.NumPages > quota {
			return fmt.Errorf("%w: %d pages used, %d requested, quota %d",
				ErrPageQuotaExceeded, used, doc.NumPages, quota)
		}

		doc.Status = model.DocumentQueued
		if err := tx.Create(doc).Error; err != nil {
			return fmt.Errorf("create document failed: %w", err)
		}
		return nil
	})
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) GetForTenant(ctx context.Context, tenantID, id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ? AND tenant_id = ?", id, tenantID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID string) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("uploaded_at DESC").
		Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// Claim moves the document to vectorizing. It returns false when the
// document is gone, already completed or being deleted.
func (r *DocumentRepository) Claim(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status IN ?", id, claimableStatuses).
		Updates(map[string]interface{}{
			"status":        model.DocumentVectorizing,
			"error_message": "",
		})
	if res.Error != nil {
		return false, fmt.Errorf("claim document failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *DocumentRepository) MarkCompleted(ctx context.Context, id string, chunkCount int) error {
	if err := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ?", id, model.DocumentVectorizing).
		Updates(map[string]interface{}{
			"status":      model.DocumentCompleted,
			"chunk_count": chunkCount,
		}).Error; err != nil {
		return fmt.Errorf("mark document completed failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) MarkFailed(ctx context.Context, id, message string) error {
	if err := r.db.WithContext(ctx).Model(&model.Document{}).
		Where("id = ? AND status = ?", id, model.DocumentVectorizing).
		Updates(map[string]interface{}{
			"status":        model.DocumentFailed,
			"error_message": message,
			"chunk_count":   0,
		}).Error; err != nil {
		return fmt.Errorf("mark document failed failed: %w", err)
	}
	return nil
}

// BeginDelete locks a terminal document and moves it to deleting so the
// worker cannot claim it while its vectors and blob are removed.
func (r *DocumentRepository) BeginDelete(ctx context.Context, tenantID, id string) (*model.Document, error) {
	var doc model.Document
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND tenant_id = ?", id, tenantID).
			First(&doc).Error; err != nil {
			return err
		}
		if !doc.Status.Terminal() {
			return ErrDocumentBusy
		}
		if err := tx.Model(&model.Document{}).
			Where("id = ?", id).
			Update("status", model.DocumentDeleting).Error; err != nil {
			return err
		}
		doc.Status = model.DocumentDeleting
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if errors.Is(err, ErrDocumentBusy) {
			return &doc, err
		}
		return nil, fmt.Errorf("begin document delete failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
