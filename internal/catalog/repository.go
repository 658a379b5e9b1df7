package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/perennis1/studio-perennis-backend/pkg/db/models"
)

// Repository exposes variant and inventory persistence for catalog reads
// and stock intake.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindVariant loads a single variant by ID.
func (r *Repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.Variant, error) {
	var variant models.Variant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// ListVariantsByIDs loads the given variants in one query. Missing IDs are
// simply absent from the result, callers decide whether that is an error.
func (r *Repository) ListVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Variant
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).
		Error
	return rows, err
}

// GetInventory returns the inventory row for the variant.
func (r *Repository) GetInventory(ctx context.Context, variantID uuid.UUID) (*models.Inventory, error) {
	var inv models.Inventory
	if err := r.db.WithContext(ctx).First(&inv, "variant_id = ?", variantID).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInventories returns every inventory row, keyed for reconciliation scans.
func (r *Repository) ListInventories(ctx context.Context) ([]models.Inventory, error) {
	var rows []models.Inventory
	err := r.db.WithContext(ctx).
		Order("variant_id ASC").
		Find(&rows).
		Error
	return rows, err
}

// CreateVariant inserts a new variant. Physical formats get a zeroed
// inventory row in the same transaction; digital formats never hold stock
// and get none.
func (r *Repository) CreateVariant(ctx context.Context, variant *models.Variant) (*models.Variant, error) {
	if variant.ID == uuid.Nil {
		variant.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(variant).Error; err != nil {
			return err
		}
		if !variant.Format.IsPhysical() {
			return nil
		}
		return tx.Create(&models.Inventory{VariantID: variant.ID}).Error
	})
	if err != nil {
		return nil, err
	}
	return variant, nil
}

// SaveInventory persists the full inventory row.
func (r *Repository) SaveInventory(ctx context.Context, inv *models.Inventory) error {
	return r.db.WithContext(ctx).Save(inv).Error
}
