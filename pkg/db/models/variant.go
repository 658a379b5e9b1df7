package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/perennis1/studio-perennis-backend/pkg/enums"
)

// Variant is a sellable format of a book. Hardcopy variants consume finite
// warehouse stock; digital formats are granted as library entries.
type Variant struct {
	ID         uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	BookID     uuid.UUID        `gorm:"column:book_id;type:uuid;not null;index"`
	Format     enums.BookFormat `gorm:"column:format;type:text;not null"`
	PricePaise int64            `gorm:"column:price_paise;not null"`
	Active     bool             `gorm:"column:active;not null;default:true"`
	CreatedAt  time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
