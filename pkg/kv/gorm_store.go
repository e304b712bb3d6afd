package kv

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SlotRecord is the kv_slots row holding one serialized slot payload.
type SlotRecord struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Value     string    `gorm:"column:value;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName maps the record onto the migrated table.
func (SlotRecord) TableName() string {
	return "kv_slots"
}

// GormStore persists slots through the shared GORM handle.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore binds the store to the provided DB handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (g *GormStore) Get(ctx context.Context, name string) (string, bool, error) {
	var record SlotRecord
	err := g.db.WithContext(ctx).Where("name = ?", name).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return record.Value, true, nil
}

func (g *GormStore) Set(ctx context.Context, name, value string) error {
	record := SlotRecord{Name: name, Value: value, UpdatedAt: time.Now().UTC()}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&record).Error
}

func (g *GormStore) Delete(ctx context.Context, name string) error {
	return g.db.WithContext(ctx).Where("name = ?", name).Delete(&SlotRecord{}).Error
}
