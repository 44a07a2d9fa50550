package datastore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trolltrack/trolltrack/internal/errors"
)

// SaveLure creates or updates a lure and replaces its image list.
func (s *Store) SaveLure(ctx context.Context, l *Lure) error {
	if l == nil {
		return validationError("lure is required", "lure", nil)
	}
	l.Manufacturer = strings.TrimSpace(l.Manufacturer)
	if l.Manufacturer == "" {
		return validationError("lure manufacturer is required", "manufacturer", l.Manufacturer)
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	for i := range l.Images {
		img := &l.Images[i]
		img.LureID = l.ID
		img.Position = i
		if img.ID == "" {
			img.ID = uuid.NewString()
		}
	}

	start := time.Now()
	err := s.transaction(ctx, "save_lure", func(tx *gorm.DB) error {
		created, err := existingCreatedAt[Lure](tx, l.ID)
		if err != nil {
			return err
		}
		if !created.IsZero() {
			l.CreatedAt = created
		}
		if err := tx.Omit(clause.Associations).Save(l).Error; err != nil {
			return err
		}
		if err := tx.Where("lure_id = ?", l.ID).Delete(&LureImage{}).Error; err != nil {
			return err
		}
		if len(l.Images) == 0 {
			return nil
		}
		return tx.Create(&l.Images).Error
	})
	err = passthrough(err, "save_lure")
	s.observe("save_lure", start, err)
	return err
}

func lureQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&Lure{}).Preload("Images", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// GetLures returns all lures with their images in order.
func (s *Store) GetLures(ctx context.Context) ([]Lure, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var out []Lure
	if err := lureQuery(db).Order("manufacturer ASC").Order("color ASC").Order("length ASC").Find(&out).Error; err != nil {
		return nil, dbError(err, "get_lures")
	}
	return out, nil
}

// GetLure returns one lure or NotFound.
func (s *Store) GetLure(ctx context.Context, id string) (*Lure, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var l Lure
	if err := lureQuery(db).Where("id = ?", id).Take(&l).Error; err != nil {
		return nil, lookupError(err, "lure", id, "get_lure")
	}
	return &l, nil
}

// FindLure looks a lure up by its identity: manufacturer, color and length.
// It returns nil without error when there is no match.
func (s *Store) FindLure(ctx context.Context, manufacturer, color string, length float64) (*Lure, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var l Lure
	err = lureQuery(db).
		Where("manufacturer = ? AND color = ? AND length = ?", strings.TrimSpace(manufacturer), strings.TrimSpace(color), length).
		Take(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err, "find_lure")
	}
	return &l, nil
}

// DeleteLure removes a lure and its images. Catches that used it keep
// their record without the lure reference.
func (s *Store) DeleteLure(ctx context.Context, id string) error {
	start := time.Now()
	err := s.transaction(ctx, "delete_lure", func(tx *gorm.DB) error {
		if err := tx.Model(&CatchRecord{}).Where("lure_id = ?", id).Update("lure_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("lure_id = ?", id).Delete(&LureImage{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&Lure{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFoundError("lure", id)
		}
		return nil
	})
	err = passthrough(err, "delete_lure")
	s.observe("delete_lure", start, err)
	return err
}

// CountLures returns the number of stored lures.
func (s *Store) CountLures(ctx context.Context) (int64, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.Model(&Lure{}).Count(&n).Error; err != nil {
		return 0, dbError(err, "count_lures")
	}
	return n, nil
}
