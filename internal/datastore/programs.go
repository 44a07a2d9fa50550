package datastore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// SaveProgram creates or updates a program. Saving an active program
// deactivates every other one.
func (s *Store) SaveProgram(ctx context.Context, p *Program) error {
	if p == nil {
		return validationError("program is required", "program", nil)
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return validationError("program name is required", "name", p.Name)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	start := time.Now()
	err := s.transaction(ctx, "save_program", func(tx *gorm.DB) error {
		if p.IsActive {
			if err := tx.Model(&Program{}).Where("id <> ? AND is_active = ?", p.ID, true).
				Update("is_active", false).Error; err != nil {
				return err
			}
		}
		created, err := existingCreatedAt[Program](tx, p.ID)
		if err != nil {
			return err
		}
		if !created.IsZero() {
			p.CreatedAt = created
		}
		return tx.Save(p).Error
	})
	err = passthrough(err, "save_program")
	s.observe("save_program", start, err)
	if err == nil {
		s.log.Debug("program saved", logger.String("id", p.ID), logger.String("name", p.Name))
	}
	return err
}

// GetPrograms returns all programs ordered by name.
func (s *Store) GetPrograms(ctx context.Context) ([]Program, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var out []Program
	if err := db.Order("name ASC").Find(&out).Error; err != nil {
		return nil, dbError(err, "get_programs")
	}
	return out, nil
}

// GetProgram returns one program or NotFound.
func (s *Store) GetProgram(ctx context.Context, id string) (*Program, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var p Program
	if err := db.Where("id = ?", id).Take(&p).Error; err != nil {
		return nil, lookupError(err, "program", id, "get_program")
	}
	return &p, nil
}

// SetActiveProgram marks one program active and all others inactive. An
// empty id deactivates every program.
func (s *Store) SetActiveProgram(ctx context.Context, id string) error {
	start := time.Now()
	err := s.transaction(ctx, "set_active_program", func(tx *gorm.DB) error {
		if id != "" {
			var n int64
			if err := tx.Model(&Program{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return notFoundError("program", id)
			}
		}
		if err := tx.Model(&Program{}).Where("is_active = ?", true).Update("is_active", false).Error; err != nil {
			return err
		}
		if id == "" {
			return nil
		}
		return tx.Model(&Program{}).Where("id = ?", id).Update("is_active", true).Error
	})
	err = passthrough(err, "set_active_program")
	s.observe("set_active_program", start, err)
	return err
}

// GetActiveProgram returns the active program, or nil when none is active.
func (s *Store) GetActiveProgram(ctx context.Context) (*Program, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var p Program
	err = db.Where("is_active = ?", true).Order("updated_at DESC").Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err, "get_active_program")
	}
	return &p, nil
}

// DeleteProgram removes a program that no catch refers to.
func (s *Store) DeleteProgram(ctx context.Context, id string) error {
	start := time.Now()
	err := s.transaction(ctx, "delete_program", func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&CatchRecord{}).Where("program_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return validationError("program is used by logged catches", "id", id)
		}
		res := tx.Delete(&Program{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFoundError("program", id)
		}
		return nil
	})
	err = passthrough(err, "delete_program")
	s.observe("delete_program", start, err)
	return err
}
