package datastore

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/events"
	"github.com/trolltrack/trolltrack/internal/logger"
)

// DefaultRecentCatches is the page size of GetRecentCatches when none is given
const DefaultRecentCatches = 5

// SaveCatch stores a new catch together with its location fix and program.
// The species is resolved by id, then by name, falling back to Unknown.
// Catches are immutable; saving an existing id fails.
func (s *Store) SaveCatch(ctx context.Context, c *CatchRecord) error {
	if c == nil {
		return validationError("catch record is required", "catch", nil)
	}
	// the fix is owned by the catch and attached when it is logged
	if c.Location == nil && c.LocationID == "" {
		return validationError("catch location is required", "location", nil)
	}
	start := time.Now()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now()
	}
	// stored in UTC so range queries compare like with like
	c.Timestamp = c.Timestamp.UTC()

	err := s.transaction(ctx, "save_catch", func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&CatchRecord{}).Where("id = ?", c.ID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return validationError("catch already saved", "id", c.ID)
		}

		if err := s.resolveFish(tx, c); err != nil {
			return err
		}
		if err := upsertLocation(tx, c); err != nil {
			return err
		}
		if err := upsertProgram(tx, c); err != nil {
			return err
		}
		if c.LureID != nil && *c.LureID != "" {
			var n int64
			if err := tx.Model(&Lure{}).Where("id = ?", *c.LureID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return validationError("lure does not exist", "lure_id", *c.LureID)
			}
		} else {
			c.LureID = nil
		}

		return tx.Omit(clause.Associations).Create(c).Error
	})
	err = passthrough(err, "save_catch")
	s.observe("save_catch", start, err)
	if err != nil {
		return err
	}

	s.log.Info("catch saved",
		logger.String("id", c.ID),
		logger.String("species", c.SpeciesName()),
		logger.Time("timestamp", c.Timestamp))
	s.publish(events.TypeCatchSaved, *c)
	return nil
}

// resolveFish points the catch at a row of the lookup table
func (s *Store) resolveFish(tx *gorm.DB, c *CatchRecord) error {
	var fish FishInfo

	if c.FishInfoID != "" {
		err := tx.Where("id = ?", c.FishInfoID).Take(&fish).Error
		if err == nil {
			c.FishInfo = &fish
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	name := ""
	if c.FishInfo != nil {
		name = NormalizeSpeciesName(c.FishInfo.CommonName)
	}
	if name != "" {
		err := tx.Where("common_name = ?", name).Take(&fish).Error
		if err == nil {
			c.FishInfoID = fish.ID
			c.FishInfo = &fish
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
	}

	s.log.Debug("species not in lookup table, using Unknown", logger.String("species", name))
	if err := tx.Where("id = ?", UnknownFishID).Take(&fish).Error; err != nil {
		return err
	}
	c.FishInfoID = fish.ID
	c.FishInfo = &fish
	return nil
}

func upsertLocation(tx *gorm.DB, c *CatchRecord) error {
	if c.Location == nil {
		return nil
	}
	if c.Location.ID == "" {
		c.Location.ID = uuid.NewString()
	}
	if c.Location.Timestamp.IsZero() {
		c.Location.Timestamp = c.Timestamp
	}
	c.Location.Timestamp = c.Location.Timestamp.UTC()
	if err := tx.Save(c.Location).Error; err != nil {
		return err
	}
	c.LocationID = c.Location.ID
	return nil
}

// upsertProgram creates a new program or refreshes the name and description
// of an existing one; the active flag is left alone
func upsertProgram(tx *gorm.DB, c *CatchRecord) error {
	if c.Program == nil {
		if c.ProgramID != nil && *c.ProgramID == "" {
			c.ProgramID = nil
		}
		return nil
	}
	p := c.Program
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	var existing Program
	err := tx.Where("id = ?", p.ID).Take(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if strings.TrimSpace(p.Name) == "" {
			return validationError("program name is required", "program.name", p.Name)
		}
		p.IsActive = false
		if err := tx.Create(p).Error; err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if err := tx.Model(&existing).Select("Name", "Description").Updates(Program{Name: p.Name, Description: p.Description}).Error; err != nil {
			return err
		}
		p.IsActive = existing.IsActive
	}
	c.ProgramID = &p.ID
	return nil
}

// catchQuery loads a catch with every association
func catchQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&CatchRecord{}).
		Preload("Location").
		Preload("Program").
		Preload("FishInfo").
		Preload("Lure").
		Preload("Lure.Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") })
}

// GetAllCatches returns every catch, newest first.
func (s *Store) GetAllCatches(ctx context.Context) ([]CatchRecord, error) {
	start := time.Now()
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var out []CatchRecord
	err = catchQuery(db).Order("timestamp DESC").Find(&out).Error
	if err != nil {
		err = dbError(err, "get_all_catches")
	}
	s.observe("get_all_catches", start, err)
	return out, err
}

// GetCatchesInRange returns catches with start <= timestamp < end, newest first.
func (s *Store) GetCatchesInRange(ctx context.Context, from, to time.Time) ([]CatchRecord, error) {
	if !to.After(from) {
		return nil, validationError("range end must be after start", "end", to)
	}
	start := time.Now()
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var out []CatchRecord
	err = catchQuery(db).
		Where("timestamp >= ? AND timestamp < ?", from.UTC(), to.UTC()).
		Order("timestamp DESC").
		Find(&out).Error
	if err != nil {
		err = dbError(err, "get_catches_in_range")
	}
	s.observe("get_catches_in_range", start, err)
	return out, err
}

// GetTodaysCatches returns catches between local midnight and the next midnight.
func (s *Store) GetTodaysCatches(ctx context.Context) ([]CatchRecord, error) {
	from, to := dayBounds(s.now())
	return s.GetCatchesInRange(ctx, from, to)
}

// GetRecentCatches returns the newest catches, DefaultRecentCatches when limit <= 0.
func (s *Store) GetRecentCatches(ctx context.Context, limit int) ([]CatchRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentCatches
	}
	start := time.Now()
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var out []CatchRecord
	err = catchQuery(db).Order("timestamp DESC").Limit(limit).Find(&out).Error
	if err != nil {
		err = dbError(err, "get_recent_catches")
	}
	s.observe("get_recent_catches", start, err)
	return out, err
}

// GetCatch returns one catch or a NotFound error.
func (s *Store) GetCatch(ctx context.Context, id string) (*CatchRecord, error) {
	start := time.Now()
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}

	var c CatchRecord
	err = catchQuery(db).Where("id = ?", id).Take(&c).Error
	if err != nil {
		err = lookupError(err, "catch", id, "get_catch")
	}
	s.observe("get_catch", start, err)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCatch removes a catch and its location fix when no other catch uses
// it. Programs and species are shared and stay.
func (s *Store) DeleteCatch(ctx context.Context, id string) error {
	start := time.Now()
	err := s.transaction(ctx, "delete_catch", func(tx *gorm.DB) error {
		var c CatchRecord
		if err := tx.Where("id = ?", id).Take(&c).Error; err != nil {
			return lookupError(err, "catch", id, "delete_catch")
		}
		if err := tx.Delete(&CatchRecord{}, "id = ?", id).Error; err != nil {
			return err
		}
		if c.LocationID == "" {
			return nil
		}

		var shared int64
		if err := tx.Model(&CatchRecord{}).Where("location_id = ?", c.LocationID).Count(&shared).Error; err != nil {
			return err
		}
		if shared > 0 {
			return nil
		}
		return tx.Delete(&LocationFix{}, "id = ?", c.LocationID).Error
	})
	err = passthrough(err, "delete_catch")
	s.observe("delete_catch", start, err)
	if err != nil {
		return err
	}

	s.log.Info("catch deleted", logger.String("id", id))
	s.publish(events.TypeCatchDeleted, id)
	return nil
}

// GetCatchStatistics counts catches all-time, today, over the trailing 7 and
// 30 days, and finds the latest catch, all in one read transaction.
func (s *Store) GetCatchStatistics(ctx context.Context) (*CatchStatistics, error) {
	start := time.Now()
	now := s.now()
	todayStart, todayEnd := dayBounds(now)
	stats := &CatchStatistics{ComputedAt: now}

	count := func(tx *gorm.DB, dst *int64, where string, args ...any) error {
		q := tx.Model(&CatchRecord{})
		if where != "" {
			q = q.Where(where, args...)
		}
		return q.Count(dst).Error
	}

	err := s.transaction(ctx, "catch_statistics", func(tx *gorm.DB) error {
		if err := count(tx, &stats.Total, ""); err != nil {
			return err
		}
		if err := count(tx, &stats.Today, "timestamp >= ? AND timestamp < ?", todayStart.UTC(), todayEnd.UTC()); err != nil {
			return err
		}
		if err := count(tx, &stats.Last7Days, "timestamp >= ?", now.AddDate(0, 0, -7).UTC()); err != nil {
			return err
		}
		if err := count(tx, &stats.Last30Days, "timestamp >= ?", now.AddDate(0, 0, -30).UTC()); err != nil {
			return err
		}

		var latest CatchRecord
		err := tx.Select("timestamp").Order("timestamp DESC").Limit(1).Take(&latest).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil
		case err != nil:
			return err
		}
		ts := latest.Timestamp
		stats.LastCatch = &ts
		return nil
	})
	err = passthrough(err, "catch_statistics")
	s.observe("catch_statistics", start, err)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// GetBestCatchToday returns today's heaviest catch, the earliest one on a
// tie, or nil when there are no catches today.
func (s *Store) GetBestCatchToday(ctx context.Context) (*CatchRecord, error) {
	start := time.Now()
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	from, to := dayBounds(s.now())

	var best CatchRecord
	err = catchQuery(db).
		Where("timestamp >= ? AND timestamp < ?", from.UTC(), to.UTC()).
		Order("weight DESC").
		Order("timestamp ASC").
		Take(&best).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.observe("best_catch_today", start, nil)
		return nil, nil
	}
	if err != nil {
		err = dbError(err, "best_catch_today")
		s.observe("best_catch_today", start, err)
		return nil, err
	}
	s.observe("best_catch_today", start, nil)
	return &best, nil
}

// GetFishingTimeToday is the span between today's first and last catch.
func (s *Store) GetFishingTimeToday(ctx context.Context) (time.Duration, error) {
	catches, err := s.GetTodaysCatches(ctx)
	if err != nil {
		return 0, err
	}
	if len(catches) < 2 {
		return 0, nil
	}
	// newest first
	return catches[0].Timestamp.Sub(catches[len(catches)-1].Timestamp), nil
}

// GetFishInfo returns the species lookup table ordered by name.
func (s *Store) GetFishInfo(ctx context.Context) ([]FishInfo, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	var out []FishInfo
	if err := db.Order("common_name ASC").Find(&out).Error; err != nil {
		return nil, dbError(err, "get_fish_info")
	}
	return out, nil
}

// FindFish looks a species up by common name, ignoring case and spacing.
func (s *Store) FindFish(ctx context.Context, name string) (*FishInfo, error) {
	db, err := s.conn(ctx)
	if err != nil {
		return nil, err
	}
	normalized := NormalizeSpeciesName(name)
	var fish FishInfo
	if err := db.Where("common_name = ?", normalized).Take(&fish).Error; err != nil {
		return nil, lookupError(err, "fish", name, "find_fish")
	}
	return &fish, nil
}

// NormalizeSpeciesName title-cases a species name and collapses whitespace,
// so "  yellow   PERCH" becomes "Yellow Perch".
func NormalizeSpeciesName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.ToLower(strings.Join(fields, " ")))
}
