package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"gorm.io/gorm"

	"github.com/trolltrack/trolltrack/internal/datastore"
)

// sampleSize is how many catches are compared field by field
const sampleSize = 5

// Verifier compares the target with the source after an export.
type Verifier struct {
	sourceDB *gorm.DB
	targetDB *gorm.DB
	out      io.Writer
}

// NewVerifier creates a new Verifier.
func NewVerifier(sourceDB, targetDB *gorm.DB, out io.Writer) *Verifier {
	return &Verifier{sourceDB: sourceDB, targetDB: targetDB, out: out}
}

// Verify checks row counts and a random sample of catches.
func (v *Verifier) Verify(ctx context.Context) error {
	if err := v.verifyCounts(ctx); err != nil {
		return fmt.Errorf("count verification failed: %w", err)
	}
	if err := v.sampleCatches(ctx, sampleSize); err != nil {
		return fmt.Errorf("sample verification failed: %w", err)
	}
	return nil
}

func (v *Verifier) verifyCounts(ctx context.Context) error {
	fmt.Fprintln(v.out, "\nVerifying record counts...")
	fmt.Fprintf(v.out, "%-25s %12s %12s %8s\n", "Table", "Source", "Target", "Match")
	fmt.Fprintln(v.out, strings.Repeat("-", 60))

	models := []struct {
		name  string
		model any
	}{
		{"fish_info", &datastore.FishInfo{}},
		{"programs", &datastore.Program{}},
		{"location_fixes", &datastore.LocationFix{}},
		{"lures", &datastore.Lure{}},
		{"lure_images", &datastore.LureImage{}},
		{"catches", &datastore.CatchRecord{}},
	}

	allMatch := true
	for _, t := range models {
		var sourceCount, targetCount int64
		if err := v.sourceDB.WithContext(ctx).Model(t.model).Count(&sourceCount).Error; err != nil {
			return fmt.Errorf("failed to count source %s: %w", t.name, err)
		}
		if err := v.targetDB.WithContext(ctx).Model(t.model).Count(&targetCount).Error; err != nil {
			return fmt.Errorf("failed to count target %s: %w", t.name, err)
		}

		match := "✓"
		if sourceCount != targetCount {
			match = "✗"
			allMatch = false
		}
		fmt.Fprintf(v.out, "%-25s %12d %12d %8s\n", t.name, sourceCount, targetCount, match)
	}

	if !allMatch {
		return fmt.Errorf("record counts do not match")
	}
	return nil
}

// sampleCatches compares random catches field by field.
func (v *Verifier) sampleCatches(ctx context.Context, count int) error {
	var sources []datastore.CatchRecord
	if err := v.sourceDB.WithContext(ctx).Order("RANDOM()").Limit(count).Find(&sources).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}
	if len(sources) == 0 {
		fmt.Fprintln(v.out, "  catches: no records to sample")
		return nil
	}

	for i := range sources {
		src := &sources[i]
		var target datastore.CatchRecord
		if err := v.targetDB.WithContext(ctx).Where("id = ?", src.ID).First(&target).Error; err != nil {
			return fmt.Errorf("catch %s not found in target: %w", src.ID, err)
		}
		if err := compareCatch(src, &target); err != nil {
			return err
		}
	}

	fmt.Fprintf(v.out, "  catches: %d samples verified\n", len(sources))
	return nil
}

func compareCatch(src, target *datastore.CatchRecord) error {
	switch {
	case src.FishInfoID != target.FishInfoID:
		return fmt.Errorf("catch %s: fish mismatch (%s vs %s)", src.ID, src.FishInfoID, target.FishInfoID)
	case src.LocationID != target.LocationID:
		return fmt.Errorf("catch %s: location mismatch (%s vs %s)", src.ID, src.LocationID, target.LocationID)
	case src.Timestamp.Unix() != target.Timestamp.Unix(): // MySQL may round sub-second precision
		return fmt.Errorf("catch %s: timestamp mismatch (%s vs %s)", src.ID, src.Timestamp, target.Timestamp)
	case math.Abs(src.Weight-target.Weight) > 1e-6:
		return fmt.Errorf("catch %s: weight mismatch (%f vs %f)", src.ID, src.Weight, target.Weight)
	case math.Abs(src.Length-target.Length) > 1e-6:
		return fmt.Errorf("catch %s: length mismatch (%f vs %f)", src.ID, src.Length, target.Length)
	}
	return nil
}
