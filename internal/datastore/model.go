package datastore

import (
	"time"
)

// SchemaVersion is stored in schema_info after migration.
const SchemaVersion = 1

// UnknownFishName is the fallback species for catches whose species is not
// in the lookup table.
const UnknownFishName = "Unknown"

// Fixed ids of the seeded species. They are stable across installs so
// exported catch logs can be merged.
const (
	UnknownFishID = "e1e25250-d8a4-4a4e-a443-efe5411a456e"
	WalleyeFishID = "c3cb4b07-efda-4ff7-8a15-42c4a7e3e5f2"
	PerchFishID   = "c6349469-152f-4dca-b87c-464e5f64c2c7"
	CobiaFishID   = "2df05ec7-f99d-483a-9660-e2743c322eff"
)

// CatchRecord is one logged catch. The location fix is owned by the catch;
// program, fish and lure are shared references.
type CatchRecord struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Timestamp time.Time `gorm:"index;not null" json:"timestamp"`

	LocationID string       `gorm:"size:36;index" json:"location_id,omitempty"`
	Location   *LocationFix `gorm:"foreignKey:LocationID" json:"location,omitempty"`

	ProgramID *string  `gorm:"size:36;index" json:"program_id,omitempty"`
	Program   *Program `gorm:"foreignKey:ProgramID" json:"program,omitempty"`

	FishInfoID string    `gorm:"size:36;index;not null" json:"fish_info_id"`
	FishInfo   *FishInfo `gorm:"foreignKey:FishInfoID" json:"fish,omitempty"`

	LureID *string `gorm:"size:36;index" json:"lure_id,omitempty"`
	Lure   *Lure   `gorm:"foreignKey:LureID" json:"lure,omitempty"`

	Weight float64 `json:"weight,omitempty"` // pounds
	Length float64 `json:"length,omitempty"` // inches
	Notes  string  `gorm:"type:text" json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the default table name
func (CatchRecord) TableName() string { return "catches" }

// SpeciesName returns the resolved species, or Unknown before resolution.
func (c *CatchRecord) SpeciesName() string {
	if c.FishInfo != nil && c.FishInfo.CommonName != "" {
		return c.FishInfo.CommonName
	}
	return UnknownFishName
}

// LocationFix is a position reading.
type LocationFix struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Latitude  float64   `gorm:"not null" json:"latitude"`
	Longitude float64   `gorm:"not null" json:"longitude"`
	Altitude  *float64  `json:"altitude,omitempty"` // meters
	Accuracy  *float64  `json:"accuracy,omitempty"` // meters
	Course    *float64  `json:"course,omitempty"`   // degrees from true north
	Speed     *float64  `json:"speed,omitempty"`    // meters per second
	Timestamp time.Time `json:"timestamp"`
}

func (LocationFix) TableName() string { return "location_fixes" }

// Program is a trolling configuration. At most one program is active.
type Program struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description,omitempty"`
	IsActive    bool      `gorm:"index" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Program) TableName() string { return "programs" }

// FishInfo is a species in the shared lookup table.
type FishInfo struct {
	ID             string `gorm:"primaryKey;size:36" json:"id"`
	CommonName     string `gorm:"size:100;uniqueIndex;not null" json:"common_name"`
	ScientificName string `gorm:"size:200" json:"scientific_name,omitempty"`
	Habitat        string `gorm:"size:200" json:"habitat,omitempty"`
}

func (FishInfo) TableName() string { return "fish_info" }

// Lure is a lure in the tackle box. Images are kept in display order.
type Lure struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	Manufacturer string      `gorm:"size:100;index:idx_lure_identity" json:"manufacturer"`
	Color        string      `gorm:"size:100;index:idx_lure_identity" json:"color"`
	Length       float64     `gorm:"index:idx_lure_identity" json:"length"` // inches
	Buoyancy     string      `gorm:"size:50" json:"buoyancy,omitempty"`
	Weight       float64     `json:"weight,omitempty"` // ounces
	Images       []LureImage `gorm:"foreignKey:LureID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (Lure) TableName() string { return "lures" }

// PrimaryImage returns the first image path, or "" when there are none.
func (l *Lure) PrimaryImage() string {
	if len(l.Images) == 0 {
		return ""
	}
	return l.Images[0].Path
}

// ImagePaths returns the image paths in order.
func (l *Lure) ImagePaths() []string {
	paths := make([]string, 0, len(l.Images))
	for _, img := range l.Images {
		paths = append(paths, img.Path)
	}
	return paths
}

// SetImagePaths replaces the image list, keeping the given order.
func (l *Lure) SetImagePaths(paths []string) {
	l.Images = make([]LureImage, 0, len(paths))
	for i, p := range paths {
		l.Images = append(l.Images, LureImage{LureID: l.ID, Position: i, Path: p})
	}
}

// LureImage is one picture of a lure.
type LureImage struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	LureID   string `gorm:"size:36;index;not null" json:"lure_id"`
	Position int    `gorm:"not null;default:0" json:"position"`
	Path     string `gorm:"size:500;not null" json:"path"`
}

func (LureImage) TableName() string { return "lure_images" }

// SchemaInfo records the schema version of the database file.
type SchemaInfo struct {
	ID        uint `gorm:"primaryKey"`
	Version   int  `gorm:"not null"`
	UpdatedAt time.Time
}

func (SchemaInfo) TableName() string { return "schema_info" }

// CatchStatistics are catch counts over fixed windows ending now.
type CatchStatistics struct {
	Total      int64      `json:"total"`
	Today      int64      `json:"today"`
	Last7Days  int64      `json:"last_7_days"`
	Last30Days int64      `json:"last_30_days"`
	LastCatch  *time.Time `json:"last_catch,omitempty"`
	ComputedAt time.Time  `json:"computed_at"`
}

// Models returns every table model in foreign key order, parents first.
func Models() []any { return allModels() }

// allModels lists every table in migration order
func allModels() []any {
	return []any{
		&SchemaInfo{},
		&FishInfo{},
		&Program{},
		&LocationFix{},
		&Lure{},
		&LureImage{},
		&CatchRecord{},
	}
}

// seedFish is the initial species lookup table
func seedFish() []FishInfo {
	return []FishInfo{
		{ID: UnknownFishID, CommonName: UnknownFishName, ScientificName: "Unknown", Habitat: "Unknown"},
		{ID: WalleyeFishID, CommonName: "Walleye", ScientificName: "Sander vitreus", Habitat: "Freshwater lakes"},
		{ID: PerchFishID, CommonName: "Perch", ScientificName: "Perca flavescens", Habitat: "Freshwater"},
		{ID: CobiaFishID, CommonName: "Cobia", ScientificName: "Rachycentron canadum", Habitat: "Saltwater"},
	}
}
