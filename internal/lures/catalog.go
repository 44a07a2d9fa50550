// Package lures loads the bundled lure catalog and imports it into the
// catch log so catches can reference lures by id.
package lures

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/trolltrack/trolltrack/internal/datastore"
	"github.com/trolltrack/trolltrack/internal/errors"
)

//go:embed catalog/lures.json
var bundledCatalog []byte

// Item is one catalog entry. Weight is in ounces and Length in inches.
type Item struct {
	Manufacturer string   `json:"Manufacturer"`
	Color        string   `json:"Color"`
	Buoyancy     string   `json:"Buoyancy"`
	Weight       number   `json:"Weight"`
	Length       number   `json:"Length"`
	ImagePaths   []string `json:"ImagePaths"`
}

// PrimaryImage returns the first image path, or "" when there is none.
func (i Item) PrimaryImage() string {
	if len(i.ImagePaths) == 0 {
		return ""
	}
	return i.ImagePaths[0]
}

// Lure converts the item into a datastore lure without an id.
func (i Item) Lure() *datastore.Lure {
	l := &datastore.Lure{
		Manufacturer: strings.TrimSpace(i.Manufacturer),
		Color:        strings.TrimSpace(i.Color),
		Buoyancy:     strings.TrimSpace(i.Buoyancy),
		Weight:       float64(i.Weight),
		Length:       float64(i.Length),
	}
	l.SetImagePaths(i.ImagePaths)
	return l
}

// number accepts both 2.5 and "2.5"; catalog files written by hand use both.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = number(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}

// LoadCatalog reads the catalog at path, or the bundled catalog when path
// is empty.
func LoadCatalog(path string) ([]Item, error) {
	data := bundledCatalog
	source := "bundled"
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, errors.New(err).
				Component("lures").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		source = path
	}
	return ParseCatalog(data, source)
}

// ParseCatalog decodes a JSON array of catalog items. Entries without a
// manufacturer are skipped.
func ParseCatalog(data []byte, source string) ([]Item, error) {
	var raw []Item
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.New(err).
			Component("lures").
			Category(errors.CategoryDataFormat).
			Context("source", source).
			Build()
	}

	items := raw[:0]
	for _, item := range raw {
		if strings.TrimSpace(item.Manufacturer) == "" {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}
