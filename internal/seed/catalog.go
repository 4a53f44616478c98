package seed

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var defaultCatalogYAML []byte

// City is a candidate location with its reference coordinates.
type City struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// NamePool is a locale's set of first and last names.
type NamePool struct {
	Male   []string `yaml:"male"`
	Female []string `yaml:"female"`
	Last   []string `yaml:"last"`
}

// Catalog is the fixed reference data a run draws from. Treat it as immutable
// once loaded; the seeder never mutates it.
type Catalog struct {
	Tags   []string `yaml:"tags"`
	Cities []City   `yaml:"cities"`
	Names  NamePool `yaml:"names"`
}

// LoadCatalog parses and validates a YAML catalog.
func LoadCatalog(data []byte) (Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// DefaultCatalog returns the embedded catalog: 50 tags and 15 French cities.
func DefaultCatalog() Catalog {
	c, err := LoadCatalog(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Validate checks that every generated user can be given MaxTags distinct tags and a city.
func (c Catalog) Validate() error {
	if len(c.Tags) == 0 {
		return ErrNoTags
	}
	if len(c.Tags) < MaxTags {
		return fmt.Errorf("catalog needs at least %d tags, got %d", MaxTags, len(c.Tags))
	}
	seen := make(map[string]struct{}, len(c.Tags))
	for _, t := range c.Tags {
		if t == "" {
			return errors.New("catalog contains an empty tag")
		}
		if _, dup := seen[t]; dup {
			return fmt.Errorf("catalog contains duplicate tag %q", t)
		}
		seen[t] = struct{}{}
	}

	if len(c.Cities) == 0 {
		return errors.New("catalog has no cities")
	}
	for _, city := range c.Cities {
		if city.Lat < -90 || city.Lat > 90 || city.Lon < -180 || city.Lon > 180 {
			return fmt.Errorf("city %q has out-of-range coordinates", city.Name)
		}
	}

	if len(c.Names.Male) == 0 || len(c.Names.Female) == 0 || len(c.Names.Last) == 0 {
		return errors.New("catalog name pool must have male, female and last names")
	}
	return nil
}
