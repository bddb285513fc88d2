package jobtext

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultTags are the benefit tags postings are labelled with.
var DefaultTags = []string{
	"Отклик без резюме",
	"Опыт не нужен",
	"Доступно для соискателей от 45+ лет",
	"Удаленная работа",
	"Доступно для соискателей с ограниченными возможностями",
	"Доступно студентам",
}

// Catalog is the set of benefit tags a caller may filter by.
type Catalog struct {
	Tags []string `yaml:"tags"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	return &Catalog{Tags: slices.Clone(DefaultTags)}
}

// LoadCatalog reads a YAML catalog file; an empty path yields the built-in catalog.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag catalog: %w", err)
	}

	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse tag catalog: %w", err)
	}
	if len(c.Tags) == 0 {
		return nil, fmt.Errorf("tag catalog %s has no tags", path)
	}
	return &c, nil
}

// Contains reports whether tag is in the catalog.
func (c *Catalog) Contains(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// Validate returns an error naming the first tag not in the catalog.
func (c *Catalog) Validate(tags []string) error {
	for _, tag := range tags {
		if !c.Contains(tag) {
			return fmt.Errorf("unknown tag %q", tag)
		}
	}
	return nil
}
