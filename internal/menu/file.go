package menu

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"maitred/internal/models"
)

// File is the YAML menu definition used to seed the database
type File struct {
	Ingredients []IngredientSpec `yaml:"ingredients"`
	Items       []ItemSpec       `yaml:"items"`
}

// IngredientSpec declares a stocked ingredient
type IngredientSpec struct {
	Name  string  `yaml:"name"`
	Unit  string  `yaml:"unit"`
	Stock float64 `yaml:"stock"`
}

// ItemSpec declares a menu item and the ingredients one serving consumes
type ItemSpec struct {
	models.MenuItem `yaml:",inline"`
	Recipe          map[string]float64 `yaml:"recipe"`
}

// LoadFile reads and parses a YAML menu file
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu file: %w", err)
	}
	return ParseFile(data)
}

// ParseFile parses a YAML menu definition and checks recipe references
func ParseFile(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse menu file: %w", err)
	}

	known := make(map[string]bool, len(f.Ingredients))
	for _, ing := range f.Ingredients {
		known[Normalize(ing.Name)] = true
	}
	for _, item := range f.Items {
		for ing := range item.Recipe {
			if !known[Normalize(ing)] {
				return nil, fmt.Errorf("menu item %q uses undeclared ingredient %q", item.Name, ing)
			}
		}
	}

	return &f, nil
}

// Catalog builds a catalog from the file's items
func (f *File) Catalog() (*Catalog, error) {
	items := make([]models.MenuItem, 0, len(f.Items))
	for _, spec := range f.Items {
		items = append(items, spec.MenuItem)
	}
	return NewCatalog(items)
}
