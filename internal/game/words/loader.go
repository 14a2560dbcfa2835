package words

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlCategoryFile is the YAML structure of a single category file.
type yamlCategoryFile struct {
	Category string   `yaml:"category"`
	Words    []string `yaml:"words"`
}

// LoadCategoryFromBytes parses a category from YAML bytes.
//
// Postcondition: Returns the category name and its trimmed words, or a non-nil error.
func LoadCategoryFromBytes(data []byte) (string, []string, error) {
	var file yamlCategoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return "", nil, fmt.Errorf("parsing category YAML: %w", err)
	}
	name := strings.TrimSpace(file.Category)
	list := make([]string, 0, len(file.Words))
	for _, w := range file.Words {
		list = append(list, strings.TrimSpace(w))
	}
	if err := validateCategory(name, list); err != nil {
		return "", nil, fmt.Errorf("validating category: %w", err)
	}
	return name, list, nil
}

// LoadCategoryFromFile reads and parses a single category YAML file.
//
// Precondition: path must point to a YAML category file.
func LoadCategoryFromFile(path string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading category file %s: %w", path, err)
	}
	return LoadCategoryFromBytes(data)
}

// LoadDir loads every YAML file in dir as one category and builds a Bank.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Bank containing every category, or the first error
// encountered (including duplicate category names across files).
func LoadDir(dir string) (*Bank, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading word directory %s: %w", dir, err)
	}

	categories := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		category, list, err := LoadCategoryFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading category from %s: %w", name, err)
		}
		if _, exists := categories[category]; exists {
			return nil, fmt.Errorf("duplicate category %q in %s", category, name)
		}
		categories[category] = list
	}

	if len(categories) == 0 {
		return nil, fmt.Errorf("no category files found in %s", dir)
	}
	return NewBank(categories)
}
