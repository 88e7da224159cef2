package pool

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk pool layout:
//
//	subject: algebra
//	items:
//	  - id: alg-001
//	    type: single-response
//	    band: easy
//	    topic: linear
//	    irt: {discrimination: 1.2, difficulty: -0.8}
//	    answer_key: ["b"]
type File struct {
	Subject string `yaml:"subject,omitempty"`
	Items   []Item `yaml:"items"`
}

// LoadFile reads a YAML pool file.
func LoadFile(path string) ([]Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pool file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML pool. Items without a subject inherit the file's.
// Types and bands are normalized so exam-bank spellings are accepted.
func Parse(r io.Reader) ([]Item, error) {
	var doc File
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode pool yaml: %w", err)
	}
	items := make([]Item, 0, len(doc.Items))
	seen := make(map[string]bool, len(doc.Items))
	for i, it := range doc.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("item #%d: id is required", i+1)
		}
		if seen[it.ID] {
			return nil, fmt.Errorf("duplicate item id %s", it.ID)
		}
		seen[it.ID] = true

		typ, err := ParseItemType(string(it.Type))
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.ID, err)
		}
		band, err := ParseBand(string(it.Band))
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", it.ID, err)
		}
		it.Type, it.Band = typ, band
		if it.Subject == "" {
			it.Subject = doc.Subject
		}
		items = append(items, it)
	}
	return items, nil
}
