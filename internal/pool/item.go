package pool

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mind-engage/mindengage-cat/internal/irt"
)

type ItemType string

const (
	SingleResponse ItemType = "single-response"
	OpenResponse   ItemType = "open-response"
	Other          ItemType = "other"
)

// ParseItemType also accepts the exam-bank spellings (mcq_single, short_word, numeric).
func ParseItemType(s string) (ItemType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single-response", "single_response", "mcq_single", "true_false":
		return SingleResponse, nil
	case "open-response", "open_response", "short_word", "numeric", "integer":
		return OpenResponse, nil
	case "other":
		return Other, nil
	default:
		return "", fmt.Errorf("unknown item type %q", s)
	}
}

func (t ItemType) Valid() bool {
	switch t {
	case SingleResponse, OpenResponse, Other:
		return true
	}
	return false
}

type Band string

const (
	Easy   Band = "easy"
	Medium Band = "medium"
	Hard   Band = "hard"
)

func ParseBand(s string) (Band, error) {
	b := Band(strings.ToLower(strings.TrimSpace(s)))
	if !b.Valid() {
		return "", fmt.Errorf("unknown difficulty band %q", s)
	}
	return b, nil
}

func (b Band) Valid() bool {
	switch b {
	case Easy, Medium, Hard:
		return true
	}
	return false
}

// Item is a scoreable question. The engine never mutates items.
type Item struct {
	ID        string     `json:"id" yaml:"id"`
	Type      ItemType   `json:"type" yaml:"type"`
	Band      Band       `json:"band" yaml:"band"`
	Params    irt.Params `json:"irt" yaml:"irt"`
	Subject   string     `json:"subject,omitempty" yaml:"subject,omitempty"`
	Topic     string     `json:"topic,omitempty" yaml:"topic,omitempty"`
	Prompt    string     `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Choices   []string   `json:"choices,omitempty" yaml:"choices,omitempty"`
	AnswerKey []string   `json:"answer_key,omitempty" yaml:"answer_key,omitempty"`
}

// Validate checks an item is usable under model m. Discrimination must be
// positive under every model, Rasch included.
func (it Item) Validate(m irt.Model) error {
	if strings.TrimSpace(it.ID) == "" {
		return errors.New("item id is required")
	}
	if !it.Type.Valid() {
		return fmt.Errorf("item %s: unknown type %q", it.ID, it.Type)
	}
	if !it.Band.Valid() {
		return fmt.Errorf("item %s: unknown band %q", it.ID, it.Band)
	}
	p := it.Params
	if math.IsNaN(p.Difficulty) || math.IsInf(p.Difficulty, 0) {
		return fmt.Errorf("item %s: difficulty must be finite", it.ID)
	}
	if !(p.Discrimination > 0) || math.IsInf(p.Discrimination, 0) {
		return fmt.Errorf("item %s: discrimination must be > 0", it.ID)
	}
	if m == irt.Model3PL && (p.Guessing < 0 || p.Guessing >= 1) {
		return fmt.Errorf("item %s: guessing must be in [0,1)", it.ID)
	}
	return nil
}

// PublicItem is what a candidate sees: no key, no calibration.
type PublicItem struct {
	ID      string   `json:"id"`
	Type    ItemType `json:"type"`
	Band    Band     `json:"band"`
	Prompt  string   `json:"prompt,omitempty"`
	Choices []string `json:"choices,omitempty"`
}

func (it Item) Public() PublicItem {
	return PublicItem{ID: it.ID, Type: it.Type, Band: it.Band, Prompt: it.Prompt, Choices: it.Choices}
}
