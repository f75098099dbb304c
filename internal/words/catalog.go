package words

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
)

//go:embed categories.json
var defaultData []byte

var (
	ErrNoCategories    = errors.New("no categories selected")
	ErrUnknownCategory = errors.New("unknown category")
	ErrNoWords         = errors.New("no words in selected categories")
)

type Category struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Words []string `json:"words"`
}

// Provider picks round words. Selection within the chosen categories is
// random; the categories themselves scope every pick.
type Provider interface {
	RandomWord(categoryIDs []string) (string, error)
	HintWord(word string, categoryIDs []string) (string, bool)
	Has(categoryID string) bool
}

// Catalog is an in-memory Provider. It is safe for concurrent use.
type Catalog struct {
	mu         sync.Mutex
	categories map[string]Category
	order      []string
	rng        *rand.Rand
}

func NewCatalog(categories []Category, rng *rand.Rand) (*Catalog, error) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	c := &Catalog{
		categories: make(map[string]Category, len(categories)),
		rng:        rng,
	}
	for _, cat := range categories {
		id := strings.TrimSpace(cat.ID)
		if id == "" {
			return nil, fmt.Errorf("category with empty id")
		}
		if _, dup := c.categories[id]; dup {
			return nil, fmt.Errorf("duplicate category %q", id)
		}
		cat.ID = id
		cat.Words = cleanWords(cat.Words)
		c.categories[id] = cat
		c.order = append(c.order, id)
	}
	return c, nil
}

// Default returns a catalog of the embedded word lists.
func Default() (*Catalog, error) {
	cats, err := DefaultCategories()
	if err != nil {
		return nil, err
	}
	return NewCatalog(cats, nil)
}

func DefaultCategories() ([]Category, error) {
	var cats []Category
	if err := json.Unmarshal(defaultData, &cats); err != nil {
		return nil, fmt.Errorf("decoding embedded categories: %w", err)
	}
	return cats, nil
}

func cleanWords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, w := range in {
		w = strings.TrimSpace(w)
		if w == "" || slices.Contains(out, w) {
			continue
		}
		out = append(out, w)
	}
	return out
}

func (c *Catalog) Has(categoryID string) bool {
	_, ok := c.categories[categoryID]
	return ok
}

// Categories lists categories in load order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, 0, len(c.order))
	for _, id := range c.order {
		cat := c.categories[id]
		cat.Words = slices.Clone(cat.Words)
		out = append(out, cat)
	}
	return out
}

func (c *Catalog) pool(categoryIDs []string) ([]string, error) {
	if len(categoryIDs) == 0 {
		return nil, ErrNoCategories
	}
	var pool []string
	for _, id := range categoryIDs {
		cat, ok := c.categories[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, id)
		}
		for _, w := range cat.Words {
			if !slices.Contains(pool, w) {
				pool = append(pool, w)
			}
		}
	}
	if len(pool) == 0 {
		return nil, ErrNoWords
	}
	return pool, nil
}

// RandomWord picks one word uniformly from the union of the given categories.
func (c *Catalog) RandomWord(categoryIDs []string) (string, error) {
	pool, err := c.pool(categoryIDs)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return pool[c.rng.IntN(len(pool))], nil
}

// HintWord picks a different word from the category that holds word, falling
// back to the other selected categories. It reports false when no other word
// exists.
func (c *Catalog) HintWord(word string, categoryIDs []string) (string, bool) {
	var own, rest []string
	for _, id := range categoryIDs {
		cat, ok := c.categories[id]
		if !ok {
			continue
		}
		target := &rest
		if slices.Contains(cat.Words, word) {
			target = &own
		}
		for _, w := range cat.Words {
			if !strings.EqualFold(w, word) && !slices.Contains(*target, w) {
				*target = append(*target, w)
			}
		}
	}

	candidates := own
	if len(candidates) == 0 {
		candidates = rest
	}
	if len(candidates) == 0 {
		return "", false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return candidates[c.rng.IntN(len(candidates))], true
}
