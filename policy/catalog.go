package policy

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyCatalog = errors.New("policy catalog has no categories")

// Category - A named class of disallowed content with a stable code.
type Category struct {
	Code        string `json:"code"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func (c Category) String() string {
	return fmt.Sprintf("%s: %s", c.Code, c.Title)
}

// Catalog - An ordered, read-only list of policy categories. Safe for concurrent use once constructed.
type Catalog struct {
	categories []Category
	byCode     map[string]int // code -> index into categories
}

// NewCatalog - Creates a catalog from the given categories, preserving order. Codes must be non-empty, unique, and
// already in normalized form (see NormalizeCode).
func NewCatalog(categories ...Category) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := &Catalog{
		categories: make([]Category, len(categories)),
		byCode:     make(map[string]int, len(categories)),
	}
	for i, cat := range categories {
		if cat.Code == "" {
			return nil, fmt.Errorf("category %d has an empty code", i)
		}
		if NormalizeCode(cat.Code) != cat.Code {
			return nil, fmt.Errorf("category code '%s' is not normalized (expected '%s')", cat.Code, NormalizeCode(cat.Code))
		}
		if _, exists := c.byCode[cat.Code]; exists {
			return nil, fmt.Errorf("duplicate category code '%s'", cat.Code)
		}
		c.categories[i] = cat
		c.byCode[cat.Code] = i
	}
	return c, nil
}

// Categories - Returns a copy of the categories in catalog order.
func (c *Catalog) Categories() []Category {
	res := make([]Category, len(c.categories))
	copy(res, c.categories)
	return res
}

func (c *Catalog) Len() int {
	return len(c.categories)
}

// NormalizeCode - Maps the letter "O" to the digit "0". The remote classifier sometimes emits "O1" for "01".
func NormalizeCode(code string) string {
	return strings.ReplaceAll(code, "O", "0")
}

// Resolve - Looks up a category by code after trimming and normalization. Unknown codes return false rather than an
// error: resolution is best-effort and callers drop what they can't resolve.
func (c *Catalog) Resolve(code string) (Category, bool) {
	code = NormalizeCode(strings.TrimSpace(code))
	if code == "" {
		return Category{}, false
	}
	i, ok := c.byCode[code]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// Text - Renders the catalog in the same format ParseCatalog reads, for embedding in classifier prompts.
func (c *Catalog) Text() string {
	sb := strings.Builder{}
	for i, cat := range c.categories {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s: %s.", cat.Code, cat.Title))
		if cat.Description != "" {
			sb.WriteString("\n")
			sb.WriteString(cat.Description)
		}
	}
	return sb.String()
}
