package policy

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var headerRegex = regexp.MustCompile(`^([0-9O]+):\s*(.+)$`)

// ParseCatalog - Parses catalog text in the classifier prompt format:
//
//	01: Violence and Hate.
//	Should not
//	- ...
//	02: Sexual Content.
//	...
//
// A category starts on a line of the form "CODE: Title." and owns every following line up to the next header.
func ParseCatalog(text string) (*Catalog, error) {
	categories := make([]Category, 0)
	var current *Category
	description := make([]string, 0)

	flush := func() {
		if current == nil {
			return
		}
		current.Description = strings.TrimSpace(strings.Join(description, "\n"))
		categories = append(categories, *current)
		description = description[:0]
	}

	for n, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimRight(line, " \t\r")
		if m := headerRegex.FindStringSubmatch(trimmed); m != nil {
			flush()
			current = &Category{
				Code:  NormalizeCode(m[1]),
				Title: strings.TrimSuffix(strings.TrimSpace(m[2]), "."),
			}
			continue
		}
		if current == nil {
			if strings.TrimSpace(trimmed) != "" {
				return nil, fmt.Errorf("line %d: text before the first category header", n+1)
			}
			continue
		}
		description = append(description, trimmed)
	}
	flush()

	return NewCatalog(categories...)
}

// LoadCatalogFile - Reads and parses a catalog from disk.
func LoadCatalogFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to read policy catalog '%s'", path), err)
	}
	return ParseCatalog(string(b))
}
