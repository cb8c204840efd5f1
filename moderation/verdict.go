package moderation

import (
	"strings"

	mapset "github.com/deckarep/golang-set"
	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/policy"
)

const rawSafe = "safe"
const rawUnsafe = "unsafe"

// Verdict - The classification of one message. Unsafe is authoritative: an unsafe verdict with no categories still
// causes a refusal.
type Verdict struct {
	Unsafe       bool
	Raw          string
	Categories   []policy.Category // only ever populated when Unsafe
	Subject      chat.Role
	Unrecognized bool // raw text was neither "safe" nor "unsafe" and the verdict failed closed
}

func (v *Verdict) Codes() []string {
	codes := make([]string, len(v.Categories))
	for i, c := range v.Categories {
		codes[i] = c.Code
	}
	return codes
}

// ParseVerdict - Interprets raw classifier output. The first line must be exactly "safe" or "unsafe". When unsafe, the
// next non-blank line is a comma-separated list of category codes, which are resolved against the catalog. Codes which
// don't resolve are dropped, as are repeats. Any other first line is treated as unsafe.
func ParseVerdict(raw string, catalog *policy.Catalog, subject chat.Role) *Verdict {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	v := &Verdict{
		Raw:        raw,
		Categories: make([]policy.Category, 0),
		Subject:    subject,
	}

	switch strings.TrimSpace(lines[0]) {
	case rawUnsafe:
		v.Unsafe = true
		codes := ""
		for _, line := range lines[1:] {
			if strings.TrimSpace(line) != "" {
				codes = line
				break
			}
		}
		seen := mapset.NewThreadUnsafeSet()
		for _, code := range strings.Split(codes, ",") {
			cat, ok := catalog.Resolve(code)
			if !ok {
				continue
			}
			if seen.Add(cat.Code) {
				v.Categories = append(v.Categories, cat)
			}
		}
	case rawSafe:
		v.Unsafe = false
	default:
		v.Unsafe = true
		v.Unrecognized = true
	}
	return v
}
