package moderation

import (
	"testing"

	"github.com/matrix-org/policyrelay/chat"
	"github.com/matrix-org/policyrelay/policy"
	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	t.Parallel()

	catalog := policy.DefaultCatalog()
	cases := []struct {
		name         string
		raw          string
		unsafe       bool
		unrecognized bool
		codes        []string
	}{
		{name: "safe", raw: "safe", unsafe: false, codes: []string{}},
		{name: "safe with whitespace", raw: "  safe\n", unsafe: false, codes: []string{}},
		{name: "unsafe without second line", raw: "unsafe", unsafe: true, codes: []string{}},
		{name: "unsafe with blank second line", raw: "unsafe\n", unsafe: true, codes: []string{}},
		{name: "unsafe with unknown code", raw: "unsafe\n99", unsafe: true, codes: []string{}},
		{name: "unsafe with codes", raw: "unsafe\n01,03", unsafe: true, codes: []string{"01", "03"}},
		{name: "unsafe with letter O", raw: " unsafe\nO3 ", unsafe: true, codes: []string{"03"}},
		{name: "duplicates collapse", raw: "unsafe\nO1, 06,01,06", unsafe: true, codes: []string{"01", "06"}},
		{name: "mixed known and unknown", raw: "unsafe\n42,05", unsafe: true, codes: []string{"05"}},
		{name: "unrecognized", raw: "I cannot comply with that request.", unsafe: true, unrecognized: true, codes: []string{}},
		{name: "empty", raw: "", unsafe: true, unrecognized: true, codes: []string{}},
		{name: "safe with trailing spaces on the line", raw: "safe  \r\n", unsafe: false, codes: []string{}},
		{name: "codes after a blank line", raw: "unsafe\n\n 01,03", unsafe: true, codes: []string{"01", "03"}},
		{name: "word starting with safe", raw: "safety cannot be assessed", unsafe: true, unrecognized: true, codes: []string{}},
		{name: "safe with suffix", raw: "safe-ish", unsafe: true, unrecognized: true, codes: []string{}},
		{name: "word starting with unsafe", raw: "unsafely", unsafe: true, unrecognized: true, codes: []string{}},
		{name: "safe prefix hiding unsafe", raw: "safeguarding required: unsafe\n01", unsafe: true, unrecognized: true, codes: []string{}},
		{name: "verdict with trailing words", raw: "safe, probably", unsafe: true, unrecognized: true, codes: []string{}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			v := ParseVerdict(c.raw, catalog, chat.RoleUser)
			assert.Equal(t, c.unsafe, v.Unsafe)
			assert.Equal(t, c.unrecognized, v.Unrecognized)
			assert.Equal(t, c.codes, v.Codes())
			assert.Equal(t, c.raw, v.Raw)
			assert.Equal(t, chat.RoleUser, v.Subject)
			if !v.Unsafe {
				assert.Empty(t, v.Categories)
			}
		})
	}
}

func TestParseVerdictResolvesFullCategories(t *testing.T) {
	t.Parallel()

	v := ParseVerdict("unsafe\n06", policy.DefaultCatalog(), chat.RoleAssistant)
	assert.Len(t, v.Categories, 1)
	assert.Equal(t, "06", v.Categories[0].Code)
	assert.Equal(t, "Self-Harm", v.Categories[0].Title)
	assert.NotEmpty(t, v.Categories[0].Description)
	assert.Equal(t, chat.RoleAssistant, v.Subject)
}
