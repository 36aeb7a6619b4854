package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type productKey string

func TestDistinct(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil slice",
			input:    nil,
			expected: nil,
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "trims whitespace",
			input:    []string{"  wing6  ", "tofu  ", "  egg"},
			expected: []string{"wing6", "tofu", "egg"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"wing6", "tofu", "wing6", "egg", "tofu"},
			expected: []string{"wing6", "tofu", "egg"},
		},
		{
			name:     "removes empty strings",
			input:    []string{"wing6", "", "  ", "tofu"},
			expected: []string{"wing6", "tofu"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Distinct(tt.input))
		})
	}
}

func TestDistinct_NamedStringType(t *testing.T) {
	got := Distinct([]productKey{"wing6", " wing6", "tofu"})
	assert.Equal(t, []productKey{"wing6", "tofu"}, got)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList("   "))
	assert.Equal(t,
		[]string{"owner@deli.tw", "staff@deli.tw"},
		SplitList(" Owner@Deli.tw, staff@deli.tw,owner@deli.tw ,"),
	)
}
