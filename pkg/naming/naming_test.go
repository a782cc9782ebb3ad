package naming

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		format   string
		wantTags []Tag
		wantErr  bool
	}{
		{"default", DefaultFormat, []Tag{TagYear, TagAuthorEtAl, TagTitle}, false},
		{"underscored", "{author}_{year}_{title}", []Tag{TagAuthor, TagYear, TagTitle}, false},
		{"repeated tag", "{year}-{title}-{year}", []Tag{TagYear, TagTitle}, false},
		{"unknown tag", "{author}_{volume}", nil, true},
		{"no tags", "paper", nil, true},
		{"empty", "  ", nil, true},
		{"stray brace", "{author}_{year", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, err := Validate(tt.format)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTags, tags)
		})
	}
}

func TestRender(t *testing.T) {
	smith := Metadata{
		Title:   "X",
		Year:    "2020",
		Authors: []Author{{Family: "Smith"}},
	}

	tags, err := Validate("{author}_{year}_{title}")
	require.NoError(t, err)
	assert.Equal(t, "Smith_2020_X", Render(smith, "{author}_{year}_{title}", tags))

	many := Metadata{
		Title:   "Attention: is all you need?",
		Year:    "2017",
		Journal: "NeurIPS",
		Authors: []Author{{Given: "Ashish", Family: "Vaswani"}, {Family: "Shazeer"}, {Family: "Parmar"}},
	}
	tags, err = Validate(DefaultFormat)
	require.NoError(t, err)
	assert.Equal(t, "2017 - Vaswani et al. - Attention - is all you need", Render(many, DefaultFormat, tags))

	two := Metadata{Authors: []Author{{Family: "Lovelace"}, {Given: "Charles Babbage"}}, Year: "1843", Title: "Notes"}
	tags, err = Validate("{author_etal} ({year}) {Title}")
	require.NoError(t, err)
	assert.Equal(t, "Lovelace and Babbage (1843) Notes", Render(two, "{author_etal} ({year}) {Title}", tags))
}

func TestRenderLeavesUnlistedTags(t *testing.T) {
	md := Metadata{Title: "T", Year: "2001"}
	assert.Equal(t, "{year} T", Render(md, "{year} {title}", []Tag{TagTitle}))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain title", "plain title"},
		{"a/b\\c", "a-b-c"},
		{"  lots\tof\n  space  ", "lots of space"},
		{"trailing dots...", "trailing dots"},
		{"what? <really> |x|", "what really x"},
		{"école", "école"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.in), "Sanitize(%q)", tt.in)
	}

	long := Sanitize(strings.Repeat("é", 150))
	assert.LessOrEqual(t, len(long), maxStemBytes)
	assert.True(t, strings.HasPrefix(long, "é"))
}
