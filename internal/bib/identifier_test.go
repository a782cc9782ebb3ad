package bib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindIdentifier(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   Identifier
		wantOK bool
	}{
		{"doi in text", "Published as https://doi.org/10.1145/3292500.3330701. All rights", Identifier{KindDOI, "10.1145/3292500.3330701"}, true},
		{"doi prefix", "doi:10.1038/s41586-024-07487-w;", Identifier{KindDOI, "10.1038/s41586-024-07487-w"}, true},
		{"doi in parens", "(10.1109/CVPR.2016.90)", Identifier{KindDOI, "10.1109/CVPR.2016.90"}, true},
		{"arxiv doi", "DOI 10.48550/arXiv.2301.07041", Identifier{KindArxiv, "2301.07041"}, true},
		{"arxiv banner", "arXiv:1706.03762v5 [cs.CL] 6 Dec 2017", Identifier{KindArxiv, "1706.03762"}, true},
		{"doi wins over arxiv", "arXiv:1706.03762 published 10.5555/3295222.3295349", Identifier{KindDOI, "10.5555/3295222.3295349"}, true},
		{"nothing", "An essay without identifiers, 2020.", Identifier{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := FindIdentifier(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFilename(t *testing.T) {
	tests := []struct {
		stem   string
		want   Identifier
		wantOK bool
	}{
		{"2301.07041", Identifier{KindArxiv, "2301.07041"}, true},
		{"2301.07041v2", Identifier{KindArxiv, "2301.07041"}, true},
		{"10.1145_3292500.3330701", Identifier{KindDOI, "10.1145/3292500.3330701"}, true},
		{"Smith_2020_X", Identifier{}, false},
		{"1706.03762 notes", Identifier{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseFilename(tt.stem)
		assert.Equal(t, tt.wantOK, ok, tt.stem)
		assert.Equal(t, tt.want, got, tt.stem)
	}
}

func TestIdentifierString(t *testing.T) {
	assert.Equal(t, "doi:10.1/x", Identifier{KindDOI, "10.1/x"}.String())
	assert.Equal(t, "arXiv:2301.07041", Identifier{KindArxiv, "2301.07041"}.String())
	assert.Equal(t, "arxiv", KindArxiv.String())
	assert.Equal(t, "unknown", KindUnknown.String())
}
