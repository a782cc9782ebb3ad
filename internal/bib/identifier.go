package bib

import (
	"regexp"
	"strings"
)

// Kind classifies a paper identifier.
type Kind int

const (
	KindUnknown Kind = iota
	KindDOI
	KindArxiv
)

func (k Kind) String() string {
	switch k {
	case KindDOI:
		return "doi"
	case KindArxiv:
		return "arxiv"
	default:
		return "unknown"
	}
}

// Identifier is a DOI or arXiv id found for a paper.
type Identifier struct {
	Kind  Kind
	Value string // e.g. "10.1145/3292500.3330701" or "2301.07041"
}

// String returns the identifier the way it is usually cited.
func (id Identifier) String() string {
	switch id.Kind {
	case KindDOI:
		return "doi:" + id.Value
	case KindArxiv:
		return "arXiv:" + id.Value
	default:
		return id.Value
	}
}

// DOIPattern matches a DOI anywhere inside free text.
var DOIPattern = regexp.MustCompile(`(?i)\b(10\.\d{4,9}/[^\s"'<>]+)`)

// ArxivTextPattern matches an explicit arXiv reference such as "arXiv:2301.07041v2".
var ArxivTextPattern = regexp.MustCompile(`(?i)\barxiv\s*:?\s*(\d{4}\.\d{4,5})(?:v\d+)?\b`)

// ArxivFilePattern matches file names that are a bare arXiv id, as saved by arxiv.org.
var ArxivFilePattern = regexp.MustCompile(`^(\d{4}\.\d{4,5})(?:v\d+)?$`)

// FindIdentifier returns the first DOI in text, else the first explicit arXiv
// reference. arXiv DOIs (10.48550/arXiv.NNNN) are reported as arXiv ids.
func FindIdentifier(text string) (Identifier, bool) {
	if m := DOIPattern.FindStringSubmatch(text); m != nil {
		doi := trimDOI(m[1])
		if arxiv, ok := arxivFromDOI(doi); ok {
			return Identifier{Kind: KindArxiv, Value: arxiv}, true
		}
		return Identifier{Kind: KindDOI, Value: doi}, true
	}
	if m := ArxivTextPattern.FindStringSubmatch(text); m != nil {
		return Identifier{Kind: KindArxiv, Value: m[1]}, true
	}
	return Identifier{}, false
}

// ParseFilename detects an identifier encoded in a file stem, e.g. "2301.07041v1"
// or a DOI where "/" was replaced by "_".
func ParseFilename(stem string) (Identifier, bool) {
	stem = strings.TrimSpace(stem)
	if m := ArxivFilePattern.FindStringSubmatch(stem); m != nil {
		return Identifier{Kind: KindArxiv, Value: m[1]}, true
	}
	if !strings.HasPrefix(stem, "10.") {
		return Identifier{}, false
	}
	if !strings.Contains(stem, "/") {
		stem = strings.Replace(stem, "_", "/", 1)
	}
	return FindIdentifier(stem)
}

func trimDOI(doi string) string {
	return strings.TrimRight(doi, ".,;:)]}")
}

func arxivFromDOI(doi string) (string, bool) {
	const prefix = "10.48550/arxiv."
	if !strings.HasPrefix(strings.ToLower(doi), prefix) {
		return "", false
	}
	id := doi[len(prefix):]
	if m := ArxivFilePattern.FindStringSubmatch(id); m != nil {
		return m[1], true
	}
	return "", false
}
