// Package heuristic guesses a paper's title from the layout of its first page
// and confirms it with a CrossRef bibliographic search.
package heuristic

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ohamelijnck/watchpdf/internal/pdftext"
	"github.com/ohamelijnck/watchpdf/pkg/naming"
)

// MinSimilarity is the word overlap a search hit needs to replace the guess.
const MinSimilarity = 0.6

var ErrNoCandidate = errors.New("no title candidate on first page")

// Searcher queries a bibliographic index. *bib.Client implements it.
type Searcher interface {
	QueryBibliographic(ctx context.Context, query string, rows int) ([]*naming.Metadata, error)
}

// TitleSearch implements the optional heuristic title provider.
type TitleSearch struct {
	searcher Searcher
	runs     func(path string) ([]pdftext.Run, error)
}

func New(s Searcher) *TitleSearch {
	return &TitleSearch{searcher: s, runs: pdftext.FirstPageRuns}
}

// SearchTitle returns a candidate file name ("<title>.pdf") for filename in dir.
// An empty name with a nil error means nothing convincing was found.
func (h *TitleSearch) SearchTitle(ctx context.Context, dir, filename string) (string, error) {
	runs, err := h.runs(filepath.Join(dir, filename))
	if err != nil {
		return "", pkgerrors.Wrap(err, "reading first page")
	}

	guess := pdftext.GuessTitle(runs)
	if guess == "" {
		return "", ErrNoCandidate
	}
	log.Debugf("Heuristic title guess for %s: %q", filename, guess)

	hits, err := h.searcher.QueryBibliographic(ctx, guess, 3)
	if err != nil {
		return "", err
	}
	for _, hit := range hits {
		if Similarity(guess, hit.Title) >= MinSimilarity {
			return hit.Title + ".pdf", nil
		}
	}
	if len(strings.Fields(guess)) >= 3 {
		return guess + ".pdf", nil
	}
	return "", nil
}

// Similarity is the Jaccard index of the lower-cased word sets of a and b.
func Similarity(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if wb[w] {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func words(s string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	}) {
		out[w] = true
	}
	return out
}
