package heuristic

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ohamelijnck/watchpdf/internal/pdftext"
	"github.com/ohamelijnck/watchpdf/pkg/naming"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) QueryBibliographic(ctx context.Context, query string, rows int) ([]*naming.Metadata, error) {
	args := m.Called(query, rows)
	hits, _ := args.Get(0).([]*naming.Metadata)
	return hits, args.Error(1)
}

func titleRuns(title string) []pdftext.Run {
	return []pdftext.Run{
		{Text: title, Size: 18, X: 50, Y: 700, W: 400},
		{Text: "Some body text for the paper", Size: 10, X: 50, Y: 600, W: 300},
	}
}

func newTestSearch(s Searcher, runs []pdftext.Run, err error) *TitleSearch {
	h := New(s)
	h.runs = func(string) ([]pdftext.Run, error) { return runs, err }
	return h
}

func TestSearchTitleUsesMatchingHit(t *testing.T) {
	s := new(MockSearcher)
	s.On("QueryBibliographic", "Attention is all you need", 3).Return([]*naming.Metadata{
		{Title: "Something Else Entirely"},
		{Title: "Attention Is All You Need"},
	}, nil)

	h := newTestSearch(s, titleRuns("Attention is all you need"), nil)
	name, err := h.SearchTitle(context.Background(), "/papers", "download.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Attention Is All You Need.pdf", name)
}

func TestSearchTitleFallsBackToGuess(t *testing.T) {
	s := new(MockSearcher)
	s.On("QueryBibliographic", mock.Anything, 3).Return([]*naming.Metadata{{Title: "Unrelated"}}, nil)

	h := newTestSearch(s, titleRuns("Sparse Coding for Robots"), nil)
	name, err := h.SearchTitle(context.Background(), "/papers", "download.pdf")
	require.NoError(t, err)
	assert.Equal(t, "Sparse Coding for Robots.pdf", name)
}

func TestSearchTitleShortGuessWithoutHit(t *testing.T) {
	s := new(MockSearcher)
	s.On("QueryBibliographic", mock.Anything, 3).Return(nil, nil)

	h := newTestSearch(s, titleRuns("Quantum Sheep"), nil)
	name, err := h.SearchTitle(context.Background(), "/papers", "download.pdf")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestSearchTitleErrors(t *testing.T) {
	s := new(MockSearcher)

	_, err := newTestSearch(s, nil, errors.New("malformed")).SearchTitle(context.Background(), "/p", "a.pdf")
	assert.Error(t, err)

	_, err = newTestSearch(s, nil, nil).SearchTitle(context.Background(), "/p", "a.pdf")
	assert.ErrorIs(t, err, ErrNoCandidate)

	s.On("QueryBibliographic", mock.Anything, 3).Return(nil, errors.New("HTTP 500"))
	_, err = newTestSearch(s, titleRuns("A Long Enough Title"), nil).SearchTitle(context.Background(), "/p", "a.pdf")
	assert.EqualError(t, err, "HTTP 500")
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("Attention is all you need", "ATTENTION IS ALL YOU NEED."), 1e-9)
	assert.InDelta(t, 0.0, Similarity("", "x"), 1e-9)
	assert.InDelta(t, 0.5, Similarity("deep residual", "deep learning residual nets"), 1e-9)
}
