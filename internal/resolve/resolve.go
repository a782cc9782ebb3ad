// Package resolve runs the filename fallback chain: bibliographic lookup,
// then the embedded PDF title, then the optional heuristic title search.
package resolve

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/ohamelijnck/watchpdf/internal/bib"
	"github.com/ohamelijnck/watchpdf/pkg/naming"
)

// MetadataLookup finds bibliographic metadata for a PDF.
type MetadataLookup interface {
	Lookup(ctx context.Context, path string) (*bib.Result, error)
}

// TitleExtractor reads the title embedded in a PDF.
type TitleExtractor interface {
	Title(rs io.ReadSeeker) (string, error)
}

// TitleSearcher proposes a file name for a PDF. Returning "" means no result.
type TitleSearcher interface {
	SearchTitle(ctx context.Context, dir, filename string) (string, error)
}

// Source names the provider a candidate came from.
type Source string

const (
	SourceMetadata  Source = "metadata"
	SourceTitle     Source = "pdf_title"
	SourceHeuristic Source = "heuristic"
)

// Candidate is a proposed file stem.
type Candidate struct {
	Stem   string
	Source Source
}

// lowConfidence lists lookup methods whose results are never trusted.
var lowConfidence = map[bib.Method]bool{
	bib.MethodTitleSearch: true,
}

// Resolver runs the providers in order and returns the first candidate.
type Resolver struct {
	format    string
	tags      []naming.Tag
	lookup    MetadataLookup
	extractor TitleExtractor
	searcher  TitleSearcher
}

// New validates format and returns a Resolver. Any provider may be nil, in
// which case its stage is skipped; a nil searcher is the usual way to run
// without the heuristic search.
func New(format string, lookup MetadataLookup, extractor TitleExtractor, searcher TitleSearcher) (*Resolver, error) {
	tags, err := naming.Validate(format)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		format:    format,
		tags:      tags,
		lookup:    lookup,
		extractor: extractor,
		searcher:  searcher,
	}, nil
}

// HasHeuristic reports whether the heuristic search stage is available.
func (r *Resolver) HasHeuristic() bool {
	return r.searcher != nil
}

// Resolve returns the new stem for the PDF at path. Provider errors are
// logged and the next stage is tried; ok is false when every stage failed.
func (r *Resolver) Resolve(ctx context.Context, path string) (Candidate, bool) {
	stages := []struct {
		source Source
		run    func(context.Context, string) (string, error)
	}{
		{SourceMetadata, r.fromMetadata},
		{SourceTitle, r.fromTitle},
		{SourceHeuristic, r.fromSearch},
	}

	for _, stage := range stages {
		stem, err := stage.run(ctx, path)
		if err != nil {
			log.Warnf("Error when processing %s (%s): %v", path, stage.source, err)
			continue
		}
		if stem = naming.Sanitize(stem); stem != "" {
			return Candidate{Stem: stem, Source: stage.source}, true
		}
	}
	return Candidate{}, false
}

func (r *Resolver) fromMetadata(ctx context.Context, path string) (string, error) {
	if r.lookup == nil {
		return "", nil
	}
	res, err := r.lookup.Lookup(ctx, path)
	if err != nil {
		return "", err
	}
	if res == nil || lowConfidence[res.Method] {
		return "", nil
	}
	if res.Metadata == nil || res.Identifier.Value == "" {
		return "", nil
	}
	return naming.Render(*res.Metadata, r.format, r.tags), nil
}

func (r *Resolver) fromTitle(_ context.Context, path string) (string, error) {
	if r.extractor == nil {
		return "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return r.extractor.Title(f)
}

func (r *Resolver) fromSearch(ctx context.Context, path string) (string, error) {
	if r.searcher == nil {
		return "", nil
	}
	name, err := r.searcher.SearchTitle(ctx, filepath.Dir(path), filepath.Base(path))
	if err != nil || name == "" {
		return "", err
	}
	return strings.TrimSuffix(name, filepath.Ext(name)), nil
}
