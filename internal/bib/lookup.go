package bib

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

// Method records how the identifier of a paper was found.
type Method string

const (
	MethodFilename    Method = "filename"
	MethodInfo        Method = "document_infos"
	MethodText        Method = "text"
	MethodTitleSearch Method = "title_search" // low confidence, never used for renames
)

var ErrNoIdentifier = errors.New("no DOI or arXiv identifier found")

// Result is the outcome of a metadata lookup.
type Result struct {
	Method     Method
	Identifier Identifier
	Metadata   *naming.Metadata
}

// Fetcher resolves an identifier to metadata. *Client implements it.
type Fetcher interface {
	Fetch(ctx context.Context, id Identifier) (*naming.Metadata, error)
}

// Lookup finds a paper's identifier in its file name, info dictionary or
// first pages, then fetches the metadata for it.
type Lookup struct {
	fetcher Fetcher
	pages   int

	infoFile  func(path string) ([]string, error)
	pagesText func(path string, n int) (string, error)
}

// NewLookup returns a Lookup that scans the first pages of text for an identifier.
func NewLookup(f Fetcher, pages int) *Lookup {
	if pages <= 0 {
		pages = 2
	}
	return &Lookup{
		fetcher:   f,
		pages:     pages,
		infoFile:  pdftext.InfoFile,
		pagesText: pdftext.PagesText,
	}
}

// Lookup returns the metadata for the PDF at path.
func (l *Lookup) Lookup(ctx context.Context, path string) (*Result, error) {
	id, method, err := l.identify(path)
	if err != nil {
		return nil, err
	}
	log.Debugf("Found %s for %s via %s", id, filepath.Base(path), method)

	md, err := l.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "fetching metadata for %s", id)
	}
	return &Result{Method: method, Identifier: id, Metadata: md}, nil
}

func (l *Lookup) identify(path string) (Identifier, Method, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if id, ok := ParseFilename(stem); ok {
		return id, MethodFilename, nil
	}

	info, infoErr := l.infoFile(path)
	if infoErr == nil {
		for _, field := range []string{"Subject", "Keywords", "Title"} {
			if v, ok := pdftext.InfoField(info, field); ok {
				if id, ok := FindIdentifier(v); ok {
					return id, MethodInfo, nil
				}
			}
		}
	}

	text, textErr := l.pagesText(path, l.pages)
	if textErr == nil {
		if id, ok := FindIdentifier(text); ok {
			return id, MethodText, nil
		}
	}

	if infoErr != nil && textErr != nil {
		return Identifier{}, "", pkgerrors.Wrap(textErr, "reading PDF")
	}
	return Identifier{}, "", ErrNoIdentifier
}
