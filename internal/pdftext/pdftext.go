// Package pdftext reads the bits of a PDF the rename providers care about:
// the info dictionary, the plain text of the first pages and the styled
// text runs of the first page.
package pdftext

import (
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	pdfcpu "github.com/pdfcpu/pdfcpu/pkg/api"
)

var ErrTitleNotFound = errors.New("title not found")

// InfoFile returns the pdfcpu info report for the file at path.
func InfoFile(path string) (info []string, err error) {
	defer recoverInto(&err)
	return pdfcpu.InfoFile(path, []string{}, nil)
}

// Info returns the pdfcpu info report read from rs.
func Info(rs io.ReadSeeker) (info []string, err error) {
	defer recoverInto(&err)
	return pdfcpu.Info(rs, []string{}, nil)
}

// InfoField returns the value of a "Name: value" line of an info report.
func InfoField(info []string, name string) (string, bool) {
	prefix := name + ": "
	for _, line := range info {
		cleaned := strings.TrimSpace(line)
		if strings.HasPrefix(cleaned, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(cleaned, prefix)), true
		}
	}
	return "", false
}

// placeholderTitle matches titles authoring tools write when the author did not.
var placeholderTitle = regexp.MustCompile(`(?i)^(untitled|title|none|unknown|slide \d+|microsoft word\b.*|.*\.(pdf|docx?|tex|dvi|ps|indd))$`)

// TitleFromInfo extracts a usable title from an info report.
func TitleFromInfo(info []string) (string, error) {
	title, ok := InfoField(info, "Title")
	if !ok {
		return "", ErrTitleNotFound
	}
	title = strings.Join(strings.Fields(title), " ")
	if len([]rune(title)) < 3 || placeholderTitle.MatchString(title) {
		return "", ErrTitleNotFound
	}
	return title, nil
}

// TitleExtractor reads the Title entry of a PDF's info dictionary.
type TitleExtractor struct{}

// Title returns the embedded document title.
func (TitleExtractor) Title(rs io.ReadSeeker) (string, error) {
	info, err := Info(rs)
	if err != nil {
		return "", err
	}
	return TitleFromInfo(info)
}

// PagesText returns the plain text of the first n pages of the file at path.
func PagesText(path string, n int) (text string, err error) {
	defer recoverInto(&err)

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for i := 1; i <= reader.NumPage() && i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// Run is a piece of text drawn at a given position and font size.
type Run struct {
	Text string
	Size float64
	X, Y float64
	W    float64
}

// FirstPageRuns returns the text runs of page one in content-stream order.
func FirstPageRuns(path string) (runs []Run, err error) {
	defer recoverInto(&err)

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if reader.NumPage() < 1 {
		return nil, fmt.Errorf("%s has no pages", path)
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return nil, fmt.Errorf("%s: first page is empty", path)
	}
	for _, t := range page.Content().Text {
		runs = append(runs, Run{Text: t.S, Size: t.FontSize, X: t.X, Y: t.Y, W: t.W})
	}
	return runs, nil
}

type segment struct {
	size float64
	sb   strings.Builder
	last Run
}

// GuessTitle returns the longest-looking line set in the largest font on the
// page, which on papers is almost always the title.
func GuessTitle(runs []Run) string {
	var segs []*segment
	var cur *segment
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if cur == nil || math.Abs(cur.size-r.Size) > 0.5 {
			cur = &segment{size: r.Size}
			segs = append(segs, cur)
		} else if needsSpace(cur.last, r) {
			cur.sb.WriteByte(' ')
		}
		cur.sb.WriteString(r.Text)
		cur.last = r
	}

	best, bestSize := "", 0.0
	for _, s := range segs {
		text := strings.Join(strings.Fields(s.sb.String()), " ")
		if !titleLike(text) {
			continue
		}
		if s.size > bestSize {
			best, bestSize = text, s.size
		}
	}
	return best
}

func needsSpace(prev, next Run) bool {
	if strings.HasSuffix(prev.Text, " ") || strings.HasPrefix(next.Text, " ") {
		return false
	}
	if math.Abs(prev.Y-next.Y) > next.Size*0.5 {
		return true
	}
	return next.X-(prev.X+prev.W) > next.Size*0.15
}

func titleLike(text string) bool {
	if len([]rune(text)) < 8 || len([]rune(text)) > 300 {
		return false
	}
	if len(strings.Fields(text)) < 2 {
		return false
	}
	return !strings.HasPrefix(strings.ToLower(text), "arxiv")
}

// recoverInto turns a panic from the PDF readers into an error; both libraries
// panic on some malformed files.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("malformed PDF: %v", r)
	}
}
