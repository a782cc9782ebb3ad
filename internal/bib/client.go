package bib

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/ohamelijnck/watchpdf/pkg/naming"
)

// Base URLs for metadata resolution. Declared as vars so tests can
// substitute httptest servers.
var (
	crossrefAPIBase = "https://api.crossref.org/works"
	arxivAPIBase    = "https://export.arxiv.org/api/query"
)

const userAgent = "watchpdf/0.1 (https://github.com/ohamelijnck/watchpdf)"

// Client fetches bibliographic metadata from CrossRef and arXiv.
type Client struct {
	HTTP   *http.Client
	Mailto string // optional contact, puts requests in CrossRef's polite pool

	// Rate limited requests (HTTP 429) are retried up to MaxRetries times,
	// waiting Retry-After or Backoff doubled per attempt.
	MaxRetries int
	Backoff    time.Duration
}

// NewClient returns a Client with the given per-request timeout.
func NewClient(timeout time.Duration, mailto string) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTP:       &http.Client{Timeout: timeout},
		Mailto:     mailto,
		MaxRetries: 3,
		Backoff:    2 * time.Second,
	}
}

// Fetch resolves id to metadata.
func (c *Client) Fetch(ctx context.Context, id Identifier) (*naming.Metadata, error) {
	switch id.Kind {
	case KindDOI:
		return c.fetchCrossRef(ctx, id.Value)
	case KindArxiv:
		return c.fetchArxiv(ctx, id.Value)
	default:
		return nil, fmt.Errorf("cannot resolve identifier %q", id.Value)
	}
}

// CrossRef API JSON structures.
type crossrefResponse struct {
	Message crossrefWork `json:"message"`
}

type crossrefListResponse struct {
	Message struct {
		Items []crossrefWork `json:"items"`
	} `json:"message"`
}

type crossrefWork struct {
	DOI            string           `json:"DOI"`
	Title          []string         `json:"title"`
	ContainerTitle []string         `json:"container-title"`
	Author         []crossrefAuthor `json:"author"`
	Issued         crossrefDate     `json:"issued"`
	Created        crossrefDate     `json:"created"`
}

type crossrefAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"`
}

type crossrefDate struct {
	DateParts [][]int `json:"date-parts"`
}

func (d crossrefDate) year() string {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 && d.DateParts[0][0] > 0 {
		return strconv.Itoa(d.DateParts[0][0])
	}
	return ""
}

func (w crossrefWork) metadata() *naming.Metadata {
	md := &naming.Metadata{
		DOI:        w.DOI,
		Identifier: w.DOI,
		Year:       w.Issued.year(),
	}
	if md.Year == "" {
		md.Year = w.Created.year()
	}
	if len(w.Title) > 0 {
		md.Title = cleanWhitespace(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		md.Journal = cleanWhitespace(w.ContainerTitle[0])
	}
	for _, a := range w.Author {
		if a.Family == "" && a.Given == "" {
			md.Authors = append(md.Authors, naming.Author{Given: a.Name})
			continue
		}
		md.Authors = append(md.Authors, naming.Author{Given: a.Given, Family: a.Family})
	}
	return md
}

func (c *Client) fetchCrossRef(ctx context.Context, doi string) (*naming.Metadata, error) {
	apiURL := crossrefAPIBase + "/" + doi
	if c.Mailto != "" {
		apiURL += "?mailto=" + url.QueryEscape(c.Mailto)
	}

	var cr crossrefResponse
	if err := c.getJSON(ctx, apiURL, &cr); err != nil {
		return nil, errors.Wrapf(err, "CrossRef lookup of %s", doi)
	}

	md := cr.Message.metadata()
	if md.DOI == "" {
		md.DOI = doi
		md.Identifier = doi
	}
	if md.Title == "" {
		return nil, errors.Errorf("CrossRef record for %s has no title", doi)
	}
	return md, nil
}

// QueryBibliographic runs a CrossRef bibliographic search and returns up to
// rows candidate records, best match first.
func (c *Client) QueryBibliographic(ctx context.Context, query string, rows int) ([]*naming.Metadata, error) {
	if rows <= 0 {
		rows = 3
	}
	params := url.Values{}
	params.Set("query.bibliographic", query)
	params.Set("rows", strconv.Itoa(rows))
	params.Set("select", "DOI,title,author,issued,container-title")
	if c.Mailto != "" {
		params.Set("mailto", c.Mailto)
	}

	var list crossrefListResponse
	if err := c.getJSON(ctx, crossrefAPIBase+"?"+params.Encode(), &list); err != nil {
		return nil, errors.Wrap(err, "CrossRef search")
	}

	var out []*naming.Metadata
	for _, item := range list.Message.Items {
		if md := item.metadata(); md.Title != "" {
			out = append(out, md)
		}
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, apiURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// arXiv Atom feed XML structures.
type arxivFeed struct {
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID        string        `xml:"id"`
	Title     string        `xml:"title"`
	Published string        `xml:"published"`
	Authors   []arxivAuthor `xml:"author"`
	DOI       string        `xml:"doi"`
	Journal   string        `xml:"journal_ref"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

func (c *Client) fetchArxiv(ctx context.Context, arxivID string) (*naming.Metadata, error) {
	apiURL := fmt.Sprintf("%s?id_list=%s", arxivAPIBase, url.QueryEscape(arxivID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent())

	resp, err := c.do(req)
	if err != nil {
		return nil, errors.Wrap(err, "arXiv API request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, errors.Wrap(err, "parsing arXiv response")
	}
	// arXiv answers unknown ids with an "Error" entry that has no authors
	if len(feed.Entries) == 0 || len(feed.Entries[0].Authors) == 0 {
		return nil, errors.Errorf("no entries found for arXiv ID %s", arxivID)
	}

	entry := feed.Entries[0]
	md := &naming.Metadata{
		Title:      cleanWhitespace(entry.Title),
		Identifier: arxivID,
		DOI:        strings.TrimSpace(entry.DOI),
		Journal:    cleanWhitespace(entry.Journal),
	}
	if md.Journal == "" {
		md.Journal = "arXiv"
	}
	for _, a := range entry.Authors {
		md.Authors = append(md.Authors, naming.Author{Given: cleanWhitespace(a.Name)})
	}
	if t, parseErr := time.Parse(time.RFC3339, entry.Published); parseErr == nil {
		md.Year = strconv.Itoa(t.Year())
	}
	return md, nil
}

// do sends req, waiting and retrying while the API answers 429. The last
// response is returned once retries run out.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 0; ; attempt++ {
		resp, err := c.HTTP.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt >= c.MaxRetries {
			return resp, nil
		}
		resp.Body.Close()

		wait := retryAfter(resp.Header.Get("Retry-After"))
		if wait <= 0 {
			wait = c.Backoff << attempt
		}
		log.Debugf("%s is rate limiting, waiting %v", req.URL.Host, wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryAfter parses the seconds form of a Retry-After header.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (c *Client) userAgent() string {
	if c.Mailto != "" {
		return userAgent + " mailto:" + c.Mailto
	}
	return userAgent
}

func cleanWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
