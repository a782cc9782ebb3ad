package naming

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Tag is a placeholder recognized inside a filename format, e.g. "{year}".
type Tag string

const (
	TagAuthor     Tag = "author"      // family name of the first author
	TagAuthors    Tag = "authors"     // all family names, comma separated
	TagAuthorEtAl Tag = "author_etal" // "A", "A and B" or "A et al."
	TagYear       Tag = "year"
	TagTitle      Tag = "title"
	TagTitleCased Tag = "Title"
	TagJournal    Tag = "journal"
	TagDOI        Tag = "doi"
	TagIdentifier Tag = "id"
)

// DefaultFormat is used when the config does not set one.
const DefaultFormat = "{year} - {author_etal} - {title}"

const maxStemBytes = 200

// AllowedTags lists every tag Render knows how to fill.
var AllowedTags = []Tag{
	TagAuthor, TagAuthors, TagAuthorEtAl, TagYear, TagTitle,
	TagTitleCased, TagJournal, TagDOI, TagIdentifier,
}

var ErrInvalidFormat = errors.New("invalid filename format")

// tagPattern matches a single placeholder like "{author_etal}".
var tagPattern = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

// Author is a single bibliographic author.
type Author struct {
	Given  string
	Family string
}

// Metadata holds the bibliographic fields a filename can be built from.
type Metadata struct {
	Title      string
	Authors    []Author
	Year       string
	Journal    string
	DOI        string
	Identifier string
}

// Validate parses a format and returns the tags it uses, in order of first
// appearance. Unknown tags, stray braces or a format without any tag are errors.
func Validate(format string) ([]Tag, error) {
	if strings.TrimSpace(format) == "" {
		return nil, fmt.Errorf("%w: empty format", ErrInvalidFormat)
	}

	allowed := make(map[Tag]bool, len(AllowedTags))
	for _, t := range AllowedTags {
		allowed[t] = true
	}

	var tags []Tag
	seen := make(map[Tag]bool)
	for _, m := range tagPattern.FindAllStringSubmatch(format, -1) {
		t := Tag(m[1])
		if !allowed[t] {
			return nil, fmt.Errorf("%w: unknown tag {%s}", ErrInvalidFormat, m[1])
		}
		if !seen[t] {
			seen[t] = true
			tags = append(tags, t)
		}
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: %q contains no tags", ErrInvalidFormat, format)
	}

	rest := tagPattern.ReplaceAllString(format, "")
	if strings.ContainsAny(rest, "{}") {
		return nil, fmt.Errorf("%w: unbalanced braces in %q", ErrInvalidFormat, format)
	}
	return tags, nil
}

// Render fills the tags of format from md. Only tags listed in tags are
// replaced; the result is passed through Sanitize.
func Render(md Metadata, format string, tags []Tag) string {
	out := format
	for _, t := range tags {
		out = strings.ReplaceAll(out, "{"+string(t)+"}", value(md, t))
	}
	return Sanitize(out)
}

func value(md Metadata, t Tag) string {
	switch t {
	case TagAuthor:
		if len(md.Authors) == 0 {
			return ""
		}
		return familyName(md.Authors[0])
	case TagAuthors:
		names := make([]string, 0, len(md.Authors))
		for _, a := range md.Authors {
			names = append(names, familyName(a))
		}
		return strings.Join(names, ", ")
	case TagAuthorEtAl:
		switch len(md.Authors) {
		case 0:
			return ""
		case 1:
			return familyName(md.Authors[0])
		case 2:
			return familyName(md.Authors[0]) + " and " + familyName(md.Authors[1])
		default:
			return familyName(md.Authors[0]) + " et al."
		}
	case TagYear:
		return md.Year
	case TagTitle:
		return md.Title
	case TagTitleCased:
		return cases.Title(language.English).String(md.Title)
	case TagJournal:
		return md.Journal
	case TagDOI:
		return md.DOI
	case TagIdentifier:
		return md.Identifier
	}
	return ""
}

func familyName(a Author) string {
	if a.Family != "" {
		return strings.TrimSpace(a.Family)
	}
	// literal names: last token is the family name
	fields := strings.Fields(a.Given)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", " -",
	"*", "",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// Sanitize turns an arbitrary string into a filename stem that is valid on
// common filesystems. Whitespace is collapsed and the result is NFC normalized.
func Sanitize(s string) string {
	s = norm.NFC.String(s)
	s = fileNameReplacer.Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " .")

	if len(s) > maxStemBytes {
		cut := maxStemBytes
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = strings.TrimRight(s[:cut], " .")
	}
	return s
}
