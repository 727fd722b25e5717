package extract

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"internship-digest/internal/domain"
)

const (
	DefaultHeader = "**🚀 Top Internship Listings from SimplifyJobs:**"
	malformedRow  = "⚠️ Skipped malformed row"
)

type Options struct {
	Header string // DefaultHeader when empty
	Match  RowMatcher

	// FlattenMarkup reduces markdown links and HTML in cells to their text
	// before sanitizing. Off by default.
	FlattenMarkup bool
}

type Extractor struct {
	opts Options
}

func New(opts Options) *Extractor {
	if opts.Match == nil {
		opts.Match = IsListingRow
	}
	if strings.TrimSpace(opts.Header) == "" {
		opts.Header = DefaultHeader
	}
	return &Extractor{opts: opts}
}

func (e *Extractor) Name() string { return "extract" }

// Extract reads the document at path and renders its digest.
// A document with no listing rows yields a header-only message.
func (e *Extractor) Extract(path string) (domain.FormattedMessage, error) {
	d, err := e.Digest(path)
	if err != nil {
		return "", err
	}
	return e.Render(d), nil
}

// Digest reads the document at path and parses it without rendering.
func (e *Extractor) Digest(path string) (domain.Digest, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return domain.Digest{}, err
	}
	return e.Parse(lines), nil
}

// ReadLines returns the document's lines in order. Non-UTF-8 content is a read error.
func ReadLines(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.Error{Kind: domain.KindRead, Op: "read document", Path: path, Err: err}
	}
	if !utf8.Valid(b) {
		return nil, &domain.Error{Kind: domain.KindRead, Op: "decode document", Path: path, Err: fmt.Errorf("not valid utf-8")}
	}
	s := strings.TrimPrefix(string(b), "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil, nil
	}
	return strings.Split(s, "\n"), nil
}

// Parse turns the first MaxRows matching lines into digest entries.
func (e *Extractor) Parse(lines []string) domain.Digest {
	rows := SelectRows(lines, e.opts.Match, MaxRows)
	d := domain.Digest{Entries: make([]domain.DigestEntry, 0, len(rows))}
	for _, row := range rows {
		d.Entries = append(d.Entries, e.entry(row))
	}
	return d
}

func (e *Extractor) entry(row string) domain.DigestEntry {
	raw := SplitCells(row)
	if len(raw) < MaxCells {
		return domain.Skipped()
	}
	cells := make([]string, 0, MaxCells)
	for _, c := range raw[:MaxCells] {
		if e.opts.FlattenMarkup {
			c = flattenMarkup(c)
		}
		cells = append(cells, Sanitize(c))
	}
	return domain.Listing(cells[0], cells[1], cells[2])
}

// Render writes the header and one numbered line per entry, numbered from 1.
func (e *Extractor) Render(d domain.Digest) domain.FormattedMessage {
	lines := make([]string, 0, d.Len()+1)
	lines = append(lines, e.opts.Header)
	for i, entry := range d.Entries {
		lines = append(lines, RenderEntry(i+1, entry))
	}
	return domain.FormattedMessage(strings.Join(lines, "\n"))
}

func RenderEntry(index int, entry domain.DigestEntry) string {
	if entry.Skipped() {
		return fmt.Sprintf("%d. %s", index, malformedRow)
	}
	r := entry.Record
	return fmt.Sprintf("%d. **%s** — *%s* — `%s`", index, r.Company, r.Role, r.Location)
}
