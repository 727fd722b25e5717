package domain

// ListingRecord is one sanitized table row.
type ListingRecord struct {
	Company  string
	Role     string
	Location string
}

// DigestEntry is either a populated record or a skipped-row placeholder.
// Record is nil for skipped rows.
type DigestEntry struct {
	Record *ListingRecord
}

func (e DigestEntry) Skipped() bool { return e.Record == nil }

// Skipped returns the placeholder entry for a row that did not yield enough cells.
func Skipped() DigestEntry { return DigestEntry{} }

// Listing wraps a record as a digest entry.
func Listing(company, role, location string) DigestEntry {
	return DigestEntry{Record: &ListingRecord{Company: company, Role: role, Location: location}}
}

// Digest keeps entries in document order.
type Digest struct {
	Entries []DigestEntry
}

func (d Digest) Len() int { return len(d.Entries) }

// FormattedMessage is the rendered digest handed to the notifier.
type FormattedMessage string

func (m FormattedMessage) String() string { return string(m) }
