package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names a pipeline failure class.
type Kind string

const (
	KindUnknown          Kind = "unknown"
	KindFetch            Kind = "fetch"
	KindDocumentNotFound Kind = "document_not_found"
	KindRead             Kind = "read"
	KindConfiguration    Kind = "configuration"
	KindDelivery         Kind = "delivery"
)

var (
	ErrFetch            = errors.New("fetch failed")
	ErrDocumentNotFound = errors.New("document not found")
	ErrRead             = errors.New("read failed")
	ErrConfiguration    = errors.New("configuration missing")
	ErrDelivery         = errors.New("delivery failed")
)

var sentinels = map[Kind]error{
	KindFetch:            ErrFetch,
	KindDocumentNotFound: ErrDocumentNotFound,
	KindRead:             ErrRead,
	KindConfiguration:    ErrConfiguration,
	KindDelivery:         ErrDelivery,
}

// Error carries the failing stage's context. Only the fields that apply are set.
type Error struct {
	Kind   Kind
	Op     string
	Path   string
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Op == "" {
		b.WriteString(string(e.Kind))
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " path=%s", e.Path)
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " url=%s", e.URL)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " status=%d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	} else if s, ok := sentinels[e.Kind]; ok {
		b.WriteString(": ")
		b.WriteString(s.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind, so errors.Is(err, ErrDelivery)
// holds for any *Error of KindDelivery regardless of the wrapped cause.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf classifies err. Errors outside the taxonomy are KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindUnknown
}
