package feed

import (
	"errors"
	"time"
)

// Feed is the normalized in-memory form of an RSS 2.0 or Atom 1.0 document.
// It is never persisted.
type Feed struct {
	Title       string
	Description string
	LastPub     time.Time
	Items       []Item
}

type Item struct {
	Title       string
	Link        string
	Description string
	PubDate     time.Time
	GUID        string
}

// ErrUnsupportedFormat is returned when the document is well-formed XML but
// its root element is neither <rss> nor <feed>.
var ErrUnsupportedFormat = errors.New("unsupported feed format: must be RSS 2.0 or Atom 1.0")

// InvalidDocumentError covers malformed XML and documents missing a required
// field. Parsing is all-or-nothing: a single bad item fails the whole document.
type InvalidDocumentError struct {
	Reason string
}

func (e *InvalidDocumentError) Error() string {
	return "invalid feed document: " + e.Reason
}
