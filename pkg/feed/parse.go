package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

type rssDocument struct {
	Channel struct {
		Title       string    `xml:"title"`
		Description string    `xml:"description"`
		Items       []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

type atomDocument struct {
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle"`
	Entries  []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title     string     `xml:"title"`
	ID        string     `xml:"id"`
	Links     []atomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

var pubDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
}

// Parse turns a raw feed document into a normalized Feed. It performs no I/O
// and is deterministic given the same input bytes. The root element decides
// the format: <rss> routes to the RSS 2.0 extractor, <feed> to the Atom 1.0
// one, anything else is ErrUnsupportedFormat. Validation is all-or-nothing:
// any item missing a required field fails the whole document.
func Parse(document []byte) (*Feed, error) {
	root, err := rootElement(document)
	if err != nil {
		return nil, &InvalidDocumentError{Reason: fmt.Sprintf("malformed XML: %v", err)}
	}

	switch root {
	case "rss":
		return parseRSS(document)
	case "feed":
		return parseAtom(document)
	default:
		return nil, ErrUnsupportedFormat
	}
}

func rootElement(document []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(document))
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return "", fmt.Errorf("document contains no elements")
		}
		if err != nil {
			return "", err
		}
		if start, ok := token.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func parseRSS(document []byte) (*Feed, error) {
	var doc rssDocument
	if err := xml.Unmarshal(document, &doc); err != nil {
		return nil, &InvalidDocumentError{Reason: fmt.Sprintf("malformed XML: %v", err)}
	}

	title := strings.TrimSpace(doc.Channel.Title)
	if title == "" {
		return nil, &InvalidDocumentError{Reason: "RSS channel is missing a title"}
	}
	if len(doc.Channel.Items) == 0 {
		return nil, &InvalidDocumentError{Reason: "RSS channel has no item"}
	}

	items := make([]Item, 0, len(doc.Channel.Items))
	for i, raw := range doc.Channel.Items {
		itemTitle := strings.TrimSpace(raw.Title)
		if itemTitle == "" {
			return nil, &InvalidDocumentError{Reason: fmt.Sprintf("RSS item %d is missing a title", i)}
		}
		link := strings.TrimSpace(raw.Link)
		if link == "" {
			return nil, &InvalidDocumentError{Reason: fmt.Sprintf("RSS item %d is missing a link", i)}
		}
		pubDate, err := parsePubDate(raw.PubDate)
		if err != nil {
			return nil, &InvalidDocumentError{Reason: fmt.Sprintf("RSS item %d: %v", i, err)}
		}

		guid := strings.TrimSpace(raw.GUID)
		if guid == "" {
			guid = link
		}

		items = append(items, Item{
			Title:       itemTitle,
			Link:        link,
			Description: strings.TrimSpace(raw.Description),
			PubDate:     pubDate,
			GUID:        guid,
		})
	}

	description := strings.TrimSpace(doc.Channel.Description)
	if description == "" {
		description = title
	}

	return &Feed{
		Title:       title,
		Description: description,
		LastPub:     lastPub(items),
		Items:       items,
	}, nil
}

func parseAtom(document []byte) (*Feed, error) {
	var doc atomDocument
	if err := xml.Unmarshal(document, &doc); err != nil {
		return nil, &InvalidDocumentError{Reason: fmt.Sprintf("malformed XML: %v", err)}
	}

	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return nil, &InvalidDocumentError{Reason: "Atom feed is missing a title"}
	}
	if len(doc.Entries) == 0 {
		return nil, &InvalidDocumentError{Reason: "Atom feed has no entry"}
	}

	items := make([]Item, 0, len(doc.Entries))
	for i, raw := range doc.Entries {
		entryTitle := strings.TrimSpace(raw.Title)
		if entryTitle == "" {
			return nil, &InvalidDocumentError{Reason: fmt.Sprintf("Atom entry %d is missing a title", i)}
		}
		link := resolveAtomLink(raw.Links)
		if link == "" {
			return nil, &InvalidDocumentError{Reason: fmt.Sprintf("Atom entry %d is missing a link", i)}
		}

		// published wins over updated; neither is a validation failure.
		dateValue := raw.Published
		if strings.TrimSpace(dateValue) == "" {
			dateValue = raw.Updated
		}
		pubDate, err := parsePubDate(dateValue)
		if err != nil {
			return nil, &InvalidDocumentError{Reason: fmt.Sprintf("Atom entry %d: %v", i, err)}
		}

		guid := strings.TrimSpace(raw.ID)
		if guid == "" {
			guid = link
		}

		items = append(items, Item{
			Title:       entryTitle,
			Link:        link,
			Description: strings.TrimSpace(raw.Summary),
			PubDate:     pubDate,
			GUID:        guid,
		})
	}

	description := strings.TrimSpace(doc.Subtitle)
	if description == "" {
		description = title
	}

	return &Feed{
		Title:       title,
		Description: description,
		LastPub:     lastPub(items),
		Items:       items,
	}, nil
}

// resolveAtomLink prefers the link whose rel attribute is "alternate" and
// falls back to the first link carrying an href.
func resolveAtomLink(links []atomLink) string {
	for _, link := range links {
		if link.Rel == "alternate" && strings.TrimSpace(link.Href) != "" {
			return strings.TrimSpace(link.Href)
		}
	}
	for _, link := range links {
		if strings.TrimSpace(link.Href) != "" {
			return strings.TrimSpace(link.Href)
		}
	}
	return ""
}

func parsePubDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("missing publish date")
	}
	for _, layout := range pubDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable publish date %q", value)
}

func lastPub(items []Item) time.Time {
	var max time.Time
	for _, item := range items {
		if item.PubDate.After(max) {
			max = item.PubDate
		}
	}
	return max
}
