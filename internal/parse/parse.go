// Package parse turns the markup of the news feed into headlines.
package parse

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/jdholdren/juicer/internal/juicer"
)

// MaxHeadlines is the most headlines taken from a single feed snapshot.
const MaxHeadlines = 10

const (
	itemSelector  = ".headline-item"
	titleSelector = ".headline-title-nolink"
	timeSelector  = ".time"
	idAttr        = "data-headlineid"

	// Teaser entries for the paid tier carry this instead of a time.
	promoMarker = "GO PRO"
	noTime      = "No time found"

	maxTitleBytes = 2048
)

// Headlines extracts up to [MaxHeadlines] headlines in page order.
//
// Entries without an id or a title, and promotional entries, are skipped.
// Every headline is stamped with now.
func Headlines(markup string, now time.Time) ([]juicer.Headline, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", juicer.ErrParse, err)
	}

	headlines := []juicer.Headline{}
	doc.Find(itemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if h, ok := headline(item, now); ok {
			headlines = append(headlines, h)
		}

		return len(headlines) < MaxHeadlines
	})

	return headlines, nil
}

// IDs lists the identifier of every item in the markup, valid or not.
//
// Missing identifiers show up as "N/A".
func IDs(markup string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil
	}

	ids := []string{}
	doc.Find(itemSelector).Each(func(_ int, item *goquery.Selection) {
		id, ok := item.Attr(idAttr)
		if !ok {
			id = "N/A"
		}
		ids = append(ids, id)
	})

	return ids
}

func headline(item *goquery.Selection, now time.Time) (juicer.Headline, bool) {
	id, _ := item.Attr(idAttr)
	id = strings.TrimSpace(id)
	if id == "" {
		return juicer.Headline{}, false
	}

	titleEl := item.Find(titleSelector).First()
	if titleEl.Length() == 0 {
		return juicer.Headline{}, false
	}
	rawTitle, err := titleEl.Html()
	if err != nil {
		return juicer.Headline{}, false
	}
	title := sanitize(rawTitle)
	if title == "" {
		return juicer.Headline{}, false
	}

	displayTime := noTime
	if timeEl := item.Find(timeSelector).First(); timeEl.Length() > 0 {
		displayTime = strings.TrimSpace(timeEl.Text())
	}
	if strings.Contains(displayTime, promoMarker) {
		return juicer.Headline{}, false
	}

	return juicer.Headline{
		ID:          id,
		Title:       title,
		DisplayTime: displayTime,
		Timestamp:   now,
	}, true
}

var stripPolicy = bluemonday.StrictPolicy()

// Removes all html tags from the string and collapses the whitespace.
//
// Also limits the length of the string so there's not a massive chunk of text being stored.
func sanitize(s string) string {
	s = stripPolicy.Sanitize(s)
	s = html.UnescapeString(s)
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxTitleBytes {
		return s
	}

	// Cut on a rune boundary so the result stays valid UTF-8.
	cut := maxTitleBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut]
}
