// Package yearbook turns participants and quotes into yearbook entries,
// spreads and slides. Everything here is pure; the same inputs always give
// the same output, which is what lets callers cache the result.
package yearbook

import (
	"unicode/utf8"

	"snapbook/internal/model"
)

// DefaultPageSize is the number of entries on one yearbook spread.
const DefaultPageSize = 2

// DefaultQuotes stand in when the quote pool is empty.
var DefaultQuotes = []model.Quote{
	{Text: "Making memories that last forever"},
	{Text: "Every picture tells a story"},
	{Text: "Cherish the moments that matter most"},
	{Text: "Life is made of small moments like these"},
}

// Entry is one participant's photo paired with a quote.
type Entry struct {
	StudentName string `json:"studentName"`
	Photo       string `json:"photo"`
	Quote       string `json:"quote"`
}

// DeriveEntries selects one photo and one quote for every participant that
// has photos. Participants without photos are skipped; the rest keep their
// input order.
func DeriveEntries(participants []model.Participant, quotes []model.Quote) []Entry {
	pool := effectivePool(quotes)
	entries := make([]Entry, 0, len(participants))
	for _, p := range participants {
		if len(p.Photos) == 0 {
			continue
		}
		photo := p.Photos[photoIndex(p.Name, len(p.Photos))]
		quote := pool[utf8.RuneCountInString(p.Name)%len(pool)]
		entries = append(entries, Entry{
			StudentName: p.Name,
			Photo:       photo.ImageData,
			Quote:       quote.Text,
		})
	}
	return entries
}

// Paginate splits entries into consecutive spreads of pageSize. The last
// spread may be shorter. A non-positive pageSize means DefaultPageSize.
func Paginate(entries []Entry, pageSize int) [][]Entry {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	pages := make([][]Entry, 0, (len(entries)+pageSize-1)/pageSize)
	for start := 0; start < len(entries); start += pageSize {
		end := min(start+pageSize, len(entries))
		pages = append(pages, entries[start:end:end])
	}
	return pages
}

func effectivePool(quotes []model.Quote) []model.Quote {
	if len(quotes) == 0 {
		return DefaultQuotes
	}
	return quotes
}

// photoIndex uses the first code point of the name; an empty name, or one
// starting with an invalid UTF-8 byte, picks the first photo. U+FFFD spelled
// out in the name is an ordinary code point.
func photoIndex(name string, n int) int {
	r, size := utf8.DecodeRuneInString(name)
	if size == 0 || (r == utf8.RuneError && size == 1) {
		return 0
	}
	return int(r) % n
}
