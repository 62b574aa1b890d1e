// Package model holds the catalog-facing value types the resolver operates on.
package model

import (
	"strings"

	"github.com/jylhava/coverd/internal/cover"
)

// Book is the slice of the catalog item the cover pipeline needs. It is passed
// by value; the resolver never mutates the caller's copy.
type Book struct {
	ID     string
	Title  string
	ISBN10 string
	ISBN13 string

	// CoverURL is the item's pre-existing primary cover reference, if any.
	CoverURL string
	// ThumbnailURL is a secondary image reference some import paths populate.
	ThumbnailURL string
}

// Identifier returns the stable key used to address the provisional and final
// cover caches: ISBN-13 first, then ISBN-10, then the catalog ID.
func (b Book) Identifier() string {
	if isbn := NormalizeISBN(b.ISBN13); isbn != "" {
		return isbn
	}
	if isbn := NormalizeISBN(b.ISBN10); isbn != "" {
		return isbn
	}
	return strings.TrimSpace(b.ID)
}

// NormalizeISBN strips hyphens and spaces from an ISBN.
func NormalizeISBN(isbn string) string {
	isbn = strings.ReplaceAll(isbn, "-", "")
	return strings.ReplaceAll(isbn, " ", "")
}

// ResolvedCover is the immutable result of a resolution request: the book it
// was issued for plus the chosen cover references. Width, height and the high
// resolution flag stay at their zero values until a later request observes the
// background resolution through the cache.
type ResolvedCover struct {
	Book Book

	// CoverPath is the primary cover reference chosen for the item.
	CoverPath string
	// FallbackPath is the fallback-of-last-resort captured from the item.
	FallbackPath string

	Width           int
	Height          int
	DimensionsKnown bool
	HighResolution  bool

	// Provenance records every fetch attempt made for this request.
	Provenance *cover.ProvenanceLog
}

// PlaceholderResolved builds a terminal placeholder result for an item that
// failed local validation. No provider attempt is recorded.
func PlaceholderResolved(b Book) ResolvedCover {
	return ResolvedCover{
		Book:         b,
		CoverPath:    cover.DefaultPlaceholderPath,
		FallbackPath: cover.DefaultPlaceholderPath,
		Provenance:   cover.NewProvenanceLog(b.Identifier()),
	}
}
