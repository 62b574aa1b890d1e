// Package cover defines the value types of the cover resolution pipeline:
// image details, fetch attempts, and the per-request provenance log.
package cover

import "fmt"

// Source identifies where an image descriptor came from.
type Source string

const (
	SourceGoogleBooks Source = "GOOGLE_BOOKS"
	SourceOpenLibrary Source = "OPEN_LIBRARY"
	SourceLongitood   Source = "LONGITOOD"
	SourceUserUpload  Source = "USER_UPLOAD"
	SourcePlaceholder Source = "PLACEHOLDER"
	SourceAny         Source = "ANY"
)

// Resolution is a coarse quality tier for a cover image.
type Resolution string

const (
	ResolutionAny  Resolution = "ANY"
	ResolutionLow  Resolution = "LOW"
	ResolutionHigh Resolution = "HIGH"
)

// DefaultPlaceholderPath is the canonical locally-served substitute cover.
const DefaultPlaceholderPath = "/images/placeholder-book.jpg"

// ImageDetails is an immutable descriptor of one cover image. All fields are
// comparable, so == gives structural equality and the type can be used as a
// map key. Dimensions become known only through WithDimensions.
type ImageDetails struct {
	// Path is a URL or storage key resolvable to the image bytes.
	Path string
	// SourceLabel is a free-form annotation: the provider's display name for
	// real images, or the placeholder reason for substitutes.
	SourceLabel string
	// SourceID is the identifier the image was resolved from in the source
	// system, e.g. a Google Books volume ID or an ISBN.
	SourceID string
	// Kind is the provider or category the image came from.
	Kind Source
	// Preference is the quality tier this image was requested at.
	Preference Resolution

	Width           int
	Height          int
	DimensionsKnown bool
}

// WithDimensions derives a copy with the given dimensions marked as known.
// The receiver is unchanged.
func (d ImageDetails) WithDimensions(width, height int) ImageDetails {
	d.Width = width
	d.Height = height
	d.DimensionsKnown = true
	return d
}

// IsZero reports whether the descriptor carries no image at all.
func (d ImageDetails) IsZero() bool {
	return d == ImageDetails{}
}

// IsPlaceholder reports whether the descriptor points at the canonical
// substitute image rather than a resolved cover.
func (d ImageDetails) IsPlaceholder() bool {
	return d.Kind == SourcePlaceholder || d.Path == DefaultPlaceholderPath
}

// HighResolution reports whether the image qualifies as a high resolution
// cover. Unknown dimensions never qualify.
func (d ImageDetails) HighResolution() bool {
	return d.DimensionsKnown && d.Width >= 400 && d.Height >= 600
}

// DimensionString renders known dimensions as "WxH", or "" when unknown.
func (d ImageDetails) DimensionString() string {
	if !d.DimensionsKnown {
		return ""
	}
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Placeholder builds the canonical substitute descriptor. The reason (for
// example "googlebooks-no-image") is kept in the SourceLabel for diagnostics.
// A placeholder never reports known dimensions.
func Placeholder(reason string) ImageDetails {
	return ImageDetails{
		Path:        DefaultPlaceholderPath,
		SourceLabel: reason,
		Kind:        SourcePlaceholder,
		Preference:  ResolutionAny,
	}
}
