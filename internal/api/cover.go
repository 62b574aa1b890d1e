package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/jylhava/coverd/internal/cover"
	"github.com/jylhava/coverd/internal/model"
)

// CoverResponse is the JSON shape of a resolved cover.
type CoverResponse struct {
	RequestID       string            `json:"requestId"`
	CoverPath       string            `json:"coverPath"`
	FallbackPath    string            `json:"fallbackPath"`
	Width           int               `json:"width"`
	Height          int               `json:"height"`
	DimensionsKnown bool              `json:"dimensionsKnown"`
	HighResolution  bool              `json:"highResolution"`
	Attempts        []AttemptResponse `json:"attempts"`
}

// AttemptResponse is the JSON shape of one provenance attempt.
type AttemptResponse struct {
	Provider   string `json:"provider"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	FetchedURL string `json:"fetchedUrl,omitempty"`
	Dimensions string `json:"dimensions,omitempty"`
}

// handleGetCover resolves the best currently-known cover for a book.
//
// Path: id is the catalog identifier. Query: isbn10, isbn13, coverUrl
// describe the book; source restricts resolution to one provider;
// resolution picks a quality tier.
func (s *Server) handleGetCover(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "book id is required")
	}

	book := &model.Book{
		ID:       id,
		Title:    c.QueryParam("title"),
		ISBN10:   c.QueryParam("isbn10"),
		ISBN13:   c.QueryParam("isbn13"),
		CoverURL: c.QueryParam("coverUrl"),
	}

	source, err := parseSource(c.QueryParam("source"))
	if err != nil {
		return err
	}
	resolution, err := parseResolution(c.QueryParam("resolution"))
	if err != nil {
		return err
	}

	result := s.resolver.GetBestCover(book, source, resolution)

	resp := CoverResponse{
		RequestID:       result.Provenance.RequestID,
		CoverPath:       result.CoverPath,
		FallbackPath:    result.FallbackPath,
		Width:           result.Width,
		Height:          result.Height,
		DimensionsKnown: result.DimensionsKnown,
		HighResolution:  result.HighResolution,
	}
	for _, a := range result.Provenance.Attempts() {
		resp.Attempts = append(resp.Attempts, AttemptResponse{
			Provider:   string(a.Provider),
			Status:     string(a.Status),
			Reason:     a.Reason,
			FetchedURL: a.FetchedURL,
			Dimensions: a.Dimensions,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func parseSource(raw string) (cover.Source, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "ANY":
		return cover.SourceAny, nil
	case "GOOGLE_BOOKS":
		return cover.SourceGoogleBooks, nil
	case "OPEN_LIBRARY":
		return cover.SourceOpenLibrary, nil
	case "LONGITOOD":
		return cover.SourceLongitood, nil
	case "USER_UPLOAD":
		return cover.SourceUserUpload, nil
	default:
		return cover.SourceAny, echo.NewHTTPError(http.StatusBadRequest, "unknown source: "+raw)
	}
}

func parseResolution(raw string) (cover.Resolution, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", "ANY":
		return cover.ResolutionAny, nil
	case "LOW":
		return cover.ResolutionLow, nil
	case "HIGH":
		return cover.ResolutionHigh, nil
	default:
		return cover.ResolutionAny, echo.NewHTTPError(http.StatusBadRequest, "unknown resolution: "+raw)
	}
}
