package api

import (
	"github.com/starford/sojourner/internal/index"
	"github.com/starford/sojourner/internal/models"
)

// EventDTO is an event as returned by the API, flagged with its favourite state.
type EventDTO struct {
	*models.Event
	Favourite bool `json:"favourite"`
}

// EventListResponse wraps event listings.
type EventListResponse struct {
	Events []EventDTO `json:"events"`
	Total  int        `json:"total"`
}

// NameListResponse wraps room or track names.
type NameListResponse struct {
	Names []string `json:"names"`
}

// SearchResult is a single search hit in the API response.
type SearchResult = index.SearchResult

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
}
