package database

import "time"

// Drama is one row of the kdramas table. Nil pointers are absent values.
type Drama struct {
	TMDBID         int64    `json:"tmdb_id"`
	Title          *string  `json:"title"`
	OriginalTitle  *string  `json:"original_title"`
	Overview       *string  `json:"overview"`
	FirstAirDate   *string  `json:"first_air_date"`
	LastAirDate    *string  `json:"last_air_date"`
	Status         *string  `json:"status"`
	Seasons        *int64   `json:"seasons"`
	Episodes       *int64   `json:"episodes"`
	AverageRuntime *float64 `json:"average_runtime"`
	Genres         *string  `json:"genres"` // comma-joined
	Country        *string  `json:"country"`
	Language       *string  `json:"language"`
	Network        *string  `json:"network"`
	Production     *string  `json:"production"`
	Rating         float64  `json:"rating"` // 0 means unrated
	VoteCount      *int64   `json:"vote_count"`
	Popularity     *float64 `json:"popularity"`
	MainCast       *string  `json:"main_cast"`
	Keywords       *string  `json:"keywords"`
	PosterPath     *string  `json:"poster_path"`
	BackdropPath   *string  `json:"backdrop_path"`
}

// DisplayTitle returns the title, falling back to the original title.
func (d *Drama) DisplayTitle() string {
	if d.Title != nil && *d.Title != "" {
		return *d.Title
	}
	if d.OriginalTitle != nil {
		return *d.OriginalTitle
	}
	return ""
}

// SearchParams are the filters and page bounds of a search.
type SearchParams struct {
	Term      string
	Genre     string
	Status    string
	MinRating float64 // 0 disables the filter
	Limit     int
	Offset    int
}

// SearchResult is one page of matches plus the total match count.
type SearchResult struct {
	Dramas  []Drama
	Total   int
	Limit   int
	Offset  int
	HasMore bool
}

// RatingStats summarizes ratings over rated rows (rating > 0).
type RatingStats struct {
	Average *float64 `json:"average"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Rated   int      `json:"rated"`
}

// StatusCount is the number of dramas with a given status.
type StatusCount struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// GenreCount is the number of dramas tagged with a genre.
type GenreCount struct {
	Genre string `json:"genre"`
	Count int    `json:"count"`
}

// Stats contains dataset-wide summaries.
type Stats struct {
	TotalDramas       int           `json:"total_dramas"`
	RatingStats       RatingStats   `json:"rating_stats"`
	AvailableStatuses []string      `json:"available_statuses"`
	StatusCounts      []StatusCount `json:"status_counts"`
	TopGenres         []GenreCount  `json:"top_genres"`
}

// IngestRun records one successful ingestion.
type IngestRun struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Encoding   string    `json:"encoding"`
	RowCount   int       `json:"row_count"`
	Dropped    int       `json:"dropped"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
