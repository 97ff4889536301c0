package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/hashicorp/go-hclog"

	"github.com/TobiSchelling/kdramadb/internal/database"
)

const isoDate = "2006-01-02"

// Options control how a source file is read.
type Options struct {
	Delimiter        rune   // defaults to ','
	FallbackEncoding string // used when the file is not UTF-8; "auto" detects
}

// Batch is the normalized content of one source file.
type Batch struct {
	Header     []string
	Dramas     []database.Drama
	Encoding   string
	Rows       int // data rows read
	Invalid    int // rows dropped for a missing or unparsable tmdb_id
	Duplicates int // rows dropped for repeating an earlier tmdb_id
}

// Dropped returns how many data rows did not make it into Dramas.
func (b *Batch) Dropped() int {
	return b.Invalid + b.Duplicates
}

// Normalizer turns a delimited drama export into typed rows.
type Normalizer struct {
	opts   Options
	logger hclog.Logger
}

// NewNormalizer creates a Normalizer with the given options and logger.
func NewNormalizer(opts Options, logger hclog.Logger) *Normalizer {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Normalizer{opts: opts, logger: logger}
}

// CheckSource reports an *IngestionError when path is missing or is not a
// regular file, without reading it.
func CheckSource(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &IngestionError{Path: path, Op: "open", Err: fmt.Errorf("%w: %w", ErrSourceNotFound, err)}
	}
	if err != nil {
		return &IngestionError{Path: path, Op: "stat", Err: err}
	}
	if info.IsDir() {
		return &IngestionError{Path: path, Op: "open", Err: errors.New("is a directory")}
	}
	return nil
}

// ReadFile reads and normalizes the file at path.
func (n *Normalizer) ReadFile(path string) (*Batch, error) {
	if err := CheckSource(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IngestionError{Path: path, Op: "read", Err: err}
	}

	batch, err := n.Normalize(data)
	if err != nil {
		return nil, &IngestionError{Path: path, Op: "parse", Err: err}
	}
	return batch, nil
}

// Normalize decodes and parses raw file contents.
func (n *Normalizer) Normalize(data []byte) (*Batch, error) {
	text, encoding, err := decode(data, n.opts.FallbackEncoding)
	if err != nil {
		return nil, err
	}
	if encoding != "utf-8" {
		n.logger.Info("decoded source with fallback encoding", "encoding", encoding)
	}

	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = n.opts.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	raw, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("file has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	header := cleanHeader(raw)
	index := make(map[string]int, len(header))
	for i, h := range header {
		if h == "" {
			continue
		}
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	if len(index) == 0 {
		return nil, errors.New("header has zero columns")
	}
	if _, ok := index["tmdb_id"]; !ok {
		return nil, fmt.Errorf("header has no tmdb_id column (columns: %s)", strings.Join(header, ", "))
	}

	b := &Batch{Header: header, Encoding: encoding}
	seen := make(map[int64]struct{})

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", b.Rows+1, err)
		}
		b.Rows++

		c := cells{index: index, rec: rec}
		d, ok := n.toDrama(c)
		if !ok {
			b.Invalid++
			n.logger.Warn("dropping row without a valid tmdb_id", "row", b.Rows, "tmdb_id", c.get("tmdb_id"))
			continue
		}
		if _, dup := seen[d.TMDBID]; dup {
			b.Duplicates++
			n.logger.Warn("dropping duplicate tmdb_id", "row", b.Rows, "tmdb_id", d.TMDBID)
			continue
		}
		seen[d.TMDBID] = struct{}{}
		b.Dramas = append(b.Dramas, d)
	}

	n.logger.Info("normalized source",
		"rows", b.Rows, "kept", len(b.Dramas), "invalid", b.Invalid, "duplicates", b.Duplicates)
	return b, nil
}

// cleanHeader strips byte-order marks and whitespace from header cells.
func cleanHeader(raw []string) []string {
	out := make([]string, len(raw))
	for i, h := range raw {
		out[i] = strings.TrimSpace(strings.ReplaceAll(h, "\ufeff", ""))
	}
	return out
}

type cells struct {
	index map[string]int
	rec   []string
}

// get returns the trimmed cell for column, "" when the column or cell is absent.
func (c cells) get(column string) string {
	i, ok := c.index[column]
	if !ok || i >= len(c.rec) {
		return ""
	}
	return strings.TrimSpace(c.rec[i])
}

func (n *Normalizer) toDrama(c cells) (database.Drama, bool) {
	id := parseInt(c.get("tmdb_id"))
	if id == nil {
		return database.Drama{}, false
	}

	rating := 0.0
	if r := parseFloat(c.get("rating")); r != nil && *r > 0 {
		rating = *r
	}

	return database.Drama{
		TMDBID:         *id,
		Title:          text(c.get("title")),
		OriginalTitle:  text(c.get("original_title")),
		Overview:       text(c.get("overview")),
		FirstAirDate:   n.date(c.get("first_air_date")),
		LastAirDate:    n.date(c.get("last_air_date")),
		Status:         text(c.get("status")),
		Seasons:        parseInt(c.get("seasons")),
		Episodes:       parseInt(c.get("episodes")),
		AverageRuntime: parseFloat(c.get("average_runtime")),
		Genres:         text(c.get("genres")),
		Country:        text(c.get("country")),
		Language:       text(c.get("language")),
		Network:        text(c.get("network")),
		Production:     text(c.get("production")),
		Rating:         rating,
		VoteCount:      parseInt(c.get("vote_count")),
		Popularity:     parseFloat(c.get("popularity")),
		MainCast:       text(c.get("main_cast")),
		Keywords:       text(c.get("keywords")),
		PosterPath:     text(c.get("poster_path")),
		BackdropPath:   text(c.get("backdrop_path")),
	}, true
}

// date normalizes s to YYYY-MM-DD, nil when empty or unparsable.
func (n *Normalizer) date(s string) *string {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(isoDate, s); err == nil {
		return &s
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		n.logger.Debug("dropping unparsable date", "value", s)
		return nil
	}
	out := t.Format(isoDate)
	return &out
}

func text(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// parseInt accepts integers and integral floats such as "16.0".
func parseInt(s string) *int64 {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return nil
	}
	// float64(math.MaxInt64) rounds up to 2^63, which int64 cannot hold.
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return nil
	}
	n := int64(f)
	return &n
}

func parseFloat(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
