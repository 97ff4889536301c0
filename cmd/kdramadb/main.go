package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/TobiSchelling/kdramadb/internal/config"
	"github.com/TobiSchelling/kdramadb/internal/database"
	"github.com/TobiSchelling/kdramadb/internal/ingest"
	"github.com/TobiSchelling/kdramadb/internal/logging"
	"github.com/TobiSchelling/kdramadb/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     hclog.Logger = hclog.NewNullLogger()
)

// errIngestFailed marks failures after the source was read.
var errIngestFailed = errors.New("ingestion failed")

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	var ie *ingest.IngestionError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ingest.ErrSourceNotFound), errors.Is(err, database.ErrNotFound):
		return 2
	case errors.As(err, &ie), errors.Is(err, errIngestFailed):
		return 3
	default:
		return 1
	}
}

var rootCmd = &cobra.Command{
	Use:           "kdramadb",
	Short:         "Korean drama catalogue",
	Long:          "kdramadb loads a K-drama CSV export into a database and serves it over a JSON API.",
	Version:       version,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		config.LoadDotEnv()
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		logger = logging.New(cfg.Logging, verbose)
		if path != "" {
			logger.Debug("loaded config", "path", path)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("kdramadb", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/kdramadb/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set the CSV source and database location.")
		return nil
	},
}

// --- ingest command ---

var ingestCmd = &cobra.Command{
	Use:   "ingest [csv]",
	Short: "Replace the drama table with the contents of a CSV export",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Source.CSVPath
		if len(args) == 1 {
			path = args[0]
		}

		// Fail before openDB so a bad path leaves no empty database behind.
		if err := ingest.CheckSource(path); err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		in := ingest.New(db, ingestOptions(), logger)
		result, runErr := in.Run(cmd.Context(), path)

		for i, step := range result.Steps {
			fmt.Printf("Step %d/4: %s\n", i+1, step.Name)
			if step.Err != nil {
				fmt.Printf("  Error: %v\n", step.Err)
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}

		if runErr != nil {
			var ie *ingest.IngestionError
			if errors.As(runErr, &ie) {
				return runErr
			}
			return fmt.Errorf("%w: %w", errIngestFailed, runErr)
		}

		fmt.Printf("\nLoaded %s dramas into %s\n", humanize.Comma(int64(result.Count)), db.Location())
		return nil
	},
}

func ingestOptions() ingest.Options {
	return ingest.Options{
		Delimiter:        cfg.DelimiterRune(),
		FallbackEncoding: cfg.Source.FallbackEncoding,
	}
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		srv, err := server.New(db, server.Options{
			Version:      version,
			CSVPath:      cfg.Source.CSVPath,
			ImageBaseURL: cfg.Server.ImageBaseURL,
			DefaultLimit: cfg.Query.DefaultLimit,
			Ingest:       ingestOptions(),
		}, logger)
		if err != nil {
			return err
		}

		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(port))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://%s\n", addr)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(ctx, srv, addr)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8000, "Port to run server on")
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Printf("Database: %s\n\n", db.Location())
		fmt.Println("Dramas:")
		fmt.Printf("  Total: %s\n", humanize.Comma(int64(stats.TotalDramas)))
		fmt.Printf("  Rated: %s\n", humanize.Comma(int64(stats.RatingStats.Rated)))
		if avg := stats.RatingStats.Average; avg != nil {
			fmt.Printf("  Rating: avg %.2f, min %.1f, max %.1f\n", *avg, stats.RatingStats.Min, stats.RatingStats.Max)
		}

		if len(stats.StatusCounts) > 0 {
			fmt.Println("\nBy status:")
			for _, sc := range stats.StatusCounts {
				fmt.Printf("  %s: %s\n", sc.Status, humanize.Comma(int64(sc.Count)))
			}
		}

		if len(stats.TopGenres) > 0 {
			fmt.Println("\nTop genres:")
			for _, g := range stats.TopGenres {
				fmt.Printf("  %s: %s\n", g.Genre, humanize.Comma(int64(g.Count)))
			}
		}

		run, err := db.GetLastIngestRun(cmd.Context())
		if err != nil {
			return fmt.Errorf("getting last ingest run: %w", err)
		}
		fmt.Println("\nLast ingest:")
		if run == nil {
			fmt.Println("  never (run 'kdramadb ingest')")
			return nil
		}
		fmt.Printf("  %s from %s (%s)\n", humanize.Time(run.FinishedAt), run.Source, run.Encoding)
		fmt.Printf("  %s rows loaded, %s dropped\n", humanize.Comma(int64(run.RowCount)), humanize.Comma(int64(run.Dropped)))
		return nil
	},
}

// --- search command ---

var searchParams database.SearchParams

var searchCmd = &cobra.Command{
	Use:   "search [term]",
	Short: "Search dramas by title, original title or overview",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		params := searchParams
		params.Term = strings.Join(args, " ")
		if !cmd.Flags().Changed("limit") {
			params.Limit = cfg.Query.DefaultLimit
		}

		res, err := db.SearchDramas(cmd.Context(), params)
		if err != nil {
			return err
		}

		if len(res.Dramas) == 0 {
			fmt.Printf("No dramas found (%s total matches).\n", humanize.Comma(int64(res.Total)))
			return nil
		}
		for _, d := range res.Dramas {
			fmt.Printf("  [%d] %s  %s  %s\n", d.TMDBID, d.DisplayTitle(), formatRating(d.Rating), deref(d.Status))
		}
		fmt.Printf("\nShowing %d-%d of %s", res.Offset+1, res.Offset+len(res.Dramas), humanize.Comma(int64(res.Total)))
		if res.HasMore {
			fmt.Printf(" (next: --offset %d)", res.Offset+len(res.Dramas))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	searchCmd.Flags().StringVarP(&searchParams.Genre, "genre", "g", "", "Genre substring")
	searchCmd.Flags().StringVarP(&searchParams.Status, "status", "s", "", "Exact status")
	searchCmd.Flags().Float64VarP(&searchParams.MinRating, "min-rating", "r", 0, "Minimum rating")
	searchCmd.Flags().IntVarP(&searchParams.Limit, "limit", "n", database.DefaultLimit, "Page size")
	searchCmd.Flags().IntVar(&searchParams.Offset, "offset", 0, "Rows to skip")
}

// --- show command ---

var showCmd = &cobra.Command{
	Use:   "show <tmdb_id>",
	Short: "Show one drama",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid tmdb_id %q", args[0])
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		d, err := db.GetDrama(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("drama %d: %w", id, err)
		}

		fmt.Printf("%s\n", d.DisplayTitle())
		if d.OriginalTitle != nil && d.Title != nil && *d.OriginalTitle != *d.Title {
			fmt.Printf("  (%s)\n", *d.OriginalTitle)
		}
		fmt.Println()
		fmt.Printf("  Rating:   %s", formatRating(d.Rating))
		if d.VoteCount != nil {
			fmt.Printf(" from %s votes", humanize.Comma(*d.VoteCount))
		}
		fmt.Println()
		fmt.Printf("  Status:   %s\n", deref(d.Status))
		fmt.Printf("  Aired:    %s to %s\n", deref(d.FirstAirDate), deref(d.LastAirDate))
		if d.Episodes != nil {
			fmt.Printf("  Episodes: %d\n", *d.Episodes)
		}
		fmt.Printf("  Genres:   %s\n", deref(d.Genres))
		fmt.Printf("  Network:  %s\n", deref(d.Network))
		fmt.Printf("  Cast:     %s\n", deref(d.MainCast))
		if d.PosterPath != nil {
			fmt.Printf("  Poster:   %s%s\n", strings.TrimRight(cfg.Server.ImageBaseURL, "/"), *d.PosterPath)
		}
		if d.Overview != nil {
			fmt.Printf("\n%s\n", *d.Overview)
		}
		return nil
	},
}

func formatRating(r float64) string {
	if r <= 0 {
		return "unrated"
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func openDB() (*database.DB, error) {
	opts := []database.Option{
		database.WithLogger(logger),
		database.WithMaxLimit(cfg.Query.MaxLimit),
	}
	if cfg.Database.Driver == "postgres" {
		return database.OpenPostgres(cfg.Database.DSN, opts...)
	}

	dbPath := cfg.GetDatabasePath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(dbPath, opts...)
}
