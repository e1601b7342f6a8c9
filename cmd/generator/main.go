package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"seatkeeper/internal/config"
	"seatkeeper/internal/database"
	"seatkeeper/internal/logger"
	"seatkeeper/internal/repository"
)

var (
	cinemaName = flag.String("cinema", "Seatkeeper Cinema", "Name of the cinema to create")
	hallCount  = flag.Int("halls", 3, "Number of halls to generate")
	movieCount = flag.Int("movies", 5, "Number of movies to generate")
	seed       = flag.Int64("seed", 0, "Random seed (0 = current time)")
	dryRun     = flag.Bool("dry-run", false, "Show what would be generated without making changes")
)

var movieTitles = []string{
	"The Last Projectionist", "Midnight Matinee", "Row Twelve", "Intermission",
	"Silver Screen Heist", "Popcorn and Thunder", "The Usher", "Closing Credits",
}

// HallPlan is one generated hall layout.
type HallPlan struct {
	Name        string
	Rows        int
	SeatsPerRow int
}

// MoviePlan is one generated movie.
type MoviePlan struct {
	Title        string
	Runtime      int
	ReleaseStart time.Time
	ReleaseEnd   time.Time
}

type Generator struct {
	rnd   *rand.Rand
	repos *repository.Repositories
}

func main() {
	flag.Parse()

	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	slog.Info("Starting catalog generator...")

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	g := &Generator{rnd: rand.New(rand.NewSource(*seed))}

	halls := g.PlanHalls(*hallCount)
	movies := g.PlanMovies(*movieCount, time.Now().UTC())

	if *dryRun {
		for _, h := range halls {
			slog.Info("[DRY RUN] Would create hall", "name", h.Name, "rows", h.Rows, "seats_per_row", h.SeatsPerRow)
		}
		for _, m := range movies {
			slog.Info("[DRY RUN] Would create movie", "title", m.Title, "runtime_min", m.Runtime,
				"release_start", m.ReleaseStart.Format(time.DateOnly), "release_end", m.ReleaseEnd.Format(time.DateOnly))
		}
		return
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	g.repos = repository.NewRepositories(db)
	if err := g.Generate(ctx, *cinemaName, halls, movies); err != nil {
		slog.Error("Failed to generate catalog", "error", err)
		os.Exit(1)
	}

	slog.Info("Catalog generation completed successfully!")
}

// Generate persists the cinema, its halls with seats and the movies.
func (g *Generator) Generate(ctx context.Context, cinema string, halls []HallPlan, movies []MoviePlan) error {
	cinemaID, err := g.repos.Halls.CreateCinema(ctx, cinema)
	if err != nil {
		return fmt.Errorf("failed to create cinema: %w", err)
	}
	slog.Info("Created cinema", "cinema_id", cinemaID, "name", cinema)

	for _, h := range halls {
		hallID, err := g.repos.Halls.CreateWithSeats(ctx, cinemaID, h.Name, h.Rows, h.SeatsPerRow)
		if err != nil {
			return fmt.Errorf("failed to create hall %s: %w", h.Name, err)
		}
		slog.Info("Created hall", "hall_id", hallID, "name", h.Name, "seats", h.Rows*h.SeatsPerRow)
	}

	for _, m := range movies {
		movieID, err := g.repos.Movies.Create(ctx, m.Title, m.Runtime, m.ReleaseStart, m.ReleaseEnd)
		if err != nil {
			return fmt.Errorf("failed to create movie %s: %w", m.Title, err)
		}
		slog.Info("Created movie", "movie_id", movieID, "title", m.Title, "runtime_min", m.Runtime)
	}

	return nil
}

// PlanHalls draws n hall layouts of 8-20 rows with 10-24 seats each.
func (g *Generator) PlanHalls(n int) []HallPlan {
	halls := make([]HallPlan, 0, n)
	for i := 1; i <= n; i++ {
		halls = append(halls, HallPlan{
			Name:        fmt.Sprintf("Hall %d", i),
			Rows:        g.rnd.Intn(13) + 8,
			SeatsPerRow: g.rnd.Intn(15) + 10,
		})
	}
	return halls
}

// PlanMovies draws n movies with 80-180 minute runtimes whose release
// windows open within the past week and last four to eight weeks.
func (g *Generator) PlanMovies(n int, now time.Time) []MoviePlan {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	movies := make([]MoviePlan, 0, n)
	for i := 0; i < n; i++ {
		title := movieTitles[i%len(movieTitles)]
		if i >= len(movieTitles) {
			title = fmt.Sprintf("%s %d", title, i/len(movieTitles)+1)
		}
		start := today.AddDate(0, 0, -g.rnd.Intn(7))
		movies = append(movies, MoviePlan{
			Title:        title,
			Runtime:      g.rnd.Intn(101) + 80,
			ReleaseStart: start,
			ReleaseEnd:   start.AddDate(0, 0, 7*(g.rnd.Intn(5)+4)),
		})
	}
	return movies
}
