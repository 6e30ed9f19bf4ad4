// Command catalog-ingest bulk-loads a gzipped course catalog export
// (JSON lines, one course per line) into the courses table. Catalog dumps
// come out of the LMS as .jsonl.gz files; parallel gzip keeps large imports
// CPU-bound rather than decompression-bound.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/courseloop/coursepay/internal/domain/course"
	"github.com/courseloop/coursepay/internal/storage/postgres"
)

const progressEvery = 10_000

type courseLine struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Published bool            `json:"published"`
}

func main() {
	var (
		catalogFile string
		databaseURL string
	)

	flag.StringVar(&catalogFile, "catalog-file", "", "path to the .jsonl.gz catalog dump")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if catalogFile == "" {
		slog.Error("catalog file is required: set --catalog-file")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	n, err := run(ctx, databaseURL, catalogFile)
	if err != nil {
		slog.Error("ingest failed", "error", err)
		os.Exit(1)
	}
	slog.Info("ingest complete", "courses", n)
}

func run(ctx context.Context, databaseURL, catalogFile string) (int, error) {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return 0, errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return 0, errors.Wrap(err, "run migrations")
	}

	f, err := os.Open(catalogFile)
	if err != nil {
		return 0, errors.Wrap(err, "open catalog")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return 0, errors.Wrap(err, "open gzip stream")
	}
	defer gz.Close()

	repo := postgres.NewCourseRepository(pool)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	count := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		var line courseLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return count, errors.Wrapf(err, "decode line %d", count+1)
		}

		err := repo.Upsert(ctx, &course.Course{
			ID:        line.ID,
			Title:     line.Title,
			Price:     line.Price,
			Published: line.Published,
		})
		if err != nil {
			return count, errors.Wrapf(err, "upsert course %s", line.ID)
		}

		count++
		if count%progressEvery == 0 {
			slog.Info("progress", "courses", count)
		}
	}
	if err := scanner.Err(); err != nil {
		return count, errors.Wrap(err, "read catalog")
	}
	return count, nil
}
