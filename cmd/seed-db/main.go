// Command seed-db populates a development database: the course catalog from
// a JSON file, a demo user, and an API key bound to that user.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/courseloop/coursepay/internal/domain/course"
	"github.com/courseloop/coursepay/internal/storage/postgres"
)

type courseJSON struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Published bool            `json:"published"`
}

func main() {
	var (
		databaseURL  string
		coursesFile  string
		userEmail    string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&coursesFile, "courses-file", "db/seed/courses.json", "path to courses JSON file")
	flag.StringVar(&userEmail, "user-email", "student@example.com", "email for the seeded demo user")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or COURSEPAY_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or COURSEPAY_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("COURSEPAY_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or COURSEPAY_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("COURSEPAY_API_KEY_PEPPER")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, databaseURL, coursesFile, userEmail, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", "error", err)
		os.Exit(1)
	}
	slog.Info("seed complete")
}

func run(ctx context.Context, databaseURL, coursesFile, userEmail, apiKey, pepper string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	raw, err := os.ReadFile(coursesFile)
	if err != nil {
		return errors.Wrap(err, "read courses file")
	}
	var courses []courseJSON
	if err := json.Unmarshal(raw, &courses); err != nil {
		return errors.Wrap(err, "decode courses file")
	}

	repo := postgres.NewCourseRepository(pool)
	for _, c := range courses {
		err := repo.Upsert(ctx, &course.Course{
			ID:        c.ID,
			Title:     c.Title,
			Price:     c.Price,
			Published: c.Published,
		})
		if err != nil {
			return errors.Wrapf(err, "upsert course %s", c.ID)
		}
	}
	slog.Info("courses seeded", "count", len(courses))

	userID := uuid.New().String()
	err = pool.QueryRow(ctx, `INSERT INTO users (id, email, name)
		VALUES ($1, $2, 'Demo Student')
		ON CONFLICT (email) DO UPDATE SET name = users.name
		RETURNING id`, userID, userEmail).Scan(&userID)
	if err != nil {
		return errors.Wrap(err, "seed user")
	}

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err = pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, user_id, name, active)
		VALUES ($1, $2, $3, 'seeded', TRUE)
		ON CONFLICT (key_hash) DO NOTHING`, uuid.New().String(), keyHash, userID)
	if err != nil {
		return errors.Wrap(err, "seed api key")
	}

	slog.Info("user and api key seeded", "email", userEmail)
	return nil
}
