//go:build integration

// Package integration exercises the full stack against a real PostgreSQL
// instance: HTTP handlers, API key auth, the payment services, and the
// transactional settlement unit. The payment gateway is a local stub whose
// verify answer is scripted per reference.
package integration

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgcontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/courseloop/coursepay/internal/domain/cart"
	"github.com/courseloop/coursepay/internal/domain/payment"
	"github.com/courseloop/coursepay/internal/gateway/paystack"
	"github.com/courseloop/coursepay/internal/handler"
	"github.com/courseloop/coursepay/internal/storage/postgres"
)

const (
	apiKey        = "integration-test-key"
	apiKeyPepper  = "test-pepper"
	webhookSecret = "sk_test_webhook_secret"
)

var (
	pool     *pgxpool.Pool
	mux      *http.ServeMux
	gateway  *stubGateway
	payments *payment.Service

	userID  = uuid.New().String()
	courseA = uuid.New().String()
	courseB = uuid.New().String()
)

// stubGateway impersonates the Paystack transaction API. verdicts maps a
// reference to the charge status verify reports for it.
type stubGateway struct {
	mu       sync.Mutex
	verdicts map[string]string
	initsRef []string
}

func (g *stubGateway) setVerdict(reference, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verdicts[reference] = status
}

func (g *stubGateway) lastReference() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.initsRef) == 0 {
		return ""
	}
	return g.initsRef[len(g.initsRef)-1]
}

func (g *stubGateway) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/transaction/initialize":
			var req struct {
				Reference string `json:"reference"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			g.mu.Lock()
			g.initsRef = append(g.initsRef, req.Reference)
			g.mu.Unlock()
			_, _ = w.Write([]byte(`{"status": true, "message": "ok", "data": {"authorization_url": "https://checkout.stub/` + req.Reference + `"}}`))

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			reference := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
			g.mu.Lock()
			status, ok := g.verdicts[reference]
			g.mu.Unlock()
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"status": false, "message": "Transaction reference not found"}`))
				return
			}
			_, _ = w.Write([]byte(`{"status": true, "data": {"status": "` + status + `", "reference": "` + reference + `"}}`))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pg, err := pgcontainer.Run(ctx,
		"postgres:16-alpine",
		pgcontainer.WithDatabase("coursepay"),
		pgcontainer.WithUsername("coursepay"),
		pgcontainer.WithPassword("coursepay"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := pg.Terminate(context.Background()); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	pool, err = postgres.NewPool(ctx, dsn)
	if err != nil {
		log.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	if err := seed(ctx); err != nil {
		log.Fatalf("seed: %v", err)
	}

	gateway = &stubGateway{verdicts: make(map[string]string)}
	stub := httptest.NewServer(gateway.handler())
	defer stub.Close()

	client := paystack.NewClient(paystack.Config{
		BaseURL:   stub.URL,
		SecretKey: webhookSecret,
		Timeout:   5 * time.Second,
	})

	carts := postgres.NewCartRepository(pool)
	courses := postgres.NewCourseRepository(pool)
	enrollments := postgres.NewEnrollmentRepository(pool)
	paymentRepo := postgres.NewPaymentRepository(pool)
	settlementUnit := postgres.NewSettlementUnit(pool)

	cartSvc := cart.NewService(carts, courses, enrollments)
	payments = payment.NewService(carts, courses, enrollments, paymentRepo, settlementUnit, client)

	h := handler.NewHandler(cartSvc, payments, []byte(webhookSecret))
	sec := handler.NewSecurity(postgres.NewAPIKeyRepository(pool), []byte(apiKeyPepper))

	mux = http.NewServeMux()
	h.Register(mux, sec)

	return m.Run()
}

func seed(ctx context.Context) error {
	_, err := pool.Exec(ctx, `INSERT INTO users (id, email, name) VALUES ($1, 'student@example.com', 'Student')`, userID)
	if err != nil {
		return err
	}

	mac := hmac.New(sha256.New, []byte(apiKeyPepper))
	mac.Write([]byte(apiKey))
	_, err = pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, user_id, name) VALUES ($1, $2, $3, 'test')`,
		uuid.New().String(), hex.EncodeToString(mac.Sum(nil)), userID)
	if err != nil {
		return err
	}

	for _, c := range []struct{ id, title, price string }{
		{courseA, "Go Fundamentals", "15000.00"},
		{courseB, "PostgreSQL Performance Tuning", "22500.00"},
	} {
		_, err = pool.Exec(ctx, `INSERT INTO courses (id, title, price, published) VALUES ($1, $2, $3, TRUE)`,
			c.id, c.title, c.price)
		if err != nil {
			return err
		}
	}
	return nil
}

// --- HTTP helpers ---

func doJSON(t *testing.T, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("api_key", apiKey)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	out := make(map[string]any)
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func postWebhook(t *testing.T, event, reference string) *httptest.ResponseRecorder {
	t.Helper()

	body := []byte(`{"event":"` + event + `","data":{"reference":"` + reference + `","amount":1500000}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook/paystack", bytes.NewReader(body))
	req.Header.Set(paystack.SignatureHeader, paystack.Sign([]byte(webhookSecret), body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

// --- DB assertions ---

func enrollmentCount(t *testing.T, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT count(*) FROM enrollments WHERE user_id = $1`, userID).Scan(&n))
	return n
}

func paymentStatus(t *testing.T, reference string) string {
	t.Helper()
	var status string
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT status FROM payments WHERE reference = $1`, reference).Scan(&status))
	return status
}

func cartItemCount(t *testing.T, userID string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT jsonb_array_length(items) FROM carts WHERE user_id = $1`, userID).Scan(&n))
	return n
}

func resetPurchaseState(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := pool.Exec(ctx, `DELETE FROM enrollments WHERE user_id = $1`, userID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM payments WHERE user_id = $1`, userID)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `DELETE FROM carts WHERE user_id = $1`, userID)
	require.NoError(t, err)
}
