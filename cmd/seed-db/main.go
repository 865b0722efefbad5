// Command seed-db prepares a database for local development: it runs
// migrations, loads the product catalog from a JSON file (plain or
// gzip-compressed), and creates an admin user. Every step is idempotent, so
// re-running against a seeded database is safe.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/averlane/storefront/internal/storage/postgres"
)

type productJSON struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	MediaURL    string          `json:"media_url"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		adminEmail    string
		adminPassword string
		adminName     string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products catalog (.json or .json.gz)")
	flag.StringVar(&adminEmail, "admin-email", "", "admin user email (or SHOP_SEED_ADMIN_EMAIL env)")
	flag.StringVar(&adminPassword, "admin-password", "", "admin user password (or SHOP_SEED_ADMIN_PASSWORD env)")
	flag.StringVar(&adminName, "admin-name", "Administrator", "admin user display name")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminEmail == "" {
		adminEmail = os.Getenv("SHOP_SEED_ADMIN_EMAIL")
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("SHOP_SEED_ADMIN_PASSWORD")
	}
	if adminEmail == "" || adminPassword == "" {
		slog.Error("admin credentials are required: set --admin-email/--admin-password or the SHOP_SEED_ADMIN_* envs")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminName, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminName, adminEmail, adminPassword string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedAdmin(ctx, pool, adminName, adminEmail, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin user")
	}

	return nil
}

func readCatalog(path string) ([]productJSON, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open catalog")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrap(err, "create gzip reader")
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	var products []productJSON
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, errors.Wrap(err, "parse catalog JSON")
	}
	return products, nil
}

const insertProductIfAbsentSQL = `
INSERT INTO products (name, description, price, stock, category, media_url)
SELECT $1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), NULLIF($6, '')
WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $1)`

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) error {
	products, err := readCatalog(path)
	if err != nil {
		return err
	}

	slog.Info("loading products", slog.String("path", path), slog.Int("count", len(products)))

	for _, p := range products {
		tag, err := pool.Exec(ctx, insertProductIfAbsentSQL,
			p.Name, p.Description, p.Price, p.Stock, p.Category, p.MediaURL)
		if err != nil {
			return errors.Wrapf(err, "insert product %q", p.Name)
		}
		if tag.RowsAffected() > 0 {
			slog.Info("inserted product", slog.String("name", p.Name))
		}
	}

	return nil
}

const insertAdminSQL = `
INSERT INTO users (full_name, email, password_hash, is_admin)
VALUES ($1, $2, $3, TRUE)
ON CONFLICT (email) DO NOTHING`

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, name, email, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}

	tag, err := pool.Exec(ctx, insertAdminSQL, name, email, string(hash))
	if err != nil {
		return errors.Wrap(err, "insert admin user")
	}
	if tag.RowsAffected() > 0 {
		slog.Info("created admin user", slog.String("email", email))
	} else {
		slog.Info("admin user already present", slog.String("email", email))
	}

	return nil
}
