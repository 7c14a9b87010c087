// Command seed-db loads demo catalog data, a couple of coupons, and an admin
// API key into the database. It is idempotent: everything is upserted.
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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/storage/postgres"
)

type variantJSON struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
	Stock int              `json:"stock"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Discount    decimal.Decimal `json:"discount"`
	Category    string          `json:"category"`
	Variants    []variantJSON   `json:"variants"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		adminEmail   string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&adminEmail, "admin-email", "admin@example.com", "email for the seeded admin user")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or MARKET_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or MARKET_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("MARKET_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or MARKET_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("MARKET_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, adminEmail, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, adminEmail, apiKey, pepper string) error {
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
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAdmin(ctx, pool, adminEmail, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed admin")
	}
	return nil
}

const (
	upsertProductSQL = `INSERT INTO products (id, title, description, price, stock, discount, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET title = $2, description = $3, price = $4,
			stock = $5, discount = $6, category = $7`

	upsertVariantSQL = `INSERT INTO product_variants (id, product_id, name, price, stock)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = $3, price = $4, stock = $5`

	upsertCouponSQL = `INSERT INTO coupons (code, discount_type, value, minimum_purchase,
		maximum_discount, usage_limit, one_time_use, active, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET discount_type = $2, value = $3,
			minimum_purchase = $4, maximum_discount = $5, usage_limit = $6,
			one_time_use = $7, active = $8, description = $9`

	upsertUserSQL = `INSERT INTO users (id, email, name, role)
		VALUES ($1, $2, $3, 'admin')
		ON CONFLICT (email) DO UPDATE SET role = 'admin'`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, user_id, scopes)
		VALUES ($1, $2, 'seeded admin key', $3, '{admin}')
		ON CONFLICT (key_hash) DO NOTHING`
)

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}
	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, upsertProductSQL,
			p.ID, p.Title, p.Description, p.Price, p.Stock, p.Discount, p.Category)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		for _, v := range p.Variants {
			_, err := pool.Exec(ctx, upsertVariantSQL, v.ID, p.ID, v.Name, v.Price, v.Stock)
			if err != nil {
				return errors.Wrapf(err, "upsert variant %s of product %s", v.ID, p.ID)
			}
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("title", p.Title))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo coupons")

	type c struct {
		code, typ, value, minPurchase, maxDiscount string
		usageLimit                                 int
		oneTime                                    bool
		description                                string
	}
	coupons := []c{
		{"WELCOME10", "fixed", "10", "25", "0", 0, true, "Welcome: $10 off your first order over $25"},
		{"SAVE20", "percentage", "20", "0", "50", 0, false, "20% off, up to $50"},
		{"FREESHIP5", "fixed", "5.99", "0", "0", 1000, false, "Shipping on us"},
	}
	for _, cp := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			cp.code, cp.typ,
			decimal.RequireFromString(cp.value),
			decimal.RequireFromString(cp.minPurchase),
			decimal.RequireFromString(cp.maxDiscount),
			cp.usageLimit, cp.oneTime, true, cp.description)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", cp.code)
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, pool *pgxpool.Pool, email, apiKey, pepper string) error {
	userID := uuid.NewString()
	if _, err := pool.Exec(ctx, upsertUserSQL, userID, email, "Admin"); err != nil {
		return errors.Wrap(err, "upsert admin user")
	}

	// Resolve the canonical ID in case the user already existed.
	if err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&userID); err != nil {
		return errors.Wrap(err, "resolve admin user")
	}

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	hash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, upsertAPIKeySQL, uuid.NewString(), hash, userID); err != nil {
		return errors.Wrap(err, "upsert api key")
	}

	slog.Info("seeded admin", slog.String("email", email))
	return nil
}
