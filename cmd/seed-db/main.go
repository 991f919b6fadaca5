package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/coupon"
	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/storage/postgres"
)

const seedOwner = "seed"

type catalogJSON struct {
	Categories []struct {
		Name     string `json:"name"`
		Products []struct {
			ID          string          `json:"id"`
			Name        string          `json:"name"`
			Description string          `json:"description"`
			MainImage   string          `json:"mainImage"`
			Price       decimal.Decimal `json:"price"`
			Stock       int             `json:"stock"`
		} `json:"products"`
	} `json:"categories"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		couponDays   int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to catalog JSON file")
	flag.IntVar(&couponDays, "coupon-days", 90, "validity of the demo coupons in days")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, time.Duration(couponDays)*24*time.Hour); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string, couponTTL time.Duration) error {
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

	if err := seedCatalog(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed catalog")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool), couponTTL); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedCatalog(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	slog.Info("reading catalog file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}

	var catalog catalogJSON
	if err := json.Unmarshal(data, &catalog); err != nil {
		return errors.Wrap(err, "parse catalog JSON")
	}

	now := time.Now().UTC()
	for _, c := range catalog.Categories {
		category := &product.Category{
			ID:        uuid.New().String(),
			Name:      c.Name,
			OwnerID:   seedOwner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.UpsertCategory(ctx, category); err != nil {
			return err
		}

		slog.Info("upserted category", slog.String("id", category.ID), slog.String("name", category.Name))

		for _, p := range c.Products {
			if err := repo.UpsertProduct(ctx, &product.Product{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Description,
				MainImage:   p.MainImage,
				Price:       p.Price,
				Stock:       p.Stock,
				CategoryID:  category.ID,
				OwnerID:     seedOwner,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}

			slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
		}
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository, ttl time.Duration) error {
	slog.Info("seeding demo coupons")

	now := time.Now().UTC()
	expiry := now.Add(ttl)
	start := now.Add(-time.Minute)

	inputs := []struct {
		name, code       string
		discount, minimum string
	}{
		{name: "Welcome offer", code: "WELCOME50", discount: "50", minimum: "0"},
		{name: "Big basket", code: "SAVE200", discount: "200", minimum: "1000"},
		{name: "Chai time", code: "CHAI75", discount: "75", minimum: "499"},
	}

	coupons := make([]coupon.Coupon, 0, len(inputs))
	for _, in := range inputs {
		discount := decimal.RequireFromString(in.discount)
		minimum := decimal.RequireFromString(in.minimum)
		c, err := coupon.Build(seedOwner, coupon.Input{
			Name:             &in.name,
			Code:             &in.code,
			DiscountValue:    &discount,
			MinimumCartValue: &minimum,
			StartDate:        &start,
			ExpiryDate:       &expiry,
		}, now)
		if err != nil {
			return errors.Wrapf(err, "build coupon %s", in.code)
		}
		coupons = append(coupons, *c)

		slog.Info("prepared coupon", slog.String("code", c.Code), slog.String("discount", c.DiscountValue.StringFixed(2)))
	}

	return repo.Upsert(ctx, coupons)
}
