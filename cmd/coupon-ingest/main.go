package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-commerce/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		databaseURL string
		expected    uint
		batchSize   int
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.csv.gz coupon files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.UintVar(&expected, "expected-codes", 1_000_000, "expected codes per file, sizes the bloom filters")
	flag.IntVar(&batchSize, "batch-size", 500, "coupons per database batch")
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

	in := &ingester{expected: expected, fpr: 0.001, batchSize: max(batchSize, 1), now: time.Now}
	if err := run(ctx, in, dataDir, flag.Args(), databaseURL); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

func run(ctx context.Context, in *ingester, dataDir string, files []string, databaseURL string) error {
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
		if err != nil {
			return errors.Wrap(err, "list data files")
		}
		sort.Strings(matches)
		files = matches
	}
	if len(files) == 0 {
		return errors.Errorf("no *.csv.gz files in %s", dataDir)
	}

	sources := make([]source, len(files))
	for i, path := range files {
		if _, err := os.Stat(path); err != nil {
			return errors.Wrapf(err, "check file %s", path)
		}
		sources[i] = source{
			name: filepath.Base(path),
			open: func() (io.ReadCloser, error) { return os.Open(path) },
		}
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	st, err := in.run(ctx, sources, postgres.NewCouponRepository(pool))
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int("rows", st.Rows),
		slog.Int("imported", st.Imported),
		slog.Int("duplicates", st.Duplicates),
		slog.Int("rejected", st.Rejected),
	)
	return nil
}
