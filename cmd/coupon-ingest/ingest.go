package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-commerce/internal/domain/coupon"
)

const (
	ingestOwner = "coupon-ingest"
	numColumns  = 6
)

// source is one gzip-compressed CSV input.
type source struct {
	name string
	open func() (io.ReadCloser, error)
}

// row is a parsed CSV record with its position for error reporting.
type row struct {
	line   int
	fields []string
}

// upserter persists a batch of coupons.
type upserter interface {
	Upsert(ctx context.Context, coupons []coupon.Coupon) error
}

// ingester imports coupon definitions from CSV sources.
type ingester struct {
	expected  uint
	fpr       float64
	batchSize int
	now       func() time.Time
}

// stats summarizes an import.
type stats struct {
	Rows       int
	Imported   int
	Duplicates int
	Rejected   int
}

// duplicates finds the codes that occur more than once across all sources.
//
// Pass 1 builds a bloom filter per source and records codes that may repeat
// inside the same source. Pass 2 counts exact occurrences of every code that
// is suspect in its own source or present in another source's filter. Only
// suspects are held in memory.
func (in *ingester) duplicates(ctx context.Context, sources []source) (map[string]struct{}, error) {
	filters := make([]*bloom.BloomFilter, len(sources))
	suspects := make([]map[string]struct{}, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(in.expected, in.fpr)
			local := make(map[string]struct{})
			var count int
			if err := streamCodes(gctx, src, func(code string) {
				count++
				if filter.TestOrAddString(code) {
					local[code] = struct{}{}
				}
			}); err != nil {
				return errors.Wrapf(err, "build filter for %s", src.name)
			}
			filters[i] = filter
			suspects[i] = local

			slog.Info("pass 1 complete", slog.String("file", src.name), slog.Int("codes", count))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make([]map[string]int, len(sources))
	g, gctx = errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			local := make(map[string]int)
			if err := streamCodes(gctx, src, func(code string) {
				if _, ok := suspects[i][code]; ok {
					local[code]++
					return
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						local[code]++
						return
					}
				}
			}); err != nil {
				return errors.Wrapf(err, "scan %s for duplicates", src.name)
			}
			counts[i] = local

			slog.Info("pass 2 complete", slog.String("file", src.name), slog.Int("candidates", len(local)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]int)
	for _, c := range counts {
		for code, n := range c {
			merged[code] += n
		}
	}
	dups := make(map[string]struct{})
	for code, n := range merged {
		if n > 1 {
			dups[code] = struct{}{}
		}
	}
	return dups, nil
}

// run imports every valid row. Sources are read in order and the first row
// of a duplicated code wins.
func (in *ingester) run(ctx context.Context, sources []source, dst upserter) (stats, error) {
	var st stats

	dups, err := in.duplicates(ctx, sources)
	if err != nil {
		return st, err
	}
	slog.Info("duplicate codes found", slog.Int("count", len(dups)))

	taken := make(map[string]struct{}, len(dups))
	batch := make([]coupon.Coupon, 0, in.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := dst.Upsert(ctx, batch); err != nil {
			return err
		}
		st.Imported += len(batch)
		slog.Info("write progress", slog.Int("imported", st.Imported))
		batch = batch[:0]
		return nil
	}

	for _, src := range sources {
		if err := streamRows(ctx, src, func(r row) error {
			st.Rows++
			code := coupon.NormalizeCode(r.fields[0])
			if _, ok := dups[code]; ok {
				if _, seen := taken[code]; seen {
					st.Duplicates++
					slog.Warn("skipping duplicate code",
						slog.String("file", src.name), slog.Int("line", r.line), slog.String("code", code))
					return nil
				}
				taken[code] = struct{}{}
			}

			c, err := in.build(r.fields)
			if err != nil {
				st.Rejected++
				slog.Warn("rejecting row",
					slog.String("file", src.name), slog.Int("line", r.line), slog.String("error", err.Error()))
				return nil
			}
			batch = append(batch, *c)
			if len(batch) >= in.batchSize {
				return flush()
			}
			return nil
		}); err != nil {
			return st, errors.Wrapf(err, "import %s", src.name)
		}
	}
	if err := flush(); err != nil {
		return st, err
	}
	return st, nil
}

// build turns code,name,discount,minimum,start,expiry into a coupon.
func (in *ingester) build(fields []string) (*coupon.Coupon, error) {
	code, name := fields[0], fields[1]
	discount, err := decimal.NewFromString(strings.TrimSpace(fields[2]))
	if err != nil {
		return nil, errors.Wrapf(err, "parse discount %q", fields[2])
	}
	input := coupon.Input{Code: &code, Name: &name, DiscountValue: &discount}

	if v := strings.TrimSpace(fields[3]); v != "" {
		minimum, err := decimal.NewFromString(v)
		if err != nil {
			return nil, errors.Wrapf(err, "parse minimum %q", v)
		}
		input.MinimumCartValue = &minimum
	}
	if v := strings.TrimSpace(fields[4]); v != "" {
		start, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		input.StartDate = &start
	}
	if v := strings.TrimSpace(fields[5]); v != "" {
		expiry, err := parseTime(v)
		if err != nil {
			return nil, err
		}
		input.ExpiryDate = &expiry
	}
	return coupon.Build(ingestOwner, input, in.now())
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, errors.Errorf("invalid time %q", v)
	}
	return t, nil
}

// streamCodes calls fn with the normalized code of every row.
func streamCodes(ctx context.Context, src source, fn func(code string)) error {
	return streamRows(ctx, src, func(r row) error {
		if code := coupon.NormalizeCode(r.fields[0]); code != "" {
			fn(code)
		}
		return nil
	})
}

// streamRows decompresses src and calls fn for each data row. A leading
// header row starting with "code" is skipped.
func streamRows(ctx context.Context, src source, fn func(r row) error) error {
	f, err := src.open()
	if err != nil {
		return errors.Wrapf(err, "open %s", src.name)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", src.name)
	}
	defer func() { _ = gz.Close() }()

	r := csv.NewReader(gz)
	r.FieldsPerRecord = numColumns
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrapf(err, "read %s", src.name)
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "code") {
			continue
		}
		if err := fn(row{line: line, fields: rec}); err != nil {
			return err
		}
	}
}
