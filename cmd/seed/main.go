package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/masapos/api/internal/catalog"
	"github.com/masapos/api/internal/config"
	"github.com/masapos/api/internal/database"
	"github.com/masapos/api/internal/filestore"
	"github.com/sirupsen/logrus"
)

// seedNamespace derives stable UUIDs for snapshot ids that are not UUIDs.
var seedNamespace = uuid.MustParse("6f1c7a44-2f0e-4d8e-9a57-0f3b8d6c2e11")

func main() {
	cfg := config.Load()

	dataDir := flag.String("data", cfg.DataDir, "directory holding categories.json, products.json and tables.json")
	migrate := flag.Bool("migrate", true, "apply migrations before seeding")
	flag.Parse()

	if *migrate {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			logrus.Fatalf("migrate: %v", err)
		}
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logrus.Fatalf("unable to connect to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logrus.Fatalf("unable to ping database: %v", err)
	}
	logrus.Info("connected to database")

	files := filestore.New(*dataDir)

	// Catalog and tables go in together or not at all.
	tx, err := pool.Begin(ctx)
	if err != nil {
		logrus.Fatalf("begin transaction: %v", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := database.New(tx)
	if err := seedCatalog(ctx, q, files); err != nil {
		logrus.Fatalf("seed catalog: %v", err)
	}
	if err := seedTables(ctx, q, files); err != nil {
		logrus.Fatalf("seed tables: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		logrus.Fatalf("commit: %v", err)
	}
	logrus.Info("seed completed")
}

func seedCatalog(ctx context.Context, q *database.Queries, files *filestore.Store) error {
	n, err := q.CountCategories(ctx)
	if err != nil {
		return fmt.Errorf("count categories: %w", err)
	}
	m, err := q.CountProducts(ctx)
	if err != nil {
		return fmt.Errorf("count products: %w", err)
	}
	if n > 0 || m > 0 {
		logrus.Infof("catalog already has %d categories and %d products, skipping", n, m)
		return nil
	}

	var categories []filestore.CategoryRecord
	if err := loadOptional(files, filestore.Categories, &categories); err != nil {
		return err
	}
	ordered, err := parentsFirst(categories)
	if err != nil {
		return err
	}
	seeded := make(map[string]bool, len(ordered))
	for _, c := range ordered {
		seeded[c.ID] = true
		params := database.InsertCategoryParams{ID: recordID("category", c.ID), Name: c.Name}
		if c.ParentID != nil && *c.ParentID != "" {
			params.ParentID = pgtype.UUID{Bytes: recordID("category", *c.ParentID), Valid: true}
		}
		if _, err := q.InsertCategory(ctx, params); err != nil {
			return fmt.Errorf("insert category %q: %w", c.Name, err)
		}
	}

	var products []filestore.ProductRecord
	if err := loadOptional(files, filestore.Products, &products); err != nil {
		return err
	}
	for _, p := range products {
		params := database.InsertProductParams{
			ID:         recordID("product", p.ID),
			Name:       p.Name,
			Price:      catalog.DecimalToNumeric(p.Price),
			IsWeighted: p.IsWeighted,
		}
		if p.CategoryID != nil && seeded[*p.CategoryID] {
			params.CategoryID = pgtype.UUID{Bytes: recordID("category", *p.CategoryID), Valid: true}
		}
		product, err := q.InsertProduct(ctx, params)
		if err != nil {
			return fmt.Errorf("insert product %q: %w", p.Name, err)
		}
		for _, v := range p.Variants {
			if _, err := q.InsertProductVariant(ctx, database.InsertProductVariantParams{
				ProductID: product.ID,
				Name:      v.Name,
				Price:     catalog.DecimalToNumeric(v.Price),
			}); err != nil {
				return fmt.Errorf("insert variant %q of %q: %w", v.Name, p.Name, err)
			}
		}
	}

	logrus.Infof("seeded %d categories and %d products", len(ordered), len(products))
	return nil
}

func seedTables(ctx context.Context, q *database.Queries, files *filestore.Store) error {
	n, err := q.CountTables(ctx)
	if err != nil {
		return fmt.Errorf("count tables: %w", err)
	}
	if n > 0 {
		logrus.Infof("%d tables already exist, skipping", n)
		return nil
	}

	var tables []filestore.TableRecord
	if err := loadOptional(files, filestore.Tables, &tables); err != nil {
		return err
	}
	for _, t := range tables {
		// A fresh database has no orders, so every table starts available
		// whatever the snapshot says.
		if _, err := q.InsertTable(ctx, database.InsertTableParams{
			ID:     recordID("table", t.ID),
			Name:   t.Name,
			Status: database.TableStatusAvailable,
		}); err != nil {
			return fmt.Errorf("insert table %q: %w", t.Name, err)
		}
	}

	logrus.Infof("seeded %d tables", len(tables))
	return nil
}

func loadOptional(files *filestore.Store, name string, v any) error {
	err := files.Load(name, v)
	if errors.Is(err, filestore.ErrNotFound) {
		logrus.Warnf("%s snapshot not found, nothing to seed", name)
		return nil
	}
	return err
}

// recordID keeps UUID ids as they are and maps anything else to a stable
// name-based UUID, so references between snapshot files still line up.
func recordID(kind, id string) uuid.UUID {
	if u, err := uuid.Parse(id); err == nil {
		return u
	}
	return uuid.NewSHA1(seedNamespace, []byte(kind+":"+id))
}

// parentsFirst orders categories so every parent is inserted before its
// children. Unknown parents are dropped; duplicate ids and cycles are errors.
func parentsFirst(categories []filestore.CategoryRecord) ([]filestore.CategoryRecord, error) {
	known := make(map[string]bool, len(categories))
	for _, c := range categories {
		if known[c.ID] {
			return nil, fmt.Errorf("duplicate category id %q", c.ID)
		}
		known[c.ID] = true
	}

	done := make(map[string]bool, len(categories))
	out := make([]filestore.CategoryRecord, 0, len(categories))
	for len(out) < len(categories) {
		progressed := false
		for _, c := range categories {
			if done[c.ID] {
				continue
			}
			if c.ParentID != nil && (*c.ParentID == "" || !known[*c.ParentID]) {
				c.ParentID = nil
			}
			if c.ParentID == nil || done[*c.ParentID] {
				out = append(out, c)
				done[c.ID] = true
				progressed = true
			}
		}
		if !progressed {
			return nil, errors.New("category parents form a cycle")
		}
	}
	return out, nil
}
