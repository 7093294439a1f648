// Command import loads subscriptions exported from another deployment.
//
// The CSV needs a header row naming at least user_id, email and expiration.
// Optional columns are credential and ignored. Existing users are skipped.
package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"groupmemail/internal/infra/sqldb"
	"groupmemail/internal/storage"
	"groupmemail/internal/stories/subs"
)

func main() {
	driver := flag.String("driver", sqldb.DriverSQLite, "database driver (sqlite3 or pgx)")
	dsn := flag.String("dsn", "./data/groupmemail.db", "database DSN")
	csvPath := flag.String("csv", "./subscriptions.csv", "path to the CSV export")
	dryRun := flag.Bool("dry-run", false, "show what would be imported without writing to DB")
	flag.Parse()

	ctx := context.Background()

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("failed to open %s: %v", *csvPath, err)
	}
	defer file.Close()

	rows, skipped, err := readRows(file)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *csvPath, err)
	}
	for _, s := range skipped {
		fmt.Printf("  SKIP %s\n", s)
	}

	if *dryRun {
		for _, row := range rows {
			fmt.Printf("  DRY: %s <%s> expires=%s\n", row.UserID, row.Email, row.Expiration.Format(time.DateOnly))
		}
		fmt.Printf("\nWould import: %d, Skipped: %d\n", len(rows), len(skipped))
		fmt.Println("(DRY RUN - nothing was written to database)")
		return
	}

	db, err := sqldb.New(ctx, sqldb.WithDriver(*driver), sqldb.WithDSN(*dsn))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	store := storage.New(db.DB)
	if _, err := store.Migrate(ctx); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	var imported, existing, failed int
	for _, row := range rows {
		_, err := store.CreateSubscription(ctx, row)
		switch {
		case errors.Is(err, subs.ErrAlreadyExists):
			existing++
		case err != nil:
			fmt.Printf("  ERROR %s: %v\n", row.UserID, err)
			failed++
		default:
			imported++
		}
	}

	fmt.Printf("\n=== TOTAL ===\n")
	fmt.Printf("Imported: %d\n", imported)
	fmt.Printf("Already present: %d\n", existing)
	fmt.Printf("Skipped: %d\n", len(skipped))
	fmt.Printf("Errors: %d\n", failed)
}

func readRows(r io.Reader) ([]subs.Subscription, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := parseHeader(header)
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    []subs.Subscription
		skipped []string
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}

		sub, err := cols.parse(record)
		if err != nil {
			skipped = append(skipped, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		rows = append(rows, sub)
	}

	return rows, skipped, nil
}
