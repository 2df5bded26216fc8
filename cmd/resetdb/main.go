package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/seedling/pitch-platform/internal/db"
)

// resetdb wipes test data while keeping the seeded admin (id 1). Child
// tables go first so foreign keys never get in the way.
func main() {
	keepAdmin := flag.Int64("keep-admin", 1, "user id to preserve")
	yes := flag.Bool("yes", false, "skip confirmation")
	flag.Parse()

	_ = godotenv.Load()
	if !*yes {
		fmt.Fprintln(os.Stderr, "This deletes all rows except the admin user. Re-run with -yes to proceed.")
		os.Exit(1)
	}

	dbase := db.MustOpen()
	ctx := context.Background()

	tables := []string{
		"judge_assignments",
		"payments",
		"password_reset_tokens",
		"user_bank_accounts",
		"submissions",
		"competitions",
	}
	for _, table := range tables {
		res, err := dbase.ExecContext(ctx, "delete from "+table)
		if err != nil {
			fmt.Fprintf(os.Stderr, "delete %s: %v\n", table, err)
			os.Exit(1)
		}
		n, _ := res.RowsAffected()
		fmt.Printf("cleared %s (%d rows)\n", table, n)
	}

	res, err := dbase.ExecContext(ctx, "delete from users where id != $1", *keepAdmin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "delete users: %v\n", err)
		os.Exit(1)
	}
	n, _ := res.RowsAffected()
	fmt.Printf("cleared users (%d rows, kept id %d)\n", n, *keepAdmin)
}
