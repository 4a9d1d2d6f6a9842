// Package sanitize empties the application tables, optionally reseeding the
// roles and the admin account afterwards.
package sanitize

import (
	"context"
	"fmt"
	"io"
	"log"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"crucible/pkg/store"
)

// DefaultTables lists the application tables, children first.
const DefaultTables = "match_records,screenshots,refresh_tokens,users,roles"

var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Options describe one sanitize run.
type Options struct {
	Tables string
	DryRun bool
	Yes    bool
	Reseed bool
	// AdminPassword is used when reseeding; empty uses the store default.
	AdminPassword string
	SQLite        bool
}

// TableNames splits a comma separated list, dropping invalid identifiers.
func TableNames(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !nameRe.MatchString(p) {
			log.Printf("warning: skipping invalid table name '%s'", p)
			continue
		}
		out = append(out, p)
	}
	return out
}

// Run empties the requested tables that exist. Nothing is changed unless
// DryRun is false and Yes is set.
func Run(gdb *gorm.DB, w io.Writer, opts Options) error {
	existing := []string{}
	for _, t := range TableNames(opts.Tables) {
		if gdb.Migrator().HasTable(t) {
			existing = append(existing, t)
		} else {
			log.Printf("info: table %s not found, skipping", t)
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(w, "no requested tables present in the database; nothing to do")
		return nil
	}

	fmt.Fprintln(w, "Tables considered for truncation:")
	for _, t := range existing {
		fmt.Fprintf(w, " - %s\n", t)
	}
	if opts.DryRun {
		fmt.Fprintln(w, "dry-run enabled; no changes will be made. Use --dry-run=false --yes to execute.")
		return nil
	}
	if !opts.Yes {
		fmt.Fprintln(w, "Destructive operation. Pass --yes to confirm execution. Aborting.")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := truncate(gdb.WithContext(ctx), existing, opts.SQLite); err != nil {
		return fmt.Errorf("truncate failed: %w", err)
	}
	log.Println("Truncate completed.")

	if opts.Reseed {
		if err := store.Seed(gdb, opts.AdminPassword); err != nil {
			return fmt.Errorf("reseed failed: %w", err)
		}
		log.Println("Reseeded roles and admin.")
	}
	return nil
}

// truncate empties tables. Names were validated by TableNames.
func truncate(gdb *gorm.DB, tables []string, sqlite bool) error {
	if !sqlite {
		quoted := make([]string, 0, len(tables))
		for _, t := range tables {
			quoted = append(quoted, fmt.Sprintf("\"%s\"", t))
		}
		stmt := fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", strings.Join(quoted, ", "))
		log.Printf("Executing: %s", stmt)
		return gdb.Exec(stmt).Error
	}
	return gdb.Transaction(func(tx *gorm.DB) error {
		for _, t := range tables {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM \"%s\"", t)).Error; err != nil {
				return err
			}
		}
		if tx.Migrator().HasTable("sqlite_sequence") {
			names := make([]any, len(tables))
			for i, t := range tables {
				names[i] = t
			}
			return tx.Exec("DELETE FROM sqlite_sequence WHERE name IN ?", names).Error
		}
		return nil
	})
}
