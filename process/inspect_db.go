package main

import (
	"database/sql"
	"fmt"

	"github.com/dustin/go-humanize"
	_ "github.com/jackc/pgx/v5/stdlib"

	"crucible/pkg/store"
)

// RunInspect connects to Postgres using dsn and prints per-season record
// counts, how many screenshots failed OCR, and how many rows were sent.
func RunInspect(dsn string) error {
	if dsn == "" {
		return fmt.Errorf("dsn is required")
	}
	if store.IsSQLite(dsn) {
		return fmt.Errorf("inspect reads Postgres directly; use process/cmd_report for sqlite")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT
		  COALESCE(NULLIF(r.season, ''), '(none)') AS season,
		  COUNT(*) AS records,
		  COUNT(*) FILTER (WHERE r.label = 'Punchup') AS punchups,
		  COUNT(*) FILTER (WHERE s.failed) AS failed,
		  COUNT(*) FILTER (WHERE r.sent_at IS NOT NULL) AS sent,
		  COALESCE(SUM(r.victory_points), 0) AS vp
		FROM match_records r
		JOIN screenshots s ON s.id = r.screenshot_id
		GROUP BY 1
		ORDER BY 1;
	`)
	if err != nil {
		return fmt.Errorf("query seasons: %w", err)
	}
	defer rows.Close()

	fmt.Println("Records per season:")
	for rows.Next() {
		var season string
		var records, punchups, failed, sent, vp int64
		if err := rows.Scan(&season, &records, &punchups, &failed, &sent, &vp); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		fmt.Printf("- %s: records=%d punchups=%d failed=%d sent=%d vp=%s\n", season, records, punchups, failed, sent, humanize.Comma(vp))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("rows err: %w", err)
	}
	return nil
}
