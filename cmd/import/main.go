// Command import loads the yearly blocos CSV into events_base.
//
//	import -csv data/blocos_bh.csv -year 2026
//
// Re-running is safe: rows matching an existing title/start/location are
// updated under their original id instead of inserted again.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/blocosbh/bloco-agenda/internal/config"
	"github.com/blocosbh/bloco-agenda/internal/database"
	"github.com/blocosbh/bloco-agenda/internal/importer"
	"github.com/blocosbh/bloco-agenda/internal/repository"
)

func main() {
	csvPath := flag.String("csv", "data/blocos_bh.csv", "path to the blocos CSV")
	year := flag.Int("year", time.Now().Year(), "carnival year the listing belongs to")
	flag.Parse()

	cfg := config.LoadDB()
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := database.InitSchema(ctx, db); err != nil {
		log.Fatalf("init schema: %v", err)
	}

	report, err := importer.New(repository.NewEventRepo(db)).RunFile(ctx, *csvPath, *year)
	if err != nil {
		log.Fatalf("import failed: %v", err)
	}

	log.Printf("import finished: inserted=%d updated=%d ignored=%d", report.Inserted, report.Updated, report.Ignored)
}
