package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/sssm0ulder/astrobot-sub000/internal/database"
	"github.com/sssm0ulder/astrobot-sub000/internal/interpretation"
	"github.com/sssm0ulder/astrobot-sub000/pkg/config"
)

// interpimport loads interpretation texts from CSV into Postgres. Run it
// once after provisioning, and again whenever the editors ship new texts.
func main() {
	aspectPath := flag.String("aspects", "", "CSV file with aspect interpretations")
	moonSignPath := flag.String("moonsigns", "", "CSV file with moon sign interpretations")
	flag.Parse()

	if *aspectPath == "" && *moonSignPath == "" {
		log.Fatal("at least one of -aspects or -moonsigns is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations("migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	if *aspectPath != "" {
		if err := importAspects(db, *aspectPath); err != nil {
			log.Fatalf("Failed to import aspect interpretations: %v", err)
		}
	}

	if *moonSignPath != "" {
		if err := importMoonSigns(db, *moonSignPath); err != nil {
			log.Fatalf("Failed to import moon sign interpretations: %v", err)
		}
	}
}

func importAspects(db *database.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, skipped, err := interpretation.ParseAspectCSV(f)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := db.UpsertInterpretation(row); err != nil {
			return fmt.Errorf("upserting %s/%s/%d: %w",
				row.TransitPlanet, row.NatalPlanet, row.Aspect, err)
		}
	}

	fmt.Printf("Imported %d aspect interpretations (%d rows skipped)\n", len(rows), skipped)
	return nil
}

func importMoonSigns(db *database.DB, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, skipped, err := interpretation.ParseMoonSignCSV(f)
	if err != nil {
		return err
	}

	for _, row := range rows {
		if err := db.UpsertMoonSignInterpretation(row); err != nil {
			return fmt.Errorf("upserting sign %s: %w", row.Sign, err)
		}
	}

	fmt.Printf("Imported %d moon sign interpretations (%d rows skipped)\n", len(rows), skipped)
	return nil
}
