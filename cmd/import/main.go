package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/stockwatch/backend/internal/config"
	"github.com/stockwatch/backend/internal/db"
	"github.com/stockwatch/backend/internal/services"
)

func main() {
	csvPath := flag.String("file", "master.csv", "path to the company master CSV")
	batchSize := flag.Int("batch", 0, "rows per insert batch (0 uses the configured default)")
	flag.Parse()

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if *batchSize > 0 {
		cfg.Import.BatchSize = *batchSize
	}

	database, err := db.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	file, err := os.Open(*csvPath)
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	companyService := services.NewCompanyService(database, cfg.Import.BatchSize)
	processed, skipped, err := companyService.ImportCompanies(file)
	if err != nil {
		log.Fatalf("Import failed after %d rows: %v", processed, err)
	}

	total, err := companyService.CountCompanies()
	if err != nil {
		log.Fatalf("Failed to count companies: %v", err)
	}

	log.Printf("Imported %d rows (%d skipped), %d companies in catalog", processed, skipped, total)
}
