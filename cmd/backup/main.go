package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"medgame/internal/config"
	"medgame/internal/database"
	"medgame/internal/repository"
	"medgame/internal/service"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)

	exportOutput := exportCmd.String("output", "", "Output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Clear existing data before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	// Migrations run as part of initialization
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	backupService := service.NewBackupService(db)

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		handleExport(backupService, *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		handleImport(backupService, *importInput, *importClear)

	case "stats":
		statsCmd.Parse(os.Args[2:])
		handleStats(repository.NewResultRepository(db))

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExport(backupService *service.BackupService, outputPath string) {
	if outputPath == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputPath = fmt.Sprintf("backup_%s.json", timestamp)
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create output directory: %v", err)
		}
	}

	log.Printf("Exporting database to: %s", outputPath)
	if err := backupService.Export(outputPath); err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	fileInfo, err := os.Stat(outputPath)
	if err == nil {
		log.Printf("Export complete! File size: %.2f KB", float64(fileInfo.Size())/1024)
	}
}

func handleImport(backupService *service.BackupService, inputPath string, clearData bool) {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		log.Fatalf("Input file does not exist: %s", inputPath)
	}

	if clearData {
		fmt.Print("WARNING: This will delete all saves and results. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Import cancelled")
			return
		}

		log.Println("Clearing existing data...")
		if err := backupService.Clear(); err != nil {
			log.Fatalf("Failed to clear database: %v", err)
		}
	}

	log.Printf("Importing database from: %s", inputPath)
	if _, err := backupService.Import(inputPath); err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.Println("Import complete!")
}

func handleStats(results *repository.ResultRepository) {
	stats, err := results.StatsByLevel()
	if err != nil {
		log.Fatalf("Failed to read results: %v", err)
	}
	if len(stats) == 0 {
		fmt.Println("No consultations recorded yet.")
		return
	}

	fmt.Printf("%-6s %-9s %-8s %s\n", "Level", "Attempts", "Correct", "Accuracy")
	for _, s := range stats {
		fmt.Printf("%-6d %-9d %-8d %.0f%%\n", s.LevelID, s.Attempts, s.Correct, s.Accuracy())
	}

	recent, err := results.ListRecent(5)
	if err != nil {
		log.Fatalf("Failed to read recent results: %v", err)
	}
	fmt.Println()
	fmt.Println("Recent consultations:")
	for _, r := range recent {
		mark := "✗"
		if r.Correct {
			mark = "✓"
		}
		fmt.Printf("  %s level %d  %s -> %s  (%d turns, %s)\n",
			mark, r.LevelID, r.Condition, r.Guess, r.Turns, r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func printUsage() {
	fmt.Println("MedGame Database Backup Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  backup export [options]    Export saves and results to a JSON file")
	fmt.Println("  backup import [options]    Import saves and results from a JSON file")
	fmt.Println("  backup stats               Show per-level diagnosis statistics")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: backup_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Clear existing data before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  DATABASE_TYPE    Database type: sqlite, postgres, or mysql (default: sqlite)")
	fmt.Println("  DB_PATH          SQLite database path (default: ./medgame.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
}
