package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"medgame/internal/apiclient"
	"medgame/internal/config"
	"medgame/internal/content"
	"medgame/internal/database"
	"medgame/internal/engine"
	"medgame/internal/progress"
	"medgame/internal/repository"
	"medgame/internal/tui"
)

func main() {
	unlockAll := flag.Bool("unlock-all", false, "Unlock every level and exit")
	reset := flag.Bool("reset", false, "Erase saved progression and exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "MedGame terminal client\n\n")
		fmt.Fprintf(os.Stderr, "Usage: medgame [flags]\n\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment: MEDGAME_SERVER, SAVE_BACKEND (file|sql), SAVE_DIR, PROFILE\n")
	}
	flag.Parse()

	cfg := config.Load()

	catalog, err := content.Load()
	if err != nil {
		log.Fatalf("Failed to load content tables: %v", err)
	}

	store, closeStore, err := openProgress(cfg, catalog.MaxLevel())
	if err != nil {
		log.Fatalf("Failed to open save: %v", err)
	}
	defer closeStore()

	switch {
	case *reset:
		if err := store.Reset(); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		fmt.Println("Progression effacée.")
		return
	case *unlockAll:
		if err := store.UnlockAllLevels(); err != nil {
			log.Fatalf("Unlock failed: %v", err)
		}
		fmt.Println("Tous les niveaux sont débloqués.")
		return
	}

	// The alt screen owns stdout, so logs go to a file next to the save
	logFile, err := tea.LogToFile(filepath.Join(cfg.SaveDir, "medgame.log"), "medgame")
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(cfg.ServerURL)
	healthCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if h, err := client.Health(healthCtx); err != nil {
		log.Printf("Server %s unreachable: %v", cfg.ServerURL, err)
	} else {
		log.Printf("Connected to %s (provider: %s)", cfg.ServerURL, h.Provider)
	}
	cancel()

	eng := engine.New(catalog, client, store)
	defer eng.Close()

	if err := tui.Run(ctx, eng, catalog, store); err != nil {
		log.Fatalf("Terminal UI failed: %v", err)
	}
}

// openProgress builds the save store selected by SAVE_BACKEND
func openProgress(cfg *config.Config, maxLevel int) (*progress.Store, func(), error) {
	if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create save directory: %w", err)
	}

	switch cfg.SaveBackend {
	case "file":
		backend, err := progress.NewFileBackend(cfg.SaveDir)
		if err != nil {
			return nil, nil, err
		}
		return progress.NewStore(backend, maxLevel), func() {}, nil
	case "sql":
		db, err := database.InitializeWithConfig(cfg)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewSaveRepository(db, cfg.Profile)
		return progress.NewStore(progress.NewRepositoryBackend(repo), maxLevel), func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown save backend %q (use file or sql)", cfg.SaveBackend)
}
