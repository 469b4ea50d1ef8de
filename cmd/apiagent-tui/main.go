package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"apiagent/internal/app"
	"apiagent/internal/config"
	"apiagent/internal/logging"
	"apiagent/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/apiagent/config.yaml if not provided)")
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) != 1 {
		fmt.Println("Usage: apiagent-tui [--config=config.yaml] api-docs.pdf")
		os.Exit(1)
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// the terminal belongs to bubbletea, so console logging is dropped
	cfg.Logging.Output = []string{"file"}
	logger := logging.New(cfg.Logging)

	ctx := context.Background()
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}
	defer application.Close()

	data, err := os.ReadFile(inputs[0])
	if err != nil {
		log.Fatalf("read %s: %v", inputs[0], err)
	}
	res, err := application.Agent.Ingest(ctx, data, filepath.Base(inputs[0]))
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	m := tui.New(application.Agent, res)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
