package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"pdfrag/internal/app"
	"pdfrag/internal/client"
	"pdfrag/internal/config"
	"pdfrag/internal/domain"
	"pdfrag/internal/logger"
	"pdfrag/internal/tui"
)

func main() {
	var cfgPath, apiURL, model string
	var k int
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ./config.yaml or ~/.config/pdfrag/config.yaml if not provided)")
	flag.StringVar(&apiURL, "api", "", "Base URL of a running rag-server; when set, no local pipeline is built")
	flag.StringVar(&model, "model", "", "Model to answer with (default: the configured one)")
	flag.IntVar(&k, "k", 0, "Chunks to retrieve per question (default: server.default_k)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, cfgPath, err = config.LoadDefault()
	} else {
		if err = config.LoadDotEnv(".env"); err == nil {
			cfg, err = config.Load(cfgPath)
		}
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if k <= 0 {
		k = cfg.Server.DefaultK
	}
	timeout := time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second

	var svc domain.RAGService
	if apiURL != "" {
		svc = client.New(apiURL, timeout)
	} else {
		// the terminal belongs to the TUI; logs go to a file next to the config
		logPath := filepath.Join(filepath.Dir(cfgPath), "pdfrag.log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("open log file: %v", err)
		}
		defer f.Close()
		pipeline, err := app.Build(context.Background(), cfg, logger.New(cfg.Log, f), nil)
		if err != nil {
			log.Fatalf("failed to build pipeline: %v", err)
		}
		defer pipeline.Close()
		svc = pipeline
	}

	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("read %s: %v", path, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		res, err := svc.Ingest(ctx, data, filepath.Base(path))
		cancel()
		if err != nil {
			log.Fatalf("ingest %s: %v", path, err)
		}
		fmt.Printf("Ingested %d chunks from %s\n", res.Chunks, path)
	}

	m := tui.New(svc, tui.Options{K: k, Model: model, Timeout: timeout})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
