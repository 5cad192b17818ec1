package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jwebster45206/novel-engine/internal/config"
	"github.com/jwebster45206/novel-engine/internal/logger"
)

type ConsoleConfig struct {
	APIBaseURL string
	Timeout    time.Duration
	LogFile    string
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func main() {
	cfg := &ConsoleConfig{
		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8080"),
		Timeout:    30 * time.Second,
		LogFile:    getEnv("CONSOLE_LOG_FILE", "console.log"),
	}

	appCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logFile.Close()
	}()
	log := logger.SetupWriter(appCfg, logFile)

	client := &http.Client{
		Timeout: cfg.Timeout,
	}
	api := &apiClient{client: client, baseURL: cfg.APIBaseURL}

	if !testConnection(client, cfg.APIBaseURL) {
		fmt.Fprintf(os.Stderr, "Could not connect to API. Please ensure the API is running.\nTry: docker-compose up -d\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	createCtx, createCancel := context.WithTimeout(ctx, cfg.Timeout)
	view, err := api.createSession(createCtx, CreateSessionRequest{
		Profile:    appCfg.SaveProfile,
		StartScene: appCfg.StartScene,
	})
	createCancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	log.Info("Session started", "session_id", view.SessionID)

	events := make(chan SSEEvent, 16)
	go func() {
		defer close(events)
		if err := api.listenToSSE(ctx, view.SessionID, events); err != nil && ctx.Err() == nil {
			log.Warn("Event stream unavailable, falling back to polling", "error", err)
		}
	}()

	p := tea.NewProgram(NewConsoleUI(cfg, api, view, events),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	cancel()
	endCtx, endCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer endCancel()
	if err := api.endSession(endCtx, view.SessionID); err != nil {
		log.Warn("Failed to end session", "session_id", view.SessionID, "error", err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
