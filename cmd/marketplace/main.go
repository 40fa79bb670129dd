// Command marketplace runs the Marketplace registry (spec.md §4.9): a
// small JSON-file-backed directory of registered Seller agents.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/cors"

	"github.com/xy-market/seller-node/internal/config"
	"github.com/xy-market/seller-node/internal/logging"
	"github.com/xy-market/seller-node/internal/marketplace"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "marketplace.yaml"
	}
	cfg, err := config.LoadMarketplace(configPath)
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.Service.LogLevel)
	slog.SetDefault(logger)

	repo, err := marketplace.NewRepository(cfg.DataPath)
	if err != nil {
		logger.Error("failed to open agent repository", "err", err)
		os.Exit(1)
	}
	svc := marketplace.NewService(repo)
	h := marketplace.NewHandler(svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", h.Register)
	mux.HandleFunc("GET /register/new_entries", h.NewEntries)
	mux.HandleFunc("GET /health", h.Health)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(mux)

	addr := cfg.Service.Host + ":" + strconv.Itoa(effectivePort(cfg.Service.Port))
	logger.Info("marketplace registry listening", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

func effectivePort(port int) int {
	if port <= 0 {
		return 8081
	}
	return port
}
