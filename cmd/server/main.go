package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/expenselens/invoice-extract-service/api"
	"github.com/expenselens/invoice-extract-service/internal/auth"
	"github.com/expenselens/invoice-extract-service/internal/db"
	"github.com/expenselens/invoice-extract-service/internal/models"
	"github.com/expenselens/invoice-extract-service/internal/pipeline"
	"github.com/expenselens/invoice-extract-service/internal/storage"
	"github.com/expenselens/invoice-extract-service/internal/textract"
)

func main() {
	// Load configuration
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Printf("Warning: Database not available: %v", err)
		log.Println("Running without persistence")
	} else {
		defer db.Close()
	}

	// Initialize object storage
	if err := storage.Init(config.Backend); err != nil {
		log.Printf("Warning: object storage not available: %v", err)
		log.Println("Document extraction endpoint will be disabled")
	} else {
		log.Println("Object storage initialized")
	}

	// Initialize expense analysis backend
	var backend *textract.Client
	if backend, err = textract.New(context.Background(), config.Backend); err != nil {
		log.Printf("Warning: expense analysis backend not available: %v", err)
		backend = nil
	} else {
		log.Println("Expense analysis backend initialized")
	}

	engine := pipeline.New(config.Extraction, slog.Default())

	// Create API handler
	handler := api.NewHandler(config, engine, backend)
	router := handler.SetupRoutes()

	// Add login endpoint
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health and /api/login)
	protectedRouter := auth.JWTMiddleware(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Invoice Extract Service v%s on %s", api.Version, addr)
	log.Printf("Backend region: %s, bucket: %s", config.Backend.Region, config.Backend.Bucket)
	log.Printf("Database: %v", db.Pool != nil)
	log.Printf("Storage: %v", storage.Client != nil)
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login            - Authenticate", addr)
	log.Printf("  POST http://%s/api/extract          - Extract invoice (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/invoices         - List extractions (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/invoice/{id}     - Get single extraction (requires JWT)", addr)
	log.Printf("  DELETE http://%s/api/invoice/{id}   - Delete extraction (requires JWT)", addr)
	log.Printf("  GET  http://%s/health               - Health check", addr)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if region := os.Getenv("AWS_REGION"); region != "" {
		config.Backend.Region = region
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		config.Backend.Bucket = bucket
	}
	if prefix := os.Getenv("S3_PREFIX"); prefix != "" {
		config.Backend.Prefix = prefix
	}
	if poll := os.Getenv("POLL_SECS"); poll != "" {
		if v, err := strconv.ParseFloat(poll, 64); err == nil {
			config.Backend.PollSeconds = v
		}
	}
	if currency := os.Getenv("DEFAULT_CURRENCY"); currency != "" {
		config.Extraction.DefaultCurrency = currency
	}
	if order := os.Getenv("DATE_ORDER"); order != "" {
		config.Extraction.DateOrder = order
	}

	defaults := models.DefaultExtractionConfig()
	if config.Extraction.DefaultCurrency == "" {
		config.Extraction.DefaultCurrency = defaults.DefaultCurrency
	}
	if config.Extraction.DateOrder == "" {
		config.Extraction.DateOrder = defaults.DateOrder
	}

	return &config, nil
}
