// Command extract processes local invoice files in one shot: upload, run
// the expense analysis backend, normalize, print a console report and save
// the JSON artifacts. Configuration comes from the environment (a .env file
// is honored).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/expenselens/invoice-extract-service/internal/models"
	"github.com/expenselens/invoice-extract-service/internal/pipeline"
	"github.com/expenselens/invoice-extract-service/internal/render"
	"github.com/expenselens/invoice-extract-service/internal/storage"
	"github.com/expenselens/invoice-extract-service/internal/textract"
)

type fileResult struct {
	File      string `json:"file"`
	Status    string `json:"status"`
	SourceKey string `json:"s3Key,omitempty"`
	CleanKey  string `json:"cleanKey,omitempty"`
	Message   string `json:"message,omitempty"`
}

func main() {
	_ = godotenv.Load()

	cfg, err := loadEnvConfig()
	if err != nil {
		log.Fatalf("[CONFIG ERROR] %v", err)
	}

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: extract <invoice.pdf> [<invoice2.png> ...]")
		os.Exit(1)
	}

	ctx := context.Background()

	if err := storage.Init(cfg.Backend); err != nil {
		log.Fatalf("Failed to initialize object storage: %v", err)
	}
	backend, err := textract.New(ctx, cfg.Backend)
	if err != nil {
		log.Fatalf("Failed to initialize expense analysis backend: %v", err)
	}
	engine := pipeline.New(cfg.Extraction, slog.Default())

	var outputs []fileResult
	for _, path := range os.Args[1:] {
		fmt.Printf("\n=== Processing: %s ===\n", path)
		out, err := processFile(ctx, path, backend, engine)
		if err != nil {
			out = fileResult{File: path, Status: "ERROR", Message: err.Error()}
			fmt.Printf("[ERROR] %v\n", err)
		}
		outputs = append(outputs, out)
	}

	fmt.Println("\n=== SUMMARY ===")
	summary, _ := json.MarshalIndent(outputs, "", "  ")
	fmt.Println(string(summary))
}

func processFile(ctx context.Context, path string, backend *textract.Client, engine *pipeline.Engine) (fileResult, error) {
	if !textract.AllowedExtension(path) {
		return fileResult{}, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return fileResult{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fileResult{}, err
	}

	sourceKey, err := storage.UploadSourceFile(ctx, path, f, info.Size(), storage.ContentTypeFor(path))
	if err != nil {
		return fileResult{}, err
	}
	fmt.Printf("Uploaded %s -> s3://%s/%s\n", filepath.Base(path), storage.BucketName, sourceKey)

	pages, err := backend.AnalyzeExpenseAuto(ctx, storage.BucketName, sourceKey)
	if err != nil {
		return fileResult{}, err
	}

	result, err := engine.Process(pages)
	if err != nil {
		return fileResult{}, err
	}

	if missing := result.MissingHeaderFields(); len(missing) > 0 {
		kvs, err := backend.FetchFormsKeyValues(ctx, storage.BucketName, sourceKey)
		if err != nil {
			log.Printf("Warning: forms fallback failed: %v", err)
		} else {
			engine.ApplyFallback(result, kvs)
		}
	}

	fmt.Print(render.InvoiceReport(result.Invoice))

	if err := storage.SaveJSONArtifact(ctx, storage.ArtifactKey(sourceKey, "raw"), pages); err != nil {
		log.Printf("Warning: failed to save raw artifact: %v", err)
	}
	if err := storage.SaveJSONArtifact(ctx, storage.ArtifactKey(sourceKey, "parsed"), result.Primary); err != nil {
		log.Printf("Warning: failed to save parsed artifact: %v", err)
	}
	cleanKey := storage.ArtifactKey(sourceKey, "clean")
	if err := storage.SaveJSONArtifact(ctx, cleanKey, result.Invoice); err != nil {
		log.Printf("Warning: failed to save clean artifact: %v", err)
	}

	return fileResult{
		File:      path,
		Status:    "SUCCEEDED",
		SourceKey: sourceKey,
		CleanKey:  cleanKey,
	}, nil
}

func loadEnvConfig() (*models.Config, error) {
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is not set")
	}

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}

	prefix := os.Getenv("S3_PREFIX")
	if prefix == "" {
		prefix = "invoices/"
	}

	poll := 4.0
	if v := os.Getenv("POLL_SECS"); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid POLL_SECS: %w", err)
		}
		poll = parsed
	}

	extraction := models.DefaultExtractionConfig()
	if currency := os.Getenv("DEFAULT_CURRENCY"); currency != "" {
		extraction.DefaultCurrency = currency
	}
	if order := os.Getenv("DATE_ORDER"); order != "" {
		extraction.DateOrder = order
	}

	return &models.Config{
		Backend: models.BackendConfig{
			Region:      region,
			Bucket:      bucket,
			Prefix:      prefix,
			PollSeconds: poll,
		},
		Extraction: extraction,
	}, nil
}
