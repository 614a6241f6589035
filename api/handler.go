package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/expenselens/invoice-extract-service/internal/auth"
	"github.com/expenselens/invoice-extract-service/internal/db"
	"github.com/expenselens/invoice-extract-service/internal/models"
	"github.com/expenselens/invoice-extract-service/internal/pipeline"
	"github.com/expenselens/invoice-extract-service/internal/storage"
	"github.com/expenselens/invoice-extract-service/internal/textract"
)

const (
	MaxUploadSize = 25 * 1024 * 1024 // 25MB, multi-page PDFs included
	Version       = "1.2.0"
)

// Handler handles HTTP requests for invoice extraction
type Handler struct {
	config  *models.Config
	engine  *pipeline.Engine
	backend *textract.Client
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, engine *pipeline.Engine, backend *textract.Client) *Handler {
	return &Handler{
		config:  config,
		engine:  engine,
		backend: backend,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Main endpoints
	router.HandleFunc("/api/extract", h.ExtractInvoice).Methods("POST")
	router.HandleFunc("/api/invoices", h.GetInvoices).Methods("GET")

	// Invoice records
	router.HandleFunc("/api/invoice/{id}", h.GetInvoice).Methods("GET")
	router.HandleFunc("/api/invoice/{id}", h.DeleteInvoice).Methods("DELETE")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp string        `json:"timestamp"`
	Uptime    string        `json:"uptime"`
	Memory    MemoryStats   `json:"memory"`
	Backend   ServiceStatus `json:"backend"`
	Database  ServiceStatus `json:"database"`
	Storage   ServiceStatus `json:"storage"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	backendStatus := h.checkBackend()
	databaseStatus := h.checkDatabase()
	storageStatus := h.checkStorage()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Backend:  backendStatus,
		Database: databaseStatus,
		Storage:  storageStatus,
	}

	// Extraction cannot run without the backend and the staging bucket
	if !backendStatus.Available || !storageStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func (h *Handler) checkBackend() ServiceStatus {
	if h.backend == nil {
		return ServiceStatus{
			Available: false,
			Error:     "expense analysis backend not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "AWS Textract",
	}
}

func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL",
	}
}

func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}
	return ServiceStatus{
		Available: true,
		Version:   "S3-compatible object storage",
	}
}

// ExtractInvoice uploads a document, runs the expense analysis backend and
// the normalization pipeline, and returns the normalized invoice.
func (h *Handler) ExtractInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	started := time.Now()

	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized: "+err.Error())
		return
	}

	if h.backend == nil || storage.Client == nil {
		h.sendError(w, http.StatusServiceUnavailable, "extraction backend not available")
		return
	}

	// Parse multipart form
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "No file provided (use 'file' field)")
		return
	}
	defer file.Close()

	if !textract.AllowedExtension(header.Filename) {
		h.sendError(w, http.StatusBadRequest, "Unsupported file type (PDF, PNG, JPG and TIFF accepted)")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = storage.ContentTypeFor(header.Filename)
	}

	sourceKey, err := storage.UploadSourceFile(ctx, header.Filename, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to stage document: %v", err))
		return
	}

	pages, err := h.backend.AnalyzeExpenseAuto(ctx, storage.BucketName, sourceKey)
	if err != nil {
		h.sendError(w, http.StatusBadGateway, fmt.Sprintf("expense analysis failed: %v", err))
		return
	}

	result, err := h.engine.Process(pages)
	if err != nil {
		if errors.Is(err, models.ErrNoExtractableData) {
			h.sendError(w, http.StatusUnprocessableEntity, "no extractable data in document")
			return
		}
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("extraction failed: %v", err))
		return
	}

	// Secondary key-value pass only when header fields are still missing
	if missing := result.MissingHeaderFields(); len(missing) > 0 {
		kvs, err := h.backend.FetchFormsKeyValues(ctx, storage.BucketName, sourceKey)
		if err != nil {
			fmt.Printf("Warning: forms fallback failed: %v\n", err)
		} else {
			h.engine.ApplyFallback(result, kvs)
		}
	}

	h.saveArtifacts(ctx, sourceKey, pages, result)

	record := h.saveRecord(ctx, claims, sourceKey, result.Invoice)

	responseData := map[string]interface{}{
		"success":       true,
		"invoice":       result.Invoice,
		"source_key":    sourceKey,
		"pages":         len(pages),
		"totalDuration": time.Since(started).Seconds(),
		"saved_to_db":   record != nil,
	}
	if record != nil {
		responseData["id"] = record.ID
		responseData["created_at"] = record.CreatedAt
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(responseData)
}

// saveArtifacts persists raw backend pages, the merged primary document and
// the clean normalized invoice next to the source file. Failures are logged
// and ignored; artifacts are a convenience, not part of the contract.
func (h *Handler) saveArtifacts(ctx context.Context, sourceKey string, pages []models.PageExtraction, result *pipeline.Result) {
	artifacts := map[string]any{
		"raw":    pages,
		"parsed": result.Primary,
		"clean":  result.Invoice,
	}
	for stage, v := range artifacts {
		if err := storage.SaveJSONArtifact(ctx, storage.ArtifactKey(sourceKey, stage), v); err != nil {
			fmt.Printf("Warning: failed to save %s artifact: %v\n", stage, err)
		}
	}
}

func (h *Handler) saveRecord(ctx context.Context, claims *auth.Claims, sourceKey string, inv models.NormalizedInvoice) *db.InvoiceRecord {
	if db.Pool == nil {
		return nil
	}

	itemsJSON, err := json.Marshal(inv.LineItems)
	if err != nil {
		itemsJSON = []byte("[]")
	}
	warningsJSON, err := json.Marshal(inv.Warnings)
	if err != nil || inv.Warnings == nil {
		warningsJSON = []byte("[]")
	}

	rec := &db.InvoiceRecord{
		SourceKey:     sourceKey,
		InvoiceNumber: inv.InvoiceNumber,
		InvoiceDate:   inv.InvoiceDate,
		Total:         inv.Total,
		Terms:         inv.Terms,
		Currency:      inv.Currency,
		LineItemsJSON: string(itemsJSON),
		WarningsJSON:  string(warningsJSON),
	}
	if id, err := uuid.Parse(claims.UserID); err == nil {
		rec.UploadedBy = id
	}

	if err := db.SaveInvoice(ctx, rec); err != nil {
		fmt.Printf("Warning: failed to save invoice record: %v\n", err)
		return nil
	}
	return rec
}

// GetInvoices returns recent extraction records
func (h *Handler) GetInvoices(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()

	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	records, err := db.GetInvoices(ctx, 100)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get invoices: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"invoices": records,
		"count":    len(records),
	})
}

// GetInvoice returns a single extraction record
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	vars := mux.Vars(r)
	record, err := db.GetInvoiceByID(ctx, vars["id"])
	if err != nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("invoice not found: %v", err))
		return
	}

	response := map[string]interface{}{
		"success": true,
		"invoice": record,
	}

	// Presigned URL so callers can fetch the original document
	if record.SourceKey != "" && storage.Client != nil {
		if url, err := storage.GetPresignedURL(ctx, record.SourceKey); err == nil {
			response["source_url"] = url
		}
	}

	json.NewEncoder(w).Encode(response)
}

// DeleteInvoice removes an extraction record and its staged document
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	if _, err := auth.GetClaimsFromContext(ctx); err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	vars := mux.Vars(r)
	invoiceID := vars["id"]

	if storage.Client != nil {
		if record, err := db.GetInvoiceByID(ctx, invoiceID); err == nil && record.SourceKey != "" {
			_ = storage.DeleteObject(ctx, record.SourceKey)
		}
	}

	if err := db.DeleteInvoice(ctx, invoiceID); err != nil {
		h.sendError(w, http.StatusInternalServerError, "failed to delete invoice")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "invoice deleted",
	})
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
