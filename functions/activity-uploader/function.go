package activityuploader

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/google/uuid"

	shared "github.com/stridelog/server/pkg"
	"github.com/stridelog/server/pkg/bootstrap"
	"github.com/stridelog/server/pkg/domain/fit_parser"
	"github.com/stridelog/server/pkg/infrastructure/sentry"
	"github.com/stridelog/server/pkg/types"
	"github.com/stridelog/server/pkg/upload"
	"github.com/stridelog/server/pkg/uploaderr"
)

var (
	svc     *bootstrap.Service
	svcOnce sync.Once
	svcErr  error
)

func init() {
	functions.HTTP("UploadActivity", UploadActivity)
}

func initService(ctx context.Context) (*bootstrap.Service, error) {
	if svc != nil {
		return svc, nil
	}
	svcOnce.Do(func() {
		baseSvc, err := bootstrap.NewService(ctx)
		if err != nil {
			slog.Error("Failed to initialize service", "error", err)
			svcErr = err
			return
		}
		if err := sentry.Init(sentry.Config{
			DSN:         os.Getenv("SENTRY_DSN"),
			Environment: os.Getenv("ENVIRONMENT"),
			ServerName:  "activity-uploader",
		}, slog.Default()); err != nil {
			slog.Warn("Sentry init failed", "error", err)
		}
		svc = baseSvc
	})
	return svc, svcErr
}

// UploadActivityRequest is the expected request body
type UploadActivityRequest struct {
	// Base64-encoded FIT file data
	FitFileBase64 string `json:"fitFileBase64"`
	FileName      string `json:"fileName"`
	UserID        string `json:"userId"`
	// Optional behavior switches
	AllowDuplicates bool `json:"allowDuplicates,omitempty"`
	SkipFileStorage bool `json:"skipFileStorage,omitempty"`
}

// UploadActivityResponse wraps the pipeline result envelope with the
// server-assigned upload ID.
type UploadActivityResponse struct {
	UploadID string `json:"uploadId,omitempty"`
	*types.UploadResult
}

// UploadActivity is the HTTP entry point for workout file uploads
func UploadActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	w.Header().Set("Content-Type", "application/json")

	// Only accept POST
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Reject malformed requests before spinning up any backend clients.
	var req UploadActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.FitFileBase64 == "" {
		writeError(w, http.StatusBadRequest, "fitFileBase64 is required")
		return
	}

	fitData, err := base64.StdEncoding.DecodeString(req.FitFileBase64)
	if err != nil {
		slog.Error("Failed to decode base64", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid base64 data")
		return
	}

	svc, err := initService(ctx)
	if err != nil {
		slog.Error("Service init failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	uploadID := "upload_" + uuid.NewString()
	logger := slog.Default().With("component", "activity-uploader", "upload_id", uploadID)

	logger.Info("Processing workout file upload",
		"user_id", req.UserID,
		"file", req.FileName,
		"size_bytes", len(fitData),
	)

	pipeline := upload.NewPipeline(fit_parser.Decoder{}, svc.DB, svc.Store, svc.Config.UploadBucket, logger)
	result := pipeline.Upload(ctx, fitData, req.FileName, req.UserID, upload.Options{
		OnProgress:      upload.NewPublishingObserver(svc.Pub, shared.TopicUploadProgress, logger),
		AllowDuplicates: req.AllowDuplicates,
		SkipFileStorage: req.SkipFileStorage,
	})

	w.WriteHeader(statusFor(result))
	json.NewEncoder(w).Encode(UploadActivityResponse{
		UploadID:     uploadID,
		UploadResult: result,
	})
}

// statusFor maps the pipeline's failure classes onto HTTP statuses. Anything
// not attributable to the caller is reported to Sentry.
func statusFor(result *types.UploadResult) int {
	if result.Success {
		return http.StatusOK
	}

	var (
		validation   *uploaderr.ValidationError
		invalidInput *uploaderr.InvalidInputError
		conflict     *uploaderr.ConflictError
	)
	switch {
	case errors.As(result.Cause, &conflict):
		return http.StatusConflict
	case errors.As(result.Cause, &validation), errors.As(result.Cause, &invalidInput):
		return http.StatusBadRequest
	default:
		sentry.CaptureException(result.Cause, map[string]interface{}{
			"component": "activity-uploader",
		}, slog.Default())
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(UploadActivityResponse{
		UploadResult: &types.UploadResult{Success: false, Error: msg},
	})
}
