package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"ocrtools/internal/config"
	"ocrtools/internal/ocr"
	"ocrtools/internal/ocr/tesseract"
	"ocrtools/internal/ocr/vision"
)

// createEngine builds the OCR engine named in the configuration. The returned
// close function releases client connections and is never nil.
func createEngine(ctx context.Context, name string, log zerolog.Logger) (ocr.Engine, func(), error) {
	noop := func() {}

	switch strings.ToLower(name) {
	case config.EngineTesseract:
		log.Debug().Msg("Using local Tesseract engine")
		return tesseract.New(), noop, nil

	case config.EngineVision:
		engine, err := vision.New(ctx)
		if err != nil {
			if errors.Is(err, ocr.ErrMissingCredentials) {
				log.Error().Err(err).Msg("Google Cloud credentials not configured")
				return nil, noop, fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
					"1. Export GOOGLE_APPLICATION_CREDENTIALS with path to service account JSON:\n" +
					"   export GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n\n" +
					"2. Export GOOGLE_CREDENTIALS with inline JSON\n\n" +
					"3. Use Application Default Credentials (if gcloud is configured):\n" +
					"   gcloud auth application-default login\n\n" +
					"Or switch to the local engine with engine = tesseract")
			}
			log.Error().Err(err).Msg("Failed to create Vision engine")
			return nil, noop, fmt.Errorf("failed to create OCR engine: %w", err)
		}
		log.Debug().Msg("Using Google Cloud Vision engine")
		return engine, func() {
			if err := engine.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Vision client")
			}
		}, nil

	default:
		return nil, noop, fmt.Errorf("unknown OCR engine %q (use %s or %s)", name, config.EngineTesseract, config.EngineVision)
	}
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error) string {
	errStr := err.Error()

	switch {
	case errors.Is(err, ocr.ErrContextCanceled):
		return "OCR processing was canceled or timed out"
	case errors.Is(err, ocr.ErrLanguageUnavailable):
		return "language data not installed: install the Tesseract traineddata for the configured lang (for example tesseract-ocr-spa)"
	case strings.Contains(errStr, "Unauthenticated") ||
		strings.Contains(errStr, "invalid_grant") ||
		strings.Contains(errStr, "transport: per-RPC creds failed"):
		return "Google Cloud authentication failed, check GOOGLE_APPLICATION_CREDENTIALS"
	case strings.Contains(errStr, "PERMISSION_DENIED"):
		return "permission denied, the service account needs the 'Cloud Vision API User' role"
	case strings.Contains(errStr, "QUOTA_EXCEEDED") ||
		strings.Contains(errStr, "quota"):
		return "Google Cloud Vision API quota exceeded"
	default:
		return errStr
	}
}
