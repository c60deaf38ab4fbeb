// Package vision implements ocr.Engine with the Google Cloud Vision API.
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Images are sent inline with DOCUMENT_TEXT_DETECTION, which is tuned for
// dense printed text such as receipts and invoices. The Tesseract language
// code used elsewhere in the pipeline is translated to a BCP-47 hint.
package vision

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/disintegration/imaging"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"ocrtools/internal/ocr"
)

// MaxImageBytes is the inline request limit of the Vision API (20MB).
const MaxImageBytes = 20 * 1024 * 1024

// annotator is the subset of the Vision client used by the engine.
type annotator interface {
	BatchAnnotateImages(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest, opts ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error)
	Close() error
}

// Engine implements ocr.Engine using Google Cloud Vision API.
type Engine struct {
	client annotator
}

// New creates a Vision engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func New(ctx context.Context) (*Engine, error) {
	const op = "NewVisionEngine"

	var client *visionapi.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = visionapi.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, ocr.WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = visionapi.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, ocr.WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = visionapi.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, ocr.WrapOCRError(op, ocr.ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &Engine{client: client}, nil
}

// newWithClient creates an engine around an explicit client (for testing).
func newWithClient(client annotator) *Engine {
	return &Engine{client: client}
}

// Name implements ocr.Engine.
func (e *Engine) Name() string {
	return "vision"
}

// Recognize implements ocr.Engine. Every call is an independent request.
func (e *Engine) Recognize(ctx context.Context, img image.Image, languageHint string) (string, error) {
	const op = "Recognize"

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", ocr.NewOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("encode image: %v", err))
	}
	if buf.Len() > MaxImageBytes {
		return "", ocr.NewOCRError(op, ocr.ErrOCRFailed, fmt.Sprintf("encoded image is %d bytes, limit is %d", buf.Len(), MaxImageBytes))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: buf.Bytes()},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: LanguageHints(languageHint),
				},
			},
		},
	}

	resp, err := e.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", ocr.WrapOCRError(op, fmt.Errorf("%w: Vision API call failed: %w", ocr.ErrOCRFailed, err), "")
	}
	if len(resp.GetResponses()) == 0 {
		return "", ocr.NewOCRError(op, ocr.ErrOCRFailed, "no response from Vision API")
	}

	imageResp := resp.GetResponses()[0]
	if apiErr := imageResp.GetError(); apiErr != nil {
		cause := ocr.ErrOCRFailed
		if strings.Contains(strings.ToLower(apiErr.GetMessage()), "language") {
			cause = ocr.ErrLanguageUnavailable
		}
		return "", ocr.NewOCRError(op, cause, fmt.Sprintf("Vision API error: %s", apiErr.GetMessage()))
	}

	if full := imageResp.GetFullTextAnnotation(); full != nil {
		return full.GetText(), nil
	}
	// An image without text has no annotation at all.
	return "", nil
}

// Close closes the underlying Vision client.
func (e *Engine) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

var languageCodes = map[string]string{
	"spa": "es",
	"eng": "en",
	"por": "pt",
	"fra": "fr",
	"deu": "de",
	"ita": "it",
	"cat": "ca",
	"nld": "nl",
}

// LanguageHints converts Tesseract language codes ("spa", "spa+eng") into
// Vision hints. Unknown codes are passed through unchanged.
func LanguageHints(languageHint string) []string {
	var hints []string
	for _, code := range strings.Split(languageHint, "+") {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if mapped, ok := languageCodes[code]; ok {
			code = mapped
		}
		hints = append(hints, code)
	}
	return hints
}
