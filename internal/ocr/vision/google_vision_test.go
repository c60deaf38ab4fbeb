package vision

import (
	"context"
	"errors"
	"image"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/status"
	"ocrtools/internal/ocr"
)

type fakeAnnotator struct {
	resp   *visionpb.BatchAnnotateImagesResponse
	err    error
	last   *visionpb.BatchAnnotateImagesRequest
	closed bool
}

func (f *fakeAnnotator) BatchAnnotateImages(_ context.Context, req *visionpb.BatchAnnotateImagesRequest, _ ...gax.CallOption) (*visionpb.BatchAnnotateImagesResponse, error) {
	f.last = req
	return f.resp, f.err
}

func (f *fakeAnnotator) Close() error {
	f.closed = true
	return nil
}

func testImage() image.Image {
	return image.NewGray(image.Rect(0, 0, 8, 8))
}

func TestRecognizeReturnsFullText(t *testing.T) {
	fake := &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{
			{FullTextAnnotation: &visionpb.TextAnnotation{Text: "Total: $10"}},
		},
	}}
	engine := newWithClient(fake)

	text, err := engine.Recognize(context.Background(), testImage(), "spa")
	require.NoError(t, err)
	assert.Equal(t, "Total: $10", text)

	require.Len(t, fake.last.GetRequests(), 1)
	sent := fake.last.GetRequests()[0]
	assert.Equal(t, []string{"es"}, sent.GetImageContext().GetLanguageHints())
	assert.Equal(t, visionpb.Feature_DOCUMENT_TEXT_DETECTION, sent.GetFeatures()[0].GetType())
	assert.NotEmpty(t, sent.GetImage().GetContent())

	require.NoError(t, engine.Close())
	assert.True(t, fake.closed)
}

func TestRecognizeNoTextIsEmpty(t *testing.T) {
	engine := newWithClient(&fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
		Responses: []*visionpb.AnnotateImageResponse{{}},
	}})

	text, err := engine.Recognize(context.Background(), testImage(), "eng")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestRecognizeFailures(t *testing.T) {
	tests := []struct {
		name     string
		fake     *fakeAnnotator
		language bool
		canceled bool
	}{
		{"transport", &fakeAnnotator{err: errors.New("unavailable")}, false, false},
		{"canceled", &fakeAnnotator{err: context.Canceled}, false, true},
		{"deadline", &fakeAnnotator{err: context.DeadlineExceeded}, false, true},
		{"empty response", &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{}}, false, false},
		{"api error", &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{Error: &status.Status{Code: 13, Message: "internal"}}},
		}}, false, false},
		{"bad language", &fakeAnnotator{resp: &visionpb.BatchAnnotateImagesResponse{
			Responses: []*visionpb.AnnotateImageResponse{{Error: &status.Status{Code: 3, Message: "Unsupported language hint"}}},
		}}, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newWithClient(tt.fake).Recognize(context.Background(), testImage(), "spa")
			require.Error(t, err)
			assert.True(t, errors.Is(err, ocr.ErrOCRFailed))
			assert.Equal(t, tt.language, errors.Is(err, ocr.ErrLanguageUnavailable))
			assert.Equal(t, tt.canceled, errors.Is(err, ocr.ErrContextCanceled))
		})
	}
}

func TestLanguageHints(t *testing.T) {
	assert.Equal(t, []string{"es"}, LanguageHints("spa"))
	assert.Equal(t, []string{"es", "en"}, LanguageHints("spa+eng"))
	assert.Equal(t, []string{"ja"}, LanguageHints(" JA "))
	assert.Nil(t, LanguageHints(""))
}
