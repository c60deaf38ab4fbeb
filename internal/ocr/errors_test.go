package ocr

import (
	"context"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOCRErrorMatching(t *testing.T) {
	err := NewOCRError("Recognize", ErrLanguageUnavailable, "lang=xyz")

	assert.True(t, errors.Is(err, ErrOCRFailed))
	assert.True(t, errors.Is(err, ErrLanguageUnavailable))
	assert.False(t, errors.Is(err, ErrMissingCredentials))
	assert.Equal(t, "ocr: Recognize failed: lang=xyz: OCR language data unavailable", err.Error())
}

func TestWrapOCRError(t *testing.T) {
	assert.NoError(t, WrapOCRError("op", nil, ""))

	inner := NewOCRError("inner", ErrOCRFailed, "")
	assert.Same(t, inner, WrapOCRError("outer", inner, "ignored"))

	wrapped := WrapOCRError("Recognize", errors.New("engine crashed"), "a.png")
	var ocrErr *OCRError
	require.True(t, errors.As(wrapped, &ocrErr))
	assert.Equal(t, "Recognize", ocrErr.Op)
	assert.True(t, errors.Is(wrapped, ErrOCRFailed))

	canceled := WrapOCRError("Recognize", context.Canceled, "")
	assert.True(t, errors.Is(canceled, ErrContextCanceled))
	assert.True(t, errors.Is(canceled, context.Canceled))
}

type stubEngine struct {
	text string
	err  error
}

func (s stubEngine) Name() string { return "stub" }

func (s stubEngine) Recognize(context.Context, image.Image, string) (string, error) {
	return s.text, s.err
}

func TestRun(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2, 2))

	ok := Run(context.Background(), stubEngine{text: "hola"}, "a.png", img, "spa")
	assert.NoError(t, ok.Err)
	assert.Equal(t, "hola", ok.Text)
	assert.Equal(t, "stub", ok.Engine)
	assert.Equal(t, "a.png", ok.Source)

	failed := Run(context.Background(), stubEngine{err: errors.New("boom")}, "b.png", img, "spa")
	assert.Empty(t, failed.Text)
	assert.True(t, errors.Is(failed.Err, ErrOCRFailed))
	assert.Contains(t, failed.Err.Error(), "b.png")
}
