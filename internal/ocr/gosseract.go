package ocr

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"

	"github.com/dealdocs/contractocr/internal/common"
)

// GosseractEngine recognizes text in-process through the libtesseract
// binding, avoiding one subprocess per page. A fresh client per call keeps
// recognition free of cross-page state.
type GosseractEngine struct {
	clientFactory func() *gosseract.Client
}

func NewGosseractEngine() *GosseractEngine {
	return &GosseractEngine{clientFactory: gosseract.NewClient}
}

func (e *GosseractEngine) Recognize(ctx context.Context, imagePath, lang string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	if lang == "" {
		lang = "eng"
	}
	if err := c.SetLanguage(lang); err != nil {
		return "", fmt.Errorf("%w: set language %q: %v", common.ErrRecognition, lang, err)
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("%w: set image: %v", common.ErrRecognition, err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("%w: recognize: %v", common.ErrRecognition, err)
	}
	return text, nil
}
