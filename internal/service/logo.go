package service

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

// LogoMaxDimension bounds the width and height of a stored site logo.
const LogoMaxDimension = 512

// =============================================================================
// Interface Definition
// =============================================================================

// LogoProcessor normalises uploaded site logos.
type LogoProcessor interface {
	// ProcessLogo decodes an image, fits it within maxSize x maxSize while
	// preserving aspect ratio and re-encodes it as PNG so transparency
	// survives. It returns the encoded bytes and the original dimensions.
	ProcessLogo(data io.Reader, maxSize int) ([]byte, int, int, error)
}

// =============================================================================
// Implementation
// =============================================================================

type imagingProcessor struct{}

// NewImagingProcessor creates a LogoProcessor backed by the imaging library.
func NewImagingProcessor() LogoProcessor {
	return &imagingProcessor{}
}

func (p *imagingProcessor) ProcessLogo(data io.Reader, maxSize int) ([]byte, int, int, error) {
	img, err := imaging.Decode(data, imaging.AutoOrientation(true))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	// Small logos are kept at their original size.
	if width > maxSize || height > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode logo: %w", err)
	}
	return buf.Bytes(), width, height, nil
}
