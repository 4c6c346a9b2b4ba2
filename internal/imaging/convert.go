// Package imaging prepares a scanned image for transmission to external
// services: decode, normalize to PNG, and base64 encode. Geometric and
// photometric preprocessing (deskew, white balance, denoise) happens upstream
// and is out of scope here.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for the supported scan formats.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded scan normalized for service calls.
type Image struct {
	Path   string
	MIME   string // MIME of the source file
	Width  int
	Height int
	PNG    []byte // Re-encoded PNG bytes sent to OCR/LLM capabilities
}

// mimeTypes maps file extensions to MIME types for the supported inputs.
var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"webp": "image/webp",
}

// MIMEType returns the MIME type for a file path based on its extension, or
// "" if the extension is not a supported image format.
func MIMEType(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	return mimeTypes[ext]
}

// Convert reads and decodes an image file and re-encodes it as PNG.
func Convert(path string) (*Image, error) {
	mime := MIMEType(path)
	if mime == "" {
		return nil, fmt.Errorf("unsupported image format: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, decoded); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}

	bounds := decoded.Bounds()
	return &Image{
		Path:   path,
		MIME:   mime,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		PNG:    buf.Bytes(),
	}, nil
}

// Base64 returns the PNG bytes as a base64 string.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.PNG)
}

// DataURL returns the PNG as a data URL for vision model payloads.
func (i *Image) DataURL() string {
	return "data:image/png;base64," + i.Base64()
}
