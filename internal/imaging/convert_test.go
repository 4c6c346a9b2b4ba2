package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestImage(t *testing.T, name string, encode func(*os.File, image.Image) error) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	for x := 0; x < 8; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}

	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMIMEType(t *testing.T) {
	cases := map[string]string{
		"scan.png":      "image/png",
		"scan.JPG":      "image/jpeg",
		"scan.jpeg":     "image/jpeg",
		"scan.tif":      "image/tiff",
		"scan.tiff":     "image/tiff",
		"scan.webp":     "image/webp",
		"scan.bmp":      "image/bmp",
		"scan.gif":      "image/gif",
		"document.pdf":  "",
		"notes.txt":     "",
		"no_extension":  "",
	}
	for path, want := range cases {
		if got := MIMEType(path); got != want {
			t.Errorf("MIMEType(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestConvertPNG(t *testing.T) {
	path := writeTestImage(t, "scan.png", func(f *os.File, img image.Image) error {
		return png.Encode(f, img)
	})

	got, err := Convert(path)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got.MIME != "image/png" || got.Width != 8 || got.Height != 6 {
		t.Errorf("image = %+v", got)
	}

	// Output is always decodable PNG.
	decoded, err := png.Decode(bytes.NewReader(got.PNG))
	if err != nil {
		t.Fatalf("output is not PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 8 {
		t.Errorf("bounds = %v", decoded.Bounds())
	}
}

func TestConvertJPEGNormalizesToPNG(t *testing.T) {
	path := writeTestImage(t, "scan.jpg", func(f *os.File, img image.Image) error {
		return jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
	})

	got, err := Convert(path)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if got.MIME != "image/jpeg" {
		t.Errorf("MIME = %q", got.MIME)
	}
	if _, err := png.Decode(bytes.NewReader(got.PNG)); err != nil {
		t.Errorf("JPEG input not re-encoded as PNG: %v", err)
	}
}

func TestConvertErrors(t *testing.T) {
	t.Run("unsupported extension", func(t *testing.T) {
		if _, err := Convert("document.pdf"); err == nil {
			t.Error("expected error for unsupported format")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Convert(filepath.Join(t.TempDir(), "missing.png")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("corrupt data", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "corrupt.png")
		if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Convert(path); err == nil {
			t.Error("expected error for corrupt image data")
		}
	})
}

func TestImageDataURL(t *testing.T) {
	img := &Image{PNG: []byte{1, 2, 3}}
	if !strings.HasPrefix(img.DataURL(), "data:image/png;base64,") {
		t.Errorf("DataURL = %q", img.DataURL())
	}
}
