package utils

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // GIF decoder
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"log"
	"net/http"

	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// IsPNG - data starts with the PNG signature
func IsPNG(data []byte) bool {
	return bytes.HasPrefix(data, pngSignature)
}

// DetectImageType - sniffed content type, e.g. "image/webp"
func DetectImageType(data []byte) string {
	return http.DetectContentType(data)
}

// DecodeImage - decode PNG, JPEG, GIF or WebP bytes
func DecodeImage(data []byte) (image.Image, string, error) {
	if DetectImageType(data) == "image/webp" {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, "", fmt.Errorf("failed to decode WebP: %w", err)
		}
		return img, "webp", nil
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// NormalizeToPNG - re-encode any supported image as PNG; PNG input is returned unchanged
func NormalizeToPNG(data []byte) ([]byte, error) {
	if IsPNG(data) {
		return data, nil
	}

	img, format, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	log.Printf("🔄 Image converted %s → PNG: %d bytes → %d bytes", format, len(data), buf.Len())
	return buf.Bytes(), nil
}
