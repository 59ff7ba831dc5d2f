//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"mime"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// Anthropic's 5MB request limit applies to the base64 string, not the
	// raw bytes. base64 inflates by 4/3, so raw bytes are capped at ~3.7MB
	// to stay under 5MB encoded.
	maxImageBytes     = 3_700_000
	maxImageDimension = 8_000
)

// encodeImage returns the base64 payload and MIME type for the image at
// path, downscaling and re-encoding as JPEG when the original exceeds the
// byte or dimension caps.
func encodeImage(path string) (string, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("read image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("decode image config: %w", err)
	}
	withinDimensionLimit := cfg.Width <= maxImageDimension && cfg.Height <= maxImageDimension
	if len(raw) <= maxImageBytes && withinDimensionLimit {
		return base64.StdEncoding.EncodeToString(raw), mimeFromPath(path), nil
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", "", fmt.Errorf("decode image: %w", err)
	}
	if !withinDimensionLimit {
		img = scaleToFit(img, maxImageDimension)
	}

	// Shrink by 25% steps and lower JPEG quality until under both limits.
	quality := 85
	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", "", fmt.Errorf("encode jpeg: %w", err)
		}
		bounds := img.Bounds()
		if buf.Len() <= maxImageBytes &&
			bounds.Dx() <= maxImageDimension && bounds.Dy() <= maxImageDimension {
			break
		}
		img = resize(img, bounds.Dx()*3/4, bounds.Dy()*3/4)
		if quality > 50 {
			quality -= 5
			if quality < 50 {
				quality = 50
			}
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), "image/jpeg", nil
}

func mimeFromPath(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "image/jpeg"
}

// scaleToFit shrinks img to fit within limit on both axes, preserving the
// aspect ratio. Images already within the limit are returned unchanged.
func scaleToFit(img image.Image, limit int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= limit && h <= limit {
		return img
	}
	if w >= h {
		return resize(img, limit, h*limit/w)
	}
	return resize(img, w*limit/h, limit)
}

func resize(img image.Image, width, height int) image.Image {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}
