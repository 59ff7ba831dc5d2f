//
// Copyright (C) 2026 Scriptoria.  All rights reserved.
//
// paleobench is licensed under the Apache License Version 2.0.
//
//

// Package iiif downloads and caches source images from IIIF image servers.
package iiif

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/png"

	"github.com/scriptoria/paleobench/config"
)

const (
	infoSuffix  = "/info.json"
	imageRegion = "/full/max/0/default.jpg"

	jpegQuality = 85
)

// Fetcher downloads IIIF images into a local cache directory.
type Fetcher struct {
	client *http.Client
}

type options struct {
	client *http.Client
}

// Option configures a Fetcher.
type Option func(*options)

// WithHTTPClient overrides the HTTP client used for downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.client = client
	}
}

// NewFetcher creates a Fetcher. The default client follows redirects and
// times out after a minute, which is generous enough for full-resolution
// manuscript scans.
func NewFetcher(opt ...Option) *Fetcher {
	o := &options{}
	for _, fn := range opt {
		fn(o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Fetcher{client: o.client}
}

// Fetch resolves infoURL, downloads the full image, optionally crops it to
// the requested side, caches it under cacheDir and returns the cached
// path. The cache key covers both URL and side, and cache hits skip the
// network entirely.
func (f *Fetcher) Fetch(ctx context.Context, infoURL, cacheDir string, side config.Side) (string, error) {
	if !strings.HasSuffix(infoURL, infoSuffix) {
		return "", fmt.Errorf("URL does not end with %s: %s", infoSuffix, infoURL)
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache directory %s: %w", cacheDir, err)
	}
	cachedPath := filepath.Join(cacheDir, cacheKey(infoURL, side)+".jpg")
	if _, err := os.Stat(cachedPath); err == nil {
		return cachedPath, nil
	}

	baseURL, err := f.resolveImageBase(ctx, infoURL)
	if err != nil {
		return "", err
	}
	data, err := f.download(ctx, baseURL+imageRegion)
	if err != nil {
		return "", err
	}
	if side != "" {
		data, err = cropSide(data, side)
		if err != nil {
			return "", fmt.Errorf("crop %s from %s: %w", side, infoURL, err)
		}
	}
	if err := os.WriteFile(cachedPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write cached image: %w", err)
	}
	return cachedPath, nil
}

// resolveImageBase fetches and validates info.json, returning the image
// service base URL. The id from info.json is authoritative: it may carry
// auth tokens the configured URL does not.
func (f *Fetcher) resolveImageBase(ctx context.Context, infoURL string) (string, error) {
	data, err := f.download(ctx, infoURL)
	if err != nil {
		return "", err
	}
	var info map[string]any
	if err := json.Unmarshal(data, &info); err != nil {
		return "", fmt.Errorf("invalid JSON from %s: %w", infoURL, err)
	}
	if _, hasContext := info["@context"]; !hasContext {
		if _, hasType := info["type"]; !hasType {
			return "", fmt.Errorf("response from %s does not look like IIIF info.json", infoURL)
		}
	}
	base, _ := info["id"].(string)
	if base == "" {
		base, _ = info["@id"].(string)
	}
	if base == "" {
		return "", fmt.Errorf("info.json from %s has no 'id' or '@id' field", infoURL)
	}
	return base, nil
}

func (f *Fetcher) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return data, nil
}

// cropSide keeps the left half for verso and the right half for recto.
// Odd widths give the extra column to the recto side.
func cropSide(data []byte, side config.Side) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	bounds := img.Bounds()
	mid := bounds.Min.X + bounds.Dx()/2
	var region image.Rectangle
	switch side {
	case config.SideVerso:
		region = image.Rect(bounds.Min.X, bounds.Min.Y, mid, bounds.Max.Y)
	case config.SideRecto:
		region = image.Rect(mid, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("image type %T does not support cropping", img)
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, si.SubImage(region), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode cropped image: %w", err)
	}
	return out.Bytes(), nil
}

func cacheKey(infoURL string, side config.Side) string {
	h := sha256.Sum256([]byte(infoURL + "#" + string(side)))
	return hex.EncodeToString(h[:])
}
