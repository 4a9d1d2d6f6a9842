// Package imgload decodes screenshots and portrait images from files, URLs
// or raw bytes. Importing it registers the WebP decoder next to the
// png/jpeg/gif decoders that imaging already pulls in.
package imgload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// MaxRemoteBytes caps the size of an image fetched over HTTP.
const MaxRemoteBytes = 10 << 20

// ErrUnsupported is returned for file names without a known image extension.
var ErrUnsupported = errors.New("unsupported image type")

var httpClient = &http.Client{Timeout: 20 * time.Second}

var extMime = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// IsSupportedExt reports whether name has an image extension we can decode.
func IsSupportedExt(name string) bool {
	_, ok := extMime[strings.ToLower(filepath.Ext(name))]
	return ok
}

// MimeFromExt maps a file name to its MIME type or "" when unknown.
func MimeFromExt(name string) string {
	return extMime[strings.ToLower(filepath.Ext(name))]
}

// Decode decodes an encoded image, applying EXIF orientation for JPEGs.
func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Open loads an image from a local path or an http(s) URL.
func Open(ctx context.Context, src string) (image.Image, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err := fetch(ctx, src)
		if err != nil {
			return nil, err
		}
		return Decode(data)
	}
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open image %s: %w", src, err)
	}
	return img, nil
}

func fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxRemoteBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	if len(data) > MaxRemoteBytes {
		return nil, fmt.Errorf("fetch %s: image larger than %d bytes", url, MaxRemoteBytes)
	}
	return data, nil
}
