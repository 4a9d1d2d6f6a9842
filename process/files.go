package main

import (
	"io"
	"math"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// maxStoredBytes bounds the stored copy; larger screenshots are downscaled
// so the sheet webhook accepts them.
const maxStoredBytes = 4_000_000

// uploadBaseDir mirrors the server: stored paths are relative to UPLOAD_BASE.
func uploadBaseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "uploads"
}

// storeCopy copies src into the upload tree under a fresh name and returns
// the stored path relative to UPLOAD_BASE.
func storeCopy(src, name string, userID uint) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	rel := path.Join("screens", strconv.FormatUint(uint64(userID), 10), uuid.NewString()+ext)
	dst := filepath.Join(uploadBaseDir(), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	fi, err := os.Stat(src)
	if err != nil {
		return "", err
	}
	if fi.Size() <= maxStoredBytes {
		return rel, copyFile(src, dst)
	}
	img, err := imaging.Open(src)
	if err != nil { // cannot decode: keep the original bytes
		return rel, copyFile(src, dst)
	}
	// Encoded size roughly scales with area.
	scale := math.Sqrt(float64(maxStoredBytes) / float64(fi.Size()))
	if scale < 0.1 {
		scale = 0.1
	}
	w := int(math.Max(1, math.Round(float64(img.Bounds().Dx())*scale)))
	img = imaging.Resize(img, w, 0, imaging.Lanczos)
	if err := imaging.Save(img, dst); err != nil {
		return rel, copyFile(src, dst)
	}
	return rel, nil
}

// moveToProcessed moves a scanned file into the "processed" directory next
// to the scanned one so it is read only once. It attempts an atomic rename
// and falls back to copy+remove across devices.
func moveToProcessed(srcFullPath, name string) error {
	processedDir := filepath.Join(filepath.Dir(filepath.Dir(srcFullPath)), "processed")
	if err := os.MkdirAll(processedDir, 0o755); err != nil {
		return err
	}
	dst := filepath.Join(processedDir, name)
	if err := os.Rename(srcFullPath, dst); err == nil {
		return nil
	}
	if err := copyFile(srcFullPath, dst); err != nil {
		return err
	}
	return os.Remove(srcFullPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
