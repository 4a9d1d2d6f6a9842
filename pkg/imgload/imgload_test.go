package imgload

import (
	"bytes"
	"context"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{9, 8, 7, 255}), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeRoundTrip(t *testing.T) {
	img, err := Decode(encodePNG(t, 12, 5))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 12 || img.Bounds().Dy() != 5 {
		t.Fatalf("unexpected bounds %v", img.Bounds())
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Fatalf("expected error for garbage input")
	}
}

func TestOpenLocalAndRemote(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "p.png")
	if err := imaging.Save(imaging.New(3, 4, color.NRGBA{1, 1, 1, 255}), p); err != nil {
		t.Fatalf("save: %v", err)
	}
	img, err := Open(context.Background(), p)
	if err != nil || img.Bounds().Dx() != 3 {
		t.Fatalf("open local: img=%v err=%v", img, err)
	}

	data := encodePNG(t, 6, 6)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()
	img, err = Open(context.Background(), srv.URL+"/ok.png")
	if err != nil || img.Bounds().Dx() != 6 {
		t.Fatalf("open remote: img=%v err=%v", img, err)
	}
	if _, err := Open(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestSupportedExt(t *testing.T) {
	for _, name := range []string{"a.PNG", "b.jpeg", "c.webp", "d.gif"} {
		if !IsSupportedExt(name) {
			t.Fatalf("%s should be supported", name)
		}
	}
	if IsSupportedExt("notes.txt") {
		t.Fatalf("txt should not be supported")
	}
	if MimeFromExt("x.webp") != "image/webp" {
		t.Fatalf("unexpected mime %q", MimeFromExt("x.webp"))
	}
}
