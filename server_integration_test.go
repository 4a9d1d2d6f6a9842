package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"

	"crucible/pkg/config"
	"crucible/pkg/fingerprint"
	"crucible/pkg/intake"
	"crucible/pkg/pipeline"
	"crucible/pkg/portrait"
	"crucible/pkg/region"
	"crucible/pkg/sheets"
)

const resultText = "Season 19\nStage 7 Dark Dimension\nPower: 6,762,231\nPower: 6,987,322\nTotal Victory Points: 1,240"

type fixedText string

func (f fixedText) Recognize(context.Context, image.Image) (string, error) { return string(f), nil }

// helper to perform requests with auth token
func performRequest(r http.Handler, method, path string, body io.Reader, token string, contentType string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

// screenshot paints A1 and D1 with portraits known to the library and
// leaves every other slot black.
func screenshot(t *testing.T) ([]byte, *portrait.Library) {
	t.Helper()
	img := imaging.New(920, 460, color.NRGBA{0, 0, 0, 255})
	layout := region.DefaultLayout()
	paint := func(r region.Rect, c color.NRGBA) {
		b := region.PixelBounds(920, 460, r)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				// A gradient keeps the portrait distinct from a flat slot.
				img.SetNRGBA(x, y, color.NRGBA{c.R, uint8((x - b.Min.X) * 4), c.B, 255})
			}
		}
	}
	paint(layout.Attack[0], color.NRGBA{R: 220, B: 40})
	paint(layout.Defense[0], color.NRGBA{R: 30, B: 30})
	lib := portrait.NewLibrary([]portrait.Entry{
		{Name: "Iron Fist", Fingerprint: fingerprint.Build(region.Extract(img, layout.Attack[0]), 16)},
		{Name: "Omega Red", Fingerprint: fingerprint.Build(region.Extract(img, layout.Defense[0]), 16)},
	}, 16)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes(), lib
}

func setupTestServer(t *testing.T, sheetURL string) (*gin.Engine, []byte) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tmp := t.TempDir()
	t.Setenv("DB_DSN", "sqlite:"+filepath.Join(tmp, "crucible.db"))
	t.Setenv("UPLOAD_BASE", filepath.Join(tmp, "uploads"))
	t.Setenv("DB_AUTO_MIGRATE", "true")
	jwtSecret = []byte("test-secret")
	initDB()

	data, lib := screenshot(t)
	cfg = config.Default()
	analyzer = &intake.Analyzer{Processor: pipeline.NewProcessor(cfg.Pipeline(), lib), Recognizer: fixedText(resultText)}
	sheet = sheets.NewClient(sheetURL)

	r := gin.New()
	setupRoutes(r)
	return r, data
}

func login(t *testing.T, r http.Handler, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp := performRequest(r, http.MethodPost, "/register", bytes.NewReader(body), "", "application/json")
	if resp.Code != 200 && resp.Code != 409 {
		t.Fatalf("register failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	resp = performRequest(r, http.MethodPost, "/login", bytes.NewReader(body), "", "application/json")
	if resp.Code != 200 {
		t.Fatalf("login failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &out)
	token, _ := out["token"].(string)
	if token == "" {
		t.Fatalf("empty token in login response: %+v", out)
	}
	return token
}

func upload(t *testing.T, r http.Handler, token, name string, data []byte) map[string]any {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, _ := mw.CreateFormFile("file", name)
	_, _ = w.Write(data)
	_ = mw.Close()
	resp := performRequest(r, http.MethodPost, "/screenshots", buf, token, mw.FormDataContentType())
	if resp.Code != 200 {
		t.Fatalf("upload failed status=%d body=%s", resp.Code, resp.Body.String())
	}
	var out map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestFullFlow(t *testing.T) {
	var sent sheets.Payload
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &sent)
		w.Write([]byte(`{"imageUrl":"https://drive.example/shot"}`))
	}))
	defer hook.Close()

	r, data := setupTestServer(t, hook.URL)
	token := login(t, r, "user1", "pass123")

	// Upload and read the result screen.
	shot := upload(t, r, token, "war.png", data)
	rec, _ := shot["record"].(map[string]any)
	if rec == nil {
		t.Fatalf("no record in response: %+v", shot)
	}
	attack, _ := rec["attack"].([]any)
	defense, _ := rec["defense"].([]any)
	if len(attack) != 5 || attack[0] != "Iron Fist" || attack[1] != "" || defense[0] != "Omega Red" {
		t.Fatalf("names attack=%v defense=%v", attack, defense)
	}
	if rec["differential_text"] != "-225,091" || rec["percentage_text"] != "-3.22%" {
		t.Fatalf("display strings: %v %v", rec["differential_text"], rec["percentage_text"])
	}
	recID := strconv.Itoa(int(rec["id"].(float64)))
	shotID := strconv.Itoa(int(shot["id"].(float64)))

	// Same bytes again: stored record comes back.
	again := upload(t, r, token, "war-copy.png", data)
	if again["duplicate"] != true || again["id"] != shot["id"] {
		t.Fatalf("expected duplicate, got %+v", again)
	}

	resp := performRequest(r, http.MethodGet, "/screenshots", nil, token, "")
	var list []map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &list)
	if resp.Code != 200 || len(list) != 1 {
		t.Fatalf("list status=%d items=%d", resp.Code, len(list))
	}
	resp = performRequest(r, http.MethodGet, "/screenshots/"+shotID, nil, token, "")
	if resp.Code != 200 || !bytes.Contains(resp.Body.Bytes(), []byte("Dark Dimension")) {
		t.Fatalf("get status=%d body=%s", resp.Code, resp.Body.String())
	}

	// Review: fix the attack power, metrics must follow.
	edit, _ := json.Marshal(map[string]any{"attack_power": 7000000, "attack": []string{"Iron Fist", "Sword Master"}})
	resp = performRequest(r, http.MethodPatch, "/records/"+recID, bytes.NewReader(edit), token, "application/json")
	if resp.Code != 200 {
		t.Fatalf("patch status=%d body=%s", resp.Code, resp.Body.String())
	}
	var edited map[string]any
	_ = json.Unmarshal(resp.Body.Bytes(), &edited)
	m, _ := edited["metrics"].(map[string]any)
	if m["label"] != "Punchdown" || m["differential"] != float64(12678) {
		t.Fatalf("metrics after edit: %+v", m)
	}

	resp = performRequest(r, http.MethodPost, "/records/"+recID+"/send", nil, token, "")
	if resp.Code != 200 || !bytes.Contains(resp.Body.Bytes(), []byte("https://drive.example/shot")) {
		t.Fatalf("send status=%d body=%s", resp.Code, resp.Body.String())
	}
	if sent.Action != "appendRow" || len(sent.Row) != 20 || sent.Row[5] != "Iron Fist" || sent.Row[6] != "Sword Master" || sent.Row[0] != "Omega Red" {
		t.Fatalf("sheet payload row=%v", sent.Row)
	}

	// Another user may not touch the record.
	other := login(t, r, "user2", "pass123")
	resp = performRequest(r, http.MethodGet, "/screenshots/"+shotID, nil, other, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
	resp = performRequest(r, http.MethodPatch, "/records/"+recID, bytes.NewReader(edit), other, "application/json")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 on patch got %d", resp.Code)
	}

	// Admin sees everything.
	admin := login(t, r, "admin", "admin123")
	resp = performRequest(r, http.MethodGet, "/screenshots/"+shotID, nil, admin, "")
	if resp.Code != 200 {
		t.Fatalf("admin get status=%d", resp.Code)
	}

	unauth := performRequest(r, http.MethodGet, "/screenshots", nil, "", "")
	if unauth.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unauthorized list got %d", unauth.Code)
	}
}

func TestUploadRejectsBadFiles(t *testing.T) {
	r, _ := setupTestServer(t, "")
	token := login(t, r, "user1", "pass123")

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	w, _ := mw.CreateFormFile("file", "notes.txt")
	_, _ = w.Write([]byte("SOME CONTENT"))
	_ = mw.Close()
	resp := performRequest(r, http.MethodPost, "/screenshots", buf, token, mw.FormDataContentType())
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for text file got %d", resp.Code)
	}

	buf = &bytes.Buffer{}
	mw = multipart.NewWriter(buf)
	w, _ = mw.CreateFormFile("file", "broken.png")
	_, _ = w.Write([]byte("not a png"))
	_ = mw.Close()
	resp = performRequest(r, http.MethodPost, "/screenshots", buf, token, mw.FormDataContentType())
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for undecodable image got %d", resp.Code)
	}
}

func TestSendWithoutSheet(t *testing.T) {
	r, data := setupTestServer(t, "")
	token := login(t, r, "user1", "pass123")
	shot := upload(t, r, token, "war.png", data)
	rec := shot["record"].(map[string]any)
	resp := performRequest(r, http.MethodPost, "/records/"+strconv.Itoa(int(rec["id"].(float64)))+"/send", nil, token, "")
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
}

func TestHealthAndPortraits(t *testing.T) {
	r, _ := setupTestServer(t, "")
	resp := performRequest(r, http.MethodGet, "/healthz", nil, "", "")
	if resp.Code != 200 || !bytes.Contains(resp.Body.Bytes(), []byte(`"portraits":2`)) {
		t.Fatalf("health status=%d body=%s", resp.Code, resp.Body.String())
	}
	token := login(t, r, "user1", "pass123")
	resp = performRequest(r, http.MethodGet, "/portraits", nil, token, "")
	if resp.Code != 200 || !bytes.Contains(resp.Body.Bytes(), []byte("Omega Red")) {
		t.Fatalf("portraits status=%d body=%s", resp.Code, resp.Body.String())
	}
}
