package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/mimicryml/style-transfer/internal/interfaces"
	"github.com/mimicryml/style-transfer/internal/jobs"
	"github.com/mimicryml/style-transfer/internal/memstore"
	"github.com/mimicryml/style-transfer/internal/styles"
	"github.com/mimicryml/style-transfer/internal/websocket"
)

func newTestServer(t *testing.T) (*httptest.Server, *memstore.Store) {
	t.Helper()

	store := memstore.New()
	catalog := styles.NewCatalog(t.TempDir())
	manager := jobs.NewManager(store, catalog)
	queries := jobs.NewQueries(store)
	hub := websocket.NewHub()
	go hub.Run()

	server := NewServer(Config{
		Port:           "0",
		UploadDir:      t.TempDir(),
		MaxUploadBytes: 1 * 1024 * 1024,
	}, manager, queries, catalog, hub)

	mux := http.NewServeMux()
	AddRoutes(mux, server)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, store
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.SetRGBA(1, 1, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartUpload(t *testing.T, filename, style, sessionID string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatal(err)
	}
	if style != "" {
		writer.WriteField("style", style)
	}
	if sessionID != "" {
		writer.WriteField("session_id", sessionID)
	}
	writer.Close()

	return body, writer.FormDataContentType()
}

func TestTransformAccepted(t *testing.T) {
	ts, store := newTestServer(t)

	body, contentType := multipartUpload(t, "photo.png", "vangogh", "sess-1", pngBytes(t))
	resp, err := http.Post(ts.URL+"/transform", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var got struct {
		JobID     string `json:"job_id"`
		SessionID string `json:"session_id"`
		Status    string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.JobID == "" {
		t.Fatal("expected a job id")
	}
	if got.Status != string(interfaces.StatusPending) {
		t.Fatalf("expected pending, got %s", got.Status)
	}
	if got.SessionID != "sess-1" {
		t.Fatalf("expected session sess-1, got %s", got.SessionID)
	}

	job, err := store.Get(got.JobID)
	if err != nil {
		t.Fatalf("job not persisted: %v", err)
	}
	if job.OriginalFilename != "photo.png" {
		t.Fatalf("unexpected filename: %s", job.OriginalFilename)
	}
}

func TestTransformUnknownStyle(t *testing.T) {
	ts, store := newTestServer(t)

	body, contentType := multipartUpload(t, "photo.png", "banksy", "", pngBytes(t))
	resp, err := http.Post(ts.URL+"/transform", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	pending, err := store.NextPending()
	if err != nil {
		t.Fatal(err)
	}
	if pending != nil {
		t.Fatalf("rejected submission created a record: %v", pending)
	}
}

func TestTransformRejectsBadExtension(t *testing.T) {
	ts, _ := newTestServer(t)

	body, contentType := multipartUpload(t, "clip.gif", "vangogh", "", pngBytes(t))
	resp, err := http.Post(ts.URL+"/transform", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts, store := newTestServer(t)

	store.Create(&interfaces.Job{
		ID:        "job-1",
		SessionID: "sess-1",
		StyleName: "vangogh",
		Status:    interfaces.StatusPending,
		CreatedAt: time.Now(),
	})

	resp, err := http.Get(ts.URL + "/status/job-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var job interfaces.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		t.Fatal(err)
	}
	if job.ID != "job-1" || job.Status != interfaces.StatusPending {
		t.Fatalf("unexpected job: %+v", job)
	}
}

func TestStatusNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/status/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestResultNotCompleted(t *testing.T) {
	ts, store := newTestServer(t)

	store.Create(&interfaces.Job{
		ID:        "job-1",
		SessionID: "sess-1",
		StyleName: "vangogh",
		Status:    interfaces.StatusPending,
		CreatedAt: time.Now(),
	})

	resp, err := http.Get(ts.URL + "/result/job-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	ts, store := newTestServer(t)
	base := time.Now()

	for i := 0; i < 2; i++ {
		store.Create(&interfaces.Job{
			ID:        fmt.Sprintf("job-%d", i),
			SessionID: "sess-1",
			StyleName: "vangogh",
			Status:    interfaces.StatusPending,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}

	resp, err := http.Get(ts.URL + "/history/sess-1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got struct {
		SessionID       string            `json:"session_id"`
		Count           int               `json:"count"`
		Transformations []*interfaces.Job `json:"transformations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 2 || len(got.Transformations) != 2 {
		t.Fatalf("expected 2 jobs, got %+v", got)
	}
	if got.Transformations[0].ID != "job-1" {
		t.Fatalf("history not newest first: %s", got.Transformations[0].ID)
	}
}

func TestGalleryEmpty(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/gallery?limit=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var got struct {
		Count           int               `json:"count"`
		Transformations []*interfaces.Job `json:"transformations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 0 {
		t.Fatalf("expected empty gallery, got %d", got.Count)
	}
}

func TestStylesEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/styles")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var got struct {
		Styles []styles.Style `json:"styles"`
		Count  int            `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Count != 4 || len(got.Styles) != 4 {
		t.Fatalf("expected 4 styles, got %+v", got)
	}
}

// brokenStore refuses writes, simulating a store outage.
type brokenStore struct {
	*memstore.Store
}

func (s *brokenStore) Create(job *interfaces.Job) error {
	return errors.New("store unavailable")
}

func TestTransformStoreErrorRemovesUpload(t *testing.T) {
	store := &brokenStore{Store: memstore.New()}
	catalog := styles.NewCatalog(t.TempDir())
	manager := jobs.NewManager(store, catalog)
	queries := jobs.NewQueries(store)
	hub := websocket.NewHub()
	go hub.Run()

	uploadDir := t.TempDir()
	server := NewServer(Config{
		Port:           "0",
		UploadDir:      uploadDir,
		MaxUploadBytes: 1 * 1024 * 1024,
	}, manager, queries, catalog, hub)

	mux := http.NewServeMux()
	AddRoutes(mux, server)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	body, contentType := multipartUpload(t, "photo.png", "vangogh", "", pngBytes(t))
	resp, err := http.Post(ts.URL+"/transform", contentType, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}

	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed submission left %d upload files behind", len(entries))
	}
}
