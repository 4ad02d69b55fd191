package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/gembooth/internal/images"
	"github.com/lehigh-university-libraries/gembooth/internal/models"
	"github.com/lehigh-university-libraries/gembooth/internal/providers"
	"github.com/lehigh-university-libraries/gembooth/internal/session"
)

type photoJSON struct {
	ID     string `json:"id"`
	Mode   string `json:"mode"`
	Status string `json:"status"`
	IsBusy bool   `json:"is_busy"`
}

type stateJSON struct {
	ID                string      `json:"id"`
	ActiveMode        string      `json:"active_mode"`
	CustomInstruction string      `json:"custom_instruction"`
	Photos            []photoJSON `json:"photos"`
}

type snapJSON struct {
	Photo photoJSON `json:"photo"`
	Error string    `json:"error"`
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// echoTransformer returns the instruction as the output image so tests can
// see which mode was applied. An instruction of "fail" fails the call.
func echoTransformer() providers.Transformer {
	return providers.Func(func(ctx context.Context, req providers.Request) (models.Payload, error) {
		if req.Instruction == "fail" {
			return models.Payload{}, errors.New("model refused")
		}
		return models.Payload{Data: []byte(req.Instruction), MIMEType: "image/png"}, nil
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newTestServerWithLimits(t, Limits{})
	return srv
}

func newTestServerWithLimits(t *testing.T, limits Limits) (*httptest.Server, *Handler) {
	t.Helper()
	h := New(session.Options{Transformer: echoTransformer()}, "", limits)
	mux := http.NewServeMux()
	h.Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		h.Close(ctx)
	})
	return srv, h
}

func doRequest(t *testing.T, method, url, contentType string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func createSession(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp := doRequest(t, "POST", srv.URL+"/api/sessions", "", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d", resp.StatusCode)
	}
	var state stateJSON
	decode(t, resp, &state)
	if state.ID == "" {
		t.Fatal("Expected session id")
	}
	if state.ActiveMode != "cartoon" {
		t.Errorf("Expected default mode cartoon, got %s", state.ActiveMode)
	}
	return state.ID
}

func TestPhotoLifecycle(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/api/sessions/" + id

	resp := doRequest(t, "PUT", base+"/mode", "application/json", strings.NewReader(`{"mode":"banana"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 setting mode, got %d", resp.StatusCode)
	}

	body, _ := json.Marshal(map[string]string{"image": images.DataURI(models.Payload{Data: testPNG(t), MIMEType: "image/png"})})
	resp = doRequest(t, "POST", base+"/photos?wait=true", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var snap snapJSON
	decode(t, resp, &snap)
	if snap.Photo.Mode != "banana" || snap.Photo.Status != "done" || snap.Photo.IsBusy {
		t.Errorf("Unexpected photo %+v", snap.Photo)
	}

	resp = doRequest(t, "GET", base+"/photos/"+snap.Photo.ID+"/output", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for output, got %d", resp.StatusCode)
	}
	out, _ := io.ReadAll(resp.Body)
	if string(out) != "Make the person in the photo wear a banana costume." {
		t.Errorf("Expected banana instruction as output, got %q", out)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Expected image/png, got %s", ct)
	}

	resp = doRequest(t, "GET", base+"/photos/"+snap.Photo.ID+"/input", "", nil)
	in, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(in, testPNG(t)) {
		t.Error("Expected input image to round trip")
	}

	resp = doRequest(t, "DELETE", base+"/photos/"+snap.Photo.ID, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	resp = doRequest(t, "GET", base+"/photos/"+snap.Photo.ID+"/output", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", resp.StatusCode)
	}

	resp = doRequest(t, "GET", base+"/photos", "", nil)
	var photos []photoJSON
	decode(t, resp, &photos)
	if len(photos) != 0 {
		t.Errorf("Expected no photos, got %d", len(photos))
	}
}

func TestFailedPhotoIsReported(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/api/sessions/" + id

	doRequest(t, "PUT", base+"/custom", "application/json", strings.NewReader(`{"instruction":"fail"}`))
	doRequest(t, "PUT", base+"/mode", "application/json", strings.NewReader(`{"mode":"custom"}`))

	var form bytes.Buffer
	w := multipart.NewWriter(&form)
	part, _ := w.CreateFormFile("file", "snap.png")
	part.Write(testPNG(t))
	w.Close()

	resp := doRequest(t, "POST", base+"/photos?wait=true", w.FormDataContentType(), &form)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	var snap snapJSON
	decode(t, resp, &snap)
	if snap.Photo.Status != "failed" || snap.Photo.IsBusy {
		t.Errorf("Expected failed photo, got %+v", snap.Photo)
	}
	if !strings.Contains(snap.Error, "model refused") {
		t.Errorf("Expected error message, got %q", snap.Error)
	}

	resp = doRequest(t, "GET", base+"/photos/"+snap.Photo.ID+"/output", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for failed photo output, got %d", resp.StatusCode)
	}
}

func TestBadRequests(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)
	base := srv.URL + "/api/sessions/" + id

	tests := []struct {
		name        string
		method      string
		url         string
		contentType string
		body        string
		expected    int
	}{
		{"unknown mode", "PUT", base + "/mode", "application/json", `{"mode":"vaporwave"}`, http.StatusBadRequest},
		{"missing mode", "PUT", base + "/mode", "application/json", `{}`, http.StatusBadRequest},
		{"not an image", "POST", base + "/photos", "application/json", `{"image":"data:image/png;base64,aGVsbG8="}`, http.StatusBadRequest},
		{"empty image", "POST", base + "/photos", "application/json", `{"image":""}`, http.StatusBadRequest},
		{"unknown session", "GET", srv.URL + "/api/sessions/nope", "", "", http.StatusNotFound},
		{"unknown photo", "GET", base + "/photos/nope", "", "", http.StatusNotFound},
		{"unknown image kind", "GET", base + "/photos/nope/thumbnail", "", "", http.StatusNotFound},
		{"unknown api path", "GET", srv.URL + "/api/nothing", "", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, tt.method, tt.url, tt.contentType, strings.NewReader(tt.body))
			if resp.StatusCode != tt.expected {
				t.Errorf("Expected %d, got %d", tt.expected, resp.StatusCode)
			}
		})
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	srv := newTestServer(t)
	a := createSession(t, srv)
	b := createSession(t, srv)

	doRequest(t, "PUT", srv.URL+"/api/sessions/"+a+"/mode", "application/json", strings.NewReader(`{"mode":"old"}`))

	var state stateJSON
	decode(t, doRequest(t, "GET", srv.URL+"/api/sessions/"+b, "", nil), &state)
	if state.ActiveMode != "cartoon" {
		t.Errorf("Expected session b to keep cartoon, got %s", state.ActiveMode)
	}

	var ids []string
	decode(t, doRequest(t, "GET", srv.URL+"/api/sessions", "", nil), &ids)
	if len(ids) != 2 {
		t.Errorf("Expected 2 sessions, got %v", ids)
	}

	resp := doRequest(t, "DELETE", srv.URL+"/api/sessions/"+a, "", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", resp.StatusCode)
	}
	resp = doRequest(t, "GET", srv.URL+"/api/sessions/"+a, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for deleted session, got %d", resp.StatusCode)
	}
}

func TestModes(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	doRequest(t, "PUT", srv.URL+"/api/sessions/"+id+"/custom", "application/json", strings.NewReader(`{"instruction":"Make it pink"}`))

	var list []struct {
		Key         string `json:"key"`
		Instruction string `json:"instruction"`
	}
	decode(t, doRequest(t, "GET", srv.URL+"/api/sessions/"+id+"/modes", "", nil), &list)
	if len(list) == 0 || list[len(list)-1].Key != "custom" {
		t.Fatalf("Expected custom mode last, got %+v", list)
	}
	if list[len(list)-1].Instruction != "Make it pink" {
		t.Errorf("Expected custom instruction, got %q", list[len(list)-1].Instruction)
	}

	decode(t, doRequest(t, "GET", srv.URL+"/api/modes", "", nil), &list)
	if list[0].Key != "cartoon" {
		t.Errorf("Expected cartoon first, got %s", list[0].Key)
	}
}

func TestMaxSessions(t *testing.T) {
	srv, _ := newTestServerWithLimits(t, Limits{MaxSessions: 2})
	first := createSession(t, srv)
	createSession(t, srv)

	resp := doRequest(t, "POST", srv.URL+"/api/sessions", "", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 over the session limit, got %d", resp.StatusCode)
	}

	doRequest(t, "DELETE", srv.URL+"/api/sessions/"+first, "", nil)
	createSession(t, srv)
}

func TestExpireIdle(t *testing.T) {
	srv, h := newTestServerWithLimits(t, Limits{IdleTimeout: time.Minute})
	id := createSession(t, srv)

	if n := h.ExpireIdle(context.Background(), time.Now()); n != 0 {
		t.Errorf("Expected fresh session to survive, expired %d", n)
	}
	if n := h.ExpireIdle(context.Background(), time.Now().Add(2*time.Minute)); n != 1 {
		t.Errorf("Expected 1 idle session to expire, got %d", n)
	}

	resp := doRequest(t, "GET", srv.URL+"/api/sessions/"+id, "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for expired session, got %d", resp.StatusCode)
	}
}

func TestExpireIdleDisabled(t *testing.T) {
	srv, h := newTestServerWithLimits(t, Limits{})
	createSession(t, srv)

	if n := h.ExpireIdle(context.Background(), time.Now().Add(24*time.Hour)); n != 0 {
		t.Errorf("Expected no expiry without an idle timeout, got %d", n)
	}
}

func TestSnapAcceptedAfterRemoval(t *testing.T) {
	block := make(chan struct{})
	s := session.New(session.Options{Transformer: providers.Func(func(ctx context.Context, req providers.Request) (models.Payload, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return models.Payload{}, errors.New("stopped")
	})})
	t.Cleanup(func() {
		close(block)
		s.Close(context.Background())
	})

	task, err := s.Snap(models.Payload{Data: testPNG(t), MIMEType: "image/png"})
	if err != nil {
		t.Fatal(err)
	}
	s.Remove(task.ID())

	h := New(session.Options{Transformer: echoTransformer()}, "", Limits{})
	rec := httptest.NewRecorder()
	h.writeSnapAccepted(rec, s, task)
	if rec.Code != http.StatusGone {
		t.Errorf("Expected 410 for a photo removed before the response, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), `"id":""`) {
		t.Errorf("Expected no empty photo record, got %s", rec.Body.String())
	}
}

func TestSnapAccepted(t *testing.T) {
	srv := newTestServer(t)
	id := createSession(t, srv)

	body, _ := json.Marshal(map[string]string{"image": images.DataURI(models.Payload{Data: testPNG(t), MIMEType: "image/png"})})
	resp := doRequest(t, "POST", srv.URL+"/api/sessions/"+id+"/photos", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", resp.StatusCode)
	}
	var snap snapJSON
	decode(t, resp, &snap)
	if snap.Photo.ID == "" || snap.Photo.Mode != "cartoon" {
		t.Errorf("Expected captured photo record, got %+v", snap.Photo)
	}
}
