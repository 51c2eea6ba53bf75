package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
)

func TestFramesAreVGAJPEGs(t *testing.T) {
	for name, render := range map[string]func() ([]byte, error){"obstacle": obstacleFrame, "empty": emptyTrackFrame} {
		data, err := render()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if b := img.Bounds(); b.Dx() != frameWidth || b.Dy() != frameHeight {
			t.Fatalf("%s: unexpected size %v", name, b)
		}
	}
}

func TestRunPostsEveryTrigger(t *testing.T) {
	var mu sync.Mutex
	var triggers []string
	var rawBodies int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/analyze":
			mu.Lock()
			triggers = append(triggers, r.Header.Get("X-Trigger-Reason"))
			if r.Header.Get("Content-Type") == "image/jpeg" {
				rawBodies++
			}
			mu.Unlock()
			_, _ = io.WriteString(w, `{"success":true,"final_status":"SAFE"}`)
		case "/status":
			_, _ = io.WriteString(w, `{"overall_status":"SAFE"}`)
		case "/alerts":
			if r.URL.Query().Get("limit") != "2" {
				http.Error(w, "bad limit", http.StatusBadRequest)
				return
			}
			_, _ = io.WriteString(w, `{"alerts":[],"count":0}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	var out bytes.Buffer
	err := run([]string{"--url", srv.URL + "/", "--trigger", "HOLE,OBSTACLE", "--raw", "--limit", "2"}, &out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Join(triggers, ",") != "HOLE,OBSTACLE" || rawBodies != 2 {
		t.Fatalf("unexpected requests triggers=%v raw=%d", triggers, rawBodies)
	}
	if !strings.Contains(out.String(), `"overall_status": "SAFE"`) {
		t.Fatalf("status not printed:\n%s", out.String())
	}
}

func TestRunReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Empty image file"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := run([]string{"--url", srv.URL, "--trigger", "HOLE"}, io.Discard)
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("expected status error, got %v", err)
	}
}
