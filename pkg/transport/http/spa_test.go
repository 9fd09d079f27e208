package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/fstest"
)

func testBundle() fstest.MapFS {
	return fstest.MapFS{
		"index.html": {Data: []byte("<html><body>chat</body></html>")},
		"app.js":     {Data: []byte("console.log('app')")},
		"style.css":  {Data: []byte("body{}")},
	}
}

func TestSPAServesFiles(t *testing.T) {
	h := spaHandler(testBundle())

	tests := []struct {
		path     string
		wantBody string
		wantType string
	}{
		{"/", "<html><body>chat</body></html>", "text/html"},
		{"/index.html", "<html><body>chat</body></html>", "text/html"},
		{"/app.js", "console.log('app')", "javascript"},
		{"/style.css", "body{}", "text/css"},
		{"/some/client/route", "<html><body>chat</body></html>", "text/html"},
		{"/missing.png", "<html><body>chat</body></html>", "text/html"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want it to contain %q", ct, tt.wantType)
			}
		})
	}
}

func TestSPAUnknownAPIPath(t *testing.T) {
	h := spaHandler(testBundle())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSPAMissingIndex(t *testing.T) {
	h := spaHandler(fstest.MapFS{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
