package httpx

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSONRejectsUnknownAndTrailing(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Name != "Ada" {
		t.Fatalf("unexpected decode result: %v %+v", err, dst)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada","role":"admin"}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected unknown field error")
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Ada"}{}`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected trailing data error")
	}
}

func TestWriteFieldError(t *testing.T) {
	rw := httptest.NewRecorder()
	WriteFieldError(rw, http.StatusBadRequest, "date", "date is in the past")
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rw.Code)
	}
	if got := rw.Body.String(); got != `{"error":"date is in the past","field":"date"}` {
		t.Fatalf("unexpected body %s", got)
	}
}
