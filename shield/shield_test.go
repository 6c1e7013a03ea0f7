package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hazyhaar/pif/kit"
)

func chain(h http.Handler, mws []func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func TestDefaultStack_Headers(t *testing.T) {
	var traceID, transport string
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID = kit.GetTraceID(r.Context())
		transport, _ = r.Context().Value(kit.TransportKey).(string)
		w.WriteHeader(http.StatusOK)
	}), DefaultStack(1024))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing nosniff")
	}
	if rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Error("missing X-Frame-Options")
	}
	if traceID == "" || rec.Header().Get("X-Trace-ID") != traceID {
		t.Errorf("trace id: ctx=%q header=%q", traceID, rec.Header().Get("X-Trace-ID"))
	}
	if transport != "http" {
		t.Errorf("transport = %q, want http set explicitly", transport)
	}
}

func TestMaxBody(t *testing.T) {
	var readErr error
	h := MaxBody(10)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789abc")))
	if readErr == nil {
		t.Fatal("expected error reading oversized body")
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("short")))
	if readErr != nil {
		t.Fatalf("unexpected error: %v", readErr)
	}
}

func TestMaxBody_IgnoresGet(t *testing.T) {
	var readErr error
	h := MaxBody(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", strings.NewReader("longer than four")))
	if readErr != nil {
		t.Fatalf("GET body capped: %v", readErr)
	}
}

func TestRequestIdentity_PageID(t *testing.T) {
	var pageID string
	h := RequestIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pageID = kit.GetPageID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upgrade", nil)
	req.Header.Set(PageIDHeader, "home")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if pageID != "home" {
		t.Errorf("page id = %q", pageID)
	}
	if rec.Header().Get(PageIDHeader) != "home" {
		t.Errorf("echoed page id = %q", rec.Header().Get(PageIDHeader))
	}

	pageID = "unset"
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if pageID != "" {
		t.Errorf("page id without header = %q", pageID)
	}
}

func TestHeadToGet(t *testing.T) {
	var method string
	h := HeadToGet(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodHead, "/", nil))
	if method != http.MethodGet {
		t.Errorf("method = %s", method)
	}
}
