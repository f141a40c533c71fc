package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hamed0406/sitepulse/internal/domain"
)

func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAdd_PrefixesSchemeAndPrintsFirstCheck(t *testing.T) {
	var gotURL, gotKey string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotURL, _ = body["url"].(string)
		gotKey = r.Header.Get("X-API-Key")
		code := 200
		ms := int64(42)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"endpoint": domain.Endpoint{ID: "E1", URL: "https://shop.example"},
			"result":   domain.CheckResult{Record: domain.CheckRecord{Status: domain.StatusUp, StatusCode: &code, ResponseTimeMS: &ms}},
		})
	}))
	defer ts.Close()

	out, err := runCLI(t, "", "--api", ts.URL, "--key", "adm", "add", "shop.example")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if gotURL != "https://shop.example" || gotKey != "adm" {
		t.Fatalf("request wrong: url=%q key=%q", gotURL, gotKey)
	}
	if !strings.Contains(out, "Added https://shop.example (E1)") || !strings.Contains(out, "Latency: 42 ms") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestAdd_ReadsURLFromStdin(t *testing.T) {
	var gotURL string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotURL, _ = body["url"].(string)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"endpoint":{"id":"E2","url":"https://typed.example"}}`))
	}))
	defer ts.Close()

	if _, err := runCLI(t, "https://typed.example\n", "--api", ts.URL, "add"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if gotURL != "https://typed.example" {
		t.Fatalf("want url from stdin, got %q", gotURL)
	}
}

func TestCheck_SurfacesAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"check already in progress"}`))
	}))
	defer ts.Close()

	_, err := runCLI(t, "", "--api", ts.URL, "check", "E1")
	if err == nil || !strings.Contains(err.Error(), "409") || !strings.Contains(err.Error(), "in progress") {
		t.Fatalf("want 409 error, got %v", err)
	}
}

func TestDiagnose_SendsQuery(t *testing.T) {
	var q string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"diagnosis":"502 Bad Gateway: upstream"}`))
	}))
	defer ts.Close()

	out, err := runCLI(t, "", "--api", ts.URL, "diagnose", "--status", "502")
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	if q != "status=502" || !strings.Contains(out, "502 Bad Gateway") {
		t.Fatalf("query=%q out=%q", q, out)
	}
}

func TestList_PrintsTable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]domain.Endpoint{{ID: "E1", Name: "Shop", URL: "https://shop.example", Active: true}})
	}))
	defer ts.Close()

	out, err := runCLI(t, "", "--api", ts.URL, "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.Contains(out, "Shop") || !strings.Contains(out, "https://shop.example") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}
