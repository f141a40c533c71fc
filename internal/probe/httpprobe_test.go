package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPProbe_StatusOK(t *testing.T) {
	var ua string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	out := NewHTTPProbe().Probe(context.Background(), s.URL, 2*time.Second)
	ok, isSuccess := out.(Success)
	if !isSuccess {
		t.Fatalf("want success, got %+v", out)
	}
	if ok.StatusCode != 200 {
		t.Fatalf("want status 200, got %d", ok.StatusCode)
	}
	if !strings.HasPrefix(ua, "Mozilla/5.0") {
		t.Fatalf("want browser user agent, got %q", ua)
	}
	if ok.Duration() < 0 {
		t.Fatalf("duration should be >= 0, got %v", ok.Duration())
	}
}

func TestHTTPProbe_Status500IsSuccessVariant(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := NewHTTPProbe().Probe(context.Background(), s.URL, 2*time.Second)
	ok, isSuccess := out.(Success)
	if !isSuccess {
		t.Fatalf("a 500 answer is still a response, got %+v", out)
	}
	if ok.StatusCode != 500 {
		t.Fatalf("want status 500, got %d", ok.StatusCode)
	}
}

func TestHTTPProbe_FollowsRedirects(t *testing.T) {
	final := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(204)
	}))
	defer final.Close()
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, final.URL, http.StatusFound)
	}))
	defer s.Close()

	out := NewHTTPProbe().Probe(context.Background(), s.URL, 2*time.Second)
	if ok, isSuccess := out.(Success); !isSuccess || ok.StatusCode != 204 {
		t.Fatalf("want redirect followed to 204, got %+v", out)
	}
}

func TestHTTPProbe_TimeoutIsMeasuredFailure(t *testing.T) {
	// Server sleeps longer than the probe timeout
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := NewHTTPProbe().Probe(context.Background(), s.URL, 50*time.Millisecond)
	fail, isFailure := out.(Failure)
	if !isFailure {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if !strings.Contains(fail.Err.Error(), "timeout") {
		t.Fatalf("want timeout in error, got %q", fail.Err.Error())
	}
	if fail.Duration() < 50*time.Millisecond {
		t.Fatalf("want elapsed >= timeout, got %v", fail.Duration())
	}
}

func TestHTTPProbe_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	out := NewHTTPProbe().Probe(context.Background(), "http://"+addr, time.Second)
	fail, isFailure := out.(Failure)
	if !isFailure {
		t.Fatalf("want failure, got %+v", out)
	}
	if fail.Err == nil || fail.Err.Error() == "" {
		t.Fatalf("want non-empty error")
	}
}

func TestHTTPProbe_InvalidURL(t *testing.T) {
	out := NewHTTPProbe().Probe(context.Background(), "://bad", time.Second)
	if _, isFailure := out.(Failure); !isFailure {
		t.Fatalf("want failure for invalid URL, got %+v", out)
	}
}
