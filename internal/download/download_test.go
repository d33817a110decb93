package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lumenhq/lumen/internal/domain"
)

func newTestServer(body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(http.StatusOK)
			return
		}

		if rangeHdr := r.Header.Get("Range"); rangeHdr != "" {
			start := parseRangeStart(rangeHdr)
			w.Header().Set("Content-Length", strconv.Itoa(len(body)-start))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write([]byte(body[start:]))
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	}))
}

func parseRangeStart(h string) int {
	h = strings.TrimPrefix(h, "bytes=")
	h = strings.TrimSuffix(h, "-")
	n, _ := strconv.Atoi(h)
	return n
}

func TestProbeSizeReturnsContentLength(t *testing.T) {
	srv := newTestServer("hello world")
	defer srv.Close()

	s := New()
	size, err := s.ProbeSize(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("ProbeSize: %v", err)
	}
	if size != 11 {
		t.Errorf("size = %d, want 11", size)
	}
}

func TestRunTaskFetchesFile(t *testing.T) {
	srv := newTestServer("abcdefghij")
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")

	s := New()
	task := domain.DownloadTask{
		ID: "t1",
		Items: []domain.DownloadItem{
			{URL: srv.URL, LocalPath: dest},
		},
	}
	if err := s.RunTask(context.Background(), task, domain.PolicyResumeAlways, nil); err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "abcdefghij" {
		t.Errorf("content = %q", data)
	}
}

func TestRunTaskResumesPartialFile(t *testing.T) {
	body := "0123456789"
	srv := newTestServer(body)
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dest, []byte("01234"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New()
	task := domain.DownloadTask{
		ID: "t1",
		Items: []domain.DownloadItem{
			{URL: srv.URL, LocalPath: dest, ExpectedBytes: int64(len(body))},
		},
	}
	if err := s.RunTask(context.Background(), task, domain.PolicyResumeAlways, nil); err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != body {
		t.Errorf("content = %q, want %q", data, body)
	}
}

func TestRunTaskAlreadyCompleteIsNoop(t *testing.T) {
	body := "0123456789"
	srv := newTestServer(body)
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dest, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New()
	task := domain.DownloadTask{
		ID: "t1",
		Items: []domain.DownloadItem{
			{URL: srv.URL, LocalPath: dest, ExpectedBytes: int64(len(body))},
		},
	}
	if err := s.RunTask(context.Background(), task, domain.PolicyResumeAlways, nil); err != nil {
		t.Fatalf("RunTask: %v", err)
	}
}

func TestRunTaskUnknownSizeDisablesResume(t *testing.T) {
	body := "0123456789"
	var sawRange bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// no Content-Length: size stays unknown
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Header.Get("Range") != "" {
			sawRange = true
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "out.bin")
	if err := os.WriteFile(dest, []byte("01234"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := New()
	task := domain.DownloadTask{
		ID:    "t1",
		Items: []domain.DownloadItem{{URL: srv.URL, LocalPath: dest}},
	}
	if err := s.RunTask(context.Background(), task, domain.PolicyResumeAlways, nil); err != nil {
		t.Fatalf("RunTask: %v", err)
	}

	if sawRange {
		t.Error("expected no Range request when the remote size is unknown")
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != body {
		t.Errorf("content = %q, want full refetch %q", data, body)
	}
}

func TestRunTaskDetachedHonorsWorkerCap(t *testing.T) {
	var inFlight, maxInFlight int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		w.Header().Set("Content-Length", "3")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte("xyz"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	s := New()
	s.MaxWorkers = 1

	items := make([]domain.DownloadItem, 6)
	for i := range items {
		items[i] = domain.DownloadItem{URL: srv.URL, LocalPath: filepath.Join(dir, "f"+strconv.Itoa(i)+".bin")}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	s.RunTaskDetached(context.Background(), domain.DownloadTask{ID: "t", Items: items}, domain.PolicyResumeAlways, func(err error) {
		if err != nil {
			t.Errorf("onComplete err = %v", err)
		}
		wg.Done()
	})
	wg.Wait()

	if got := atomic.LoadInt32(&maxInFlight); got > 1 {
		t.Errorf("max concurrent requests = %d, want at most 1 with MaxWorkers = 1", got)
	}
	for i := range items {
		if _, err := os.Stat(items[i].LocalPath); err != nil {
			t.Errorf("item %d missing: %v", i, err)
		}
	}
}

func TestRunTaskDetachedReportsAggregateCompletion(t *testing.T) {
	srv := newTestServer("xyz")
	defer srv.Close()

	dir := t.TempDir()
	s := New()
	task := domain.DownloadTask{
		ID: "t1",
		Items: []domain.DownloadItem{
			{URL: srv.URL, LocalPath: filepath.Join(dir, "a.bin")},
			{URL: srv.URL, LocalPath: filepath.Join(dir, "b.bin")},
			{URL: srv.URL, LocalPath: filepath.Join(dir, "c.bin")},
		},
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var completeErr error
	s.RunTaskDetached(context.Background(), task, domain.PolicyResumeAlways, func(err error) {
		completeErr = err
		wg.Done()
	})
	wg.Wait()

	if completeErr != nil {
		t.Errorf("onComplete err = %v, want nil", completeErr)
	}
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s missing: %v", name, err)
		}
	}
}
