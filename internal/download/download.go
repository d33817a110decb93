// Package download implements the resumable file-acquisition service:
// size probing, synchronous fetch with atomic pre-flight validation, and a
// detached fan-out mode with an aggregate completion signal.
package download

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/lumenhq/lumen/internal/domain"
	"github.com/lumenhq/lumen/internal/logx"
	"github.com/lumenhq/lumen/internal/metrics"
)

var log = logx.New("download")

// Prompter asks an interactive yes/no question, used only under
// domain.PolicyPrompt. The CLI façade supplies a real terminal prompter;
// tests and the HTTP path never reach it since they run under
// PolicyResumeAlways/PolicyRestartAlways.
type Prompter func(question string) bool

// Service executes download tasks, resuming partial files where the
// remote server supports byte ranges.
type Service struct {
	Client  *http.Client
	Prompt  Prompter
	BufSize int

	// MaxWorkers caps how many detached items fetch concurrently.
	// Zero or negative means one worker per item, uncapped.
	MaxWorkers int
}

// New returns a Service with production defaults.
func New() *Service {
	return &Service{
		Client:  &http.Client{},
		BufSize: 256 * 1024,
	}
}

// ProbeSize performs a HEAD request following redirects. A status of 400
// or above, or a transport failure, returns domain.ErrNetwork. A reply
// without a Content-Length returns 0 (unknown size), which disables
// resume for that item rather than failing the probe.
func (s *Service) ProbeSize(ctx context.Context, url string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, fmt.Errorf("%w: HEAD %s: status %d", domain.ErrNetwork, url, resp.StatusCode)
	}
	if resp.ContentLength <= 0 {
		return 0, nil
	}
	return resp.ContentLength, nil
}

func (s *Service) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *Service) bufSize() int {
	if s.BufSize > 0 {
		return s.BufSize
	}
	return 256 * 1024
}

// RunTask executes every item synchronously, in order. Pre-flight: every
// item is probed first (populating ExpectedBytes); if any probe fails the
// whole task aborts before a single byte is written. onProgress, if set,
// receives the item index and its bytes-so-far/total after every write.
func (s *Service) RunTask(ctx context.Context, task domain.DownloadTask, policy domain.ResumePolicy, onProgress func(item int, have, total int64)) (err error) {
	defer func() {
		if err != nil {
			log.Errorf("task %s failed: %v", task.ID, err)
		}
	}()

	items := make([]domain.DownloadItem, len(task.Items))
	copy(items, task.Items)

	for i := range items {
		if items[i].ExpectedBytes > 0 {
			continue
		}
		size, perr := s.ProbeSize(ctx, items[i].URL)
		if perr != nil {
			return fmt.Errorf("probe item %d: %w", i, perr)
		}
		items[i].ExpectedBytes = size
	}

	for i, item := range items {
		if err := s.fetchItem(ctx, item, policy, func(have, total int64) {
			if onProgress != nil {
				onProgress(i, have, total)
			}
		}); err != nil {
			return fmt.Errorf("item %d (%s): %w", i, item.LocalPath, err)
		}
	}
	return nil
}

// RunTaskDetached spawns one goroutine per item and returns immediately. A
// supervisor goroutine drains a results channel and invokes onComplete
// exactly once, after every item has reported a terminal status. A
// failed sibling never stops the others.
func (s *Service) RunTaskDetached(ctx context.Context, task domain.DownloadTask, policy domain.ResumePolicy, onComplete func(err error)) {
	items := make([]domain.DownloadItem, len(task.Items))
	copy(items, task.Items)

	results := make(chan error, len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))

	var sem chan struct{}
	if s.MaxWorkers > 0 {
		sem = make(chan struct{}, s.MaxWorkers)
	}

	for _, item := range items {
		item := item
		go func() {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			metrics.DownloadsActive.Inc()
			defer metrics.DownloadsActive.Dec()
			defer wg.Done()
			if item.ExpectedBytes <= 0 {
				if size, perr := s.ProbeSize(ctx, item.URL); perr == nil {
					item.ExpectedBytes = size
				}
			}
			err := s.fetchItem(ctx, item, policy, nil)
			if err != nil {
				log.Errorf("detached item %s failed: %v", item.LocalPath, err)
				metrics.DownloadsFailed.WithLabelValues("transport").Inc()
			}
			results <- err
		}()
	}

	go func() {
		wg.Wait()
		close(results)

		var first error
		for err := range results {
			if err != nil && first == nil {
				first = err
			}
		}
		if onComplete != nil {
			onComplete(first)
		}
	}()
}

// fetchItem implements the single-item resume protocol: probe what's
// already on disk, decide whether to resume, restart, or skip, then
// stream the remainder with a Range request.
func (s *Service) fetchItem(ctx context.Context, item domain.DownloadItem, policy domain.ResumePolicy, onProgress func(have, total int64)) error {
	if err := os.MkdirAll(filepath.Dir(item.LocalPath), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	have := int64(0)
	if fi, err := os.Stat(item.LocalPath); err == nil {
		have = fi.Size()
	}

	resume := true
	restart := false

	if have > 0 && item.ExpectedBytes <= 0 {
		// unknown remote size disables resume: refetch from zero.
		restart = true
	} else if have > 0 {
		missing := item.ExpectedBytes - have
		switch {
		case missing > 0:
			resume, restart = s.decide(policy, "Continue download [Y/n]? ", true)
		case missing == 0:
			// already complete; "Re-download [Y/n]?" defaults to yes
			// (restart) under PolicyPrompt; non-interactive paths treat
			// equal size as already-downloaded and return immediately.
			if policy == domain.PolicyPrompt {
				yes := true
				if s.Prompt != nil {
					yes = s.Prompt("Re-download [Y/n]? ")
				}
				if !yes {
					return nil
				}
				restart = true
			} else {
				return nil
			}
		default:
			restart = true
		}
	}

	flags := os.O_CREATE | os.O_WRONLY
	startAt := int64(0)
	if restart || have == 0 {
		flags |= os.O_TRUNC
	} else if resume {
		flags |= os.O_APPEND
		startAt = have
	}

	f, err := os.OpenFile(item.LocalPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open: %v", domain.ErrIO, err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, item.URL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	if startAt > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", startAt))
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: GET %s: status %d", domain.ErrNetwork, item.URL, resp.StatusCode)
	}

	total := item.ExpectedBytes
	if resp.ContentLength > 0 {
		total = resp.ContentLength + startAt
	}

	w := bufio.NewWriterSize(f, s.bufSize())
	buf := make([]byte, s.bufSize())
	downloaded := startAt

	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// leave the partial file in place to permit a future resume.
				return fmt.Errorf("%w: write: %v", domain.ErrIO, werr)
			}
			downloaded += int64(n)
			metrics.DownloadBytesTotal.WithLabelValues(filepath.Base(filepath.Dir(item.LocalPath))).Add(float64(n))
			if onProgress != nil {
				onProgress(downloaded, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = w.Flush()
			// transport error: log and leave the partial file for resume.
			return fmt.Errorf("%w: %v", domain.ErrNetwork, rerr)
		}
	}
	return w.Flush()
}

// decide applies a ResumePolicy to a resume/restart fork. s.Prompt is only
// invoked under PolicyPrompt; without one, defaultYes is the answer.
func (s *Service) decide(policy domain.ResumePolicy, question string, defaultYes bool) (resume, restart bool) {
	switch policy {
	case domain.PolicyResumeAlways:
		return true, false
	case domain.PolicyRestartAlways:
		return false, true
	default: // PolicyPrompt
		yes := defaultYes
		if s.Prompt != nil {
			yes = s.Prompt(question)
		}
		if yes {
			return true, false
		}
		return false, true
	}
}
