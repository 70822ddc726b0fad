package spool

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/posnet/pkg/posnet"
)

type fakeSender struct {
	mu       sync.Mutex
	payloads []string
}

func (f *fakeSender) Send(ctx context.Context, xmlPayload string) (string, error) {
	f.mu.Lock()
	f.payloads = append(f.payloads, xmlPayload)
	f.mu.Unlock()

	if strings.Contains(xmlPayload, "fail") {
		return "", errors.New("dial posnet.example.com:443: connection refused")
	}
	return "<reply>" + xmlPayload + "</reply>", nil
}

func (f *fakeSender) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}

func waitForFile(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if b, err := os.ReadFile(path); err == nil {
			return string(b)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", path)
	return ""
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startWatcher(t *testing.T, dir string, sender Sender) (stop func()) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.DebounceDelay = 20 * time.Millisecond
	cfg.RatePerSecond = 1000
	w := New(cfg, sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	return func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run() error = %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run() did not return after cancel")
		}
	}
}

func TestWatcher_ProcessesExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "001.xml"), "<sale/>")

	sender := &fakeSender{}
	stop := startWatcher(t, dir, sender)
	defer stop()

	if got := waitForFile(t, filepath.Join(dir, "001.resp")); got != "<reply><sale/></reply>" {
		t.Errorf("001.resp = %q", got)
	}

	writeFile(t, filepath.Join(dir, "002.xml"), "<reverse/>")
	if got := waitForFile(t, filepath.Join(dir, "002.resp")); got != "<reply><reverse/></reply>" {
		t.Errorf("002.resp = %q", got)
	}
}

func TestWatcher_WritesErrorFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bad.xml"), "<fail/>")

	stop := startWatcher(t, dir, &fakeSender{})
	defer stop()

	got := waitForFile(t, filepath.Join(dir, "bad.err"))
	if got != "dial posnet.example.com:443: connection refused" {
		t.Errorf("bad.err = %q", got)
	}
	if _, err := os.Stat(filepath.Join(dir, "bad.resp")); err == nil {
		t.Error("bad.resp should not exist")
	}
}

func TestWatcher_SkipsFilesWithResults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "done.xml"), "<done/>")
	writeFile(t, filepath.Join(dir, "done.resp"), "old")
	writeFile(t, filepath.Join(dir, ".hidden.xml"), "<hidden/>")
	writeFile(t, filepath.Join(dir, "next.xml"), "<next/>")

	sender := &fakeSender{}
	stop := startWatcher(t, dir, sender)

	waitForFile(t, filepath.Join(dir, "next.resp"))
	stop()

	if got := sender.sent(); len(got) != 1 || got[0] != "<next/>" {
		t.Errorf("sent = %v, want only <next/>", got)
	}
	if b, _ := os.ReadFile(filepath.Join(dir, "done.resp")); string(b) != "old" {
		t.Errorf("done.resp overwritten: %q", b)
	}
}

func TestWatcher_MissingDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "missing")
	w := New(cfg, &fakeSender{}, nil)

	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() on missing dir should fail")
	}
}

func TestResultPath(t *testing.T) {
	if got := resultPath("/spool/a.b.xml", responseExt); got != "/spool/a.b.resp" {
		t.Errorf("resultPath = %q", got)
	}
	if isRequest("/spool/x.resp") || isRequest("/spool/.x.xml") || !isRequest("/spool/x.xml") {
		t.Error("isRequest classification wrong")
	}
}

func TestWatcher_InterruptedSendLeavesNoResult(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	}))
	defer ts.Close()
	defer close(release)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sale.xml"), "<sale/>")

	stop := startWatcher(t, dir, posnet.New(ts.URL))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the gateway")
	}
	stop()

	for _, name := range []string{"sale.resp", "sale.err"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			t.Errorf("%s written for an interrupted send", name)
		}
	}

	sender := &fakeSender{}
	stop = startWatcher(t, dir, sender)
	defer stop()
	if got := waitForFile(t, filepath.Join(dir, "sale.resp")); got != "<reply><sale/></reply>" {
		t.Errorf("sale.resp after restart = %q", got)
	}
}
