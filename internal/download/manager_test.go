package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mangabot/internal/fetch"
)

type fakeFetcher struct {
	mu    sync.Mutex
	order []string
	fail  map[string]bool
	delay time.Duration
}

func (f *fakeFetcher) Fetch(ctx context.Context, id, destDir string) (*fetch.Album, error) {
	f.mu.Lock()
	f.order = append(f.order, id)
	shouldFail := f.fail[id]
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if shouldFail {
		return nil, errors.New("album not found")
	}

	page := filepath.Join(destDir, "0001.jpg")
	if err := os.WriteFile(page, []byte("img"), 0644); err != nil {
		return nil, err
	}
	return &fetch.Album{ID: id, Title: "t" + id, Pages: []string{page}}, nil
}

func (f *fakeFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

type fakePackager struct{}

func (fakePackager) Pack(pages []string, outPath string) error {
	return os.WriteFile(outPath, []byte("book"), 0644)
}

func (fakePackager) Ext() string { return ".pdf" }

type fakeNotifier struct {
	mu    sync.Mutex
	msgs  []string
	files []string
}

func (n *fakeNotifier) SendText(userID, text, groupID string, private bool) error {
	n.mu.Lock()
	n.msgs = append(n.msgs, text)
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) SendFile(userID, path, groupID string, private bool) error {
	n.mu.Lock()
	n.files = append(n.files, path)
	n.mu.Unlock()
	return nil
}

func newTestManager(t *testing.T, f *fakeFetcher) (*Manager, *fakeNotifier) {
	t.Helper()
	dir := t.TempDir()
	n := &fakeNotifier{}
	m := NewManager(Config{
		OutputDir:  filepath.Join(dir, "out"),
		StagingDir: filepath.Join(dir, "staging"),
		Fetcher:    f,
		Packager:   fakePackager{},
		Notifier:   n,
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return m, n
}

func waitIdle(t *testing.T, m *Manager) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		inflight, queued := m.Progress()
		if len(inflight) == 0 && len(queued) == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("manager did not drain in time")
}

func TestSubmitProcessesFIFO(t *testing.T) {
	f := &fakeFetcher{delay: 20 * time.Millisecond}
	m, _ := newTestManager(t, f)
	defer m.Shutdown()

	ids := []string{"111", "222", "333"}
	for _, id := range ids {
		if err := m.Submit(Job{ID: id, UserID: "9", Private: true}); err != nil {
			t.Fatalf("Submit(%s) failed: %v", id, err)
		}
	}

	waitIdle(t, m)

	got := f.fetched()
	if len(got) != len(ids) {
		t.Fatalf("fetched %d albums, want %d", len(got), len(ids))
	}
	for i, id := range ids {
		if got[i] != id {
			t.Errorf("fetch order[%d] = %s, want %s", i, got[i], id)
		}
	}

	for _, id := range ids {
		if !m.HasArtifact(id) {
			t.Errorf("no artifact for album %s", id)
		}
	}
}

func TestSubmitRejectsDuplicate(t *testing.T) {
	f := &fakeFetcher{delay: 200 * time.Millisecond}
	m, _ := newTestManager(t, f)
	defer m.Shutdown()

	if err := m.Submit(Job{ID: "555", UserID: "9"}); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	if err := m.Submit(Job{ID: "555", UserID: "9"}); !errors.Is(err, ErrBusy) {
		t.Errorf("duplicate Submit = %v, want ErrBusy", err)
	}
	if !m.IsBusy("555") {
		t.Error("IsBusy(555) = false while queued or in flight")
	}

	waitIdle(t, m)

	// identifier is free again after completion
	if m.IsBusy("555") {
		t.Error("IsBusy(555) = true after completion")
	}
	if err := m.Submit(Job{ID: "555", UserID: "9"}); err != nil {
		t.Errorf("resubmit after completion failed: %v", err)
	}
	waitIdle(t, m)
}

func TestFailedJobClearsInFlight(t *testing.T) {
	f := &fakeFetcher{fail: map[string]bool{"404": true}}
	m, n := newTestManager(t, f)
	defer m.Shutdown()

	if err := m.Submit(Job{ID: "404", UserID: "9", Private: true}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitIdle(t, m)

	if m.IsBusy("404") {
		t.Error("identifier still busy after failed job")
	}
	if m.HasArtifact("404") {
		t.Error("failed job left an artifact")
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) != 1 {
		t.Fatalf("got %d notifications, want 1", len(n.msgs))
	}
}

func TestShutdownDrainsAndDiscards(t *testing.T) {
	f := &fakeFetcher{delay: 100 * time.Millisecond}
	m, _ := newTestManager(t, f)

	for i := 0; i < 4; i++ {
		if err := m.Submit(Job{ID: fmt.Sprintf("%d", 100+i), UserID: "9"}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	// let the worker pick up the head job before stopping
	time.Sleep(30 * time.Millisecond)
	m.Shutdown()

	inflight, queued := m.Progress()
	if len(inflight) != 0 || len(queued) != 0 {
		t.Errorf("after shutdown: %d in flight, %d queued, want 0/0", len(inflight), len(queued))
	}

	if err := m.Submit(Job{ID: "777", UserID: "9"}); !errors.Is(err, ErrStopped) {
		t.Errorf("Submit after shutdown = %v, want ErrStopped", err)
	}
}

func TestProgressSnapshot(t *testing.T) {
	f := &fakeFetcher{delay: 300 * time.Millisecond}
	m, _ := newTestManager(t, f)
	defer m.Shutdown()

	for _, id := range []string{"1", "2", "3"} {
		if err := m.Submit(Job{ID: id, UserID: "9"}); err != nil {
			t.Fatalf("Submit failed: %v", err)
		}
	}

	time.Sleep(50 * time.Millisecond)
	inflight, queued := m.Progress()
	if len(inflight) != 1 || inflight[0] != "1" {
		t.Errorf("inflight = %v, want [1]", inflight)
	}
	if len(queued) != 2 || queued[0] != "2" || queued[1] != "3" {
		t.Errorf("queued = %v, want [2 3]", queued)
	}

	waitIdle(t, m)
}

func TestDeleteArtifact(t *testing.T) {
	f := &fakeFetcher{}
	m, _ := newTestManager(t, f)
	defer m.Shutdown()

	if err := m.Submit(Job{ID: "42", UserID: "9"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitIdle(t, m)

	removed, err := m.DeleteArtifact("42")
	if err != nil {
		t.Fatalf("DeleteArtifact failed: %v", err)
	}
	if !removed {
		t.Error("DeleteArtifact reported nothing removed")
	}
	if m.HasArtifact("42") {
		t.Error("artifact still present after delete")
	}

	removed, err = m.DeleteArtifact("42")
	if err != nil || removed {
		t.Errorf("second delete = (%v, %v), want (false, nil)", removed, err)
	}
}

func TestArtifactID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"123-某漫画标题.pdf", "123"},
		{"123.pdf", "123"},
		{"456-title-with-dashes.cbz", "456"},
		{"789.CBZ", "789"},
		{"notes.txt", ""},
		{"123-partial.part", ""},
	}
	for _, tt := range tests {
		if got := artifactID(tt.name); got != tt.want {
			t.Errorf("artifactID(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestLowMemoryMode(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	if err := os.MkdirAll(out, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(out, "999-old.pdf"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	n := &fakeNotifier{}
	m := NewManager(Config{
		OutputDir:   out,
		StagingDir:  filepath.Join(dir, "staging"),
		Fetcher:     &fakeFetcher{},
		Packager:    fakePackager{},
		Notifier:    n,
		LowMemory:   true,
		DeleteDelay: 50 * time.Millisecond,
	})
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer m.Shutdown()

	if m.HasArtifact("999") {
		t.Error("startup purge left an old artifact behind")
	}

	if err := m.Submit(Job{ID: "123", UserID: "1"}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	waitIdle(t, m)

	n.mu.Lock()
	pushed := len(n.files)
	n.mu.Unlock()
	if pushed != 1 {
		t.Fatalf("auto-sent files = %d, want 1", pushed)
	}

	deadline := time.Now().Add(2 * time.Second)
	for m.HasArtifact("123") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if m.HasArtifact("123") {
		t.Error("artifact survived past the deletion delay")
	}
}

func TestSweepStaging(t *testing.T) {
	f := &fakeFetcher{}
	m, _ := newTestManager(t, f)
	defer m.Shutdown()

	stale := filepath.Join(m.stagingDir, "900")
	if err := os.MkdirAll(stale, 0755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(m.stagingDir, "901")
	if err := os.MkdirAll(fresh, 0755); err != nil {
		t.Fatal(err)
	}

	removed, err := m.SweepStaging(24 * time.Hour)
	if err != nil {
		t.Fatalf("SweepStaging failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("swept %d dirs, want 1", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale staging dir survived sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh staging dir was swept")
	}
}
