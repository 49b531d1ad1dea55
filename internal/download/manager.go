// Package download owns all job-queue state. The queued and in-flight maps
// are private to the Manager; every other component goes through its
// accessors, including the progress report.
package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mangabot/internal/errorx"
	"mangabot/internal/fetch"
	"mangabot/internal/logger"
	"mangabot/internal/packager"
	"mangabot/internal/sanitize"
	"mangabot/internal/storage"
)

// queueWaitTimeout bounds the worker's wait so the running flag is observed
// promptly during shutdown. It is not a job deadline.
const queueWaitTimeout = time.Second

var (
	// ErrBusy means the identifier is already queued or in flight
	ErrBusy = errors.New("identifier already queued or in flight")
	// ErrStopped means the manager no longer admits new jobs
	ErrStopped = errors.New("download manager stopped")
)

// Job is one unit of queued work tied to exactly one identifier
type Job struct {
	ID         string
	UserID     string
	GroupID    string
	Private    bool
	EnqueuedAt time.Time
}

// Notifier delivers job outcome messages back to the requester. SendFile
// is only used in low-memory mode, where finished artifacts are pushed
// immediately instead of waiting for a send command.
type Notifier interface {
	SendText(userID, text, groupID string, private bool) error
	SendFile(userID, path, groupID string, private bool) error
}

// defaultDeleteDelay is how long a low-memory artifact survives after it
// has been auto-sent
const defaultDeleteDelay = 3 * time.Minute

// Config holds Manager construction parameters
type Config struct {
	OutputDir   string
	StagingDir  string
	Fetcher     fetch.ContentFetcher
	Packager    packager.Packager
	Notifier    Notifier
	Store       *storage.Store // optional download history
	LowMemory   bool
	DeleteDelay time.Duration // low-memory deletion delay, 0 means default
}

// Manager is a single-worker FIFO job queue. At most one job per identifier
// exists across the queued and in-flight maps at any time.
type Manager struct {
	mu       sync.Mutex
	queue    []Job
	queued   map[string]Job
	inflight map[string]bool
	running  bool

	wake chan struct{}
	wg   sync.WaitGroup
	ctx  context.Context

	outputDir   string
	stagingDir  string
	fetcher     fetch.ContentFetcher
	pack        packager.Packager
	notifier    Notifier
	store       *storage.Store
	recovery    *errorx.Handler
	lowMemory   bool
	deleteDelay time.Duration
}

// NewManager creates a stopped Manager; call Start to begin processing
func NewManager(cfg Config) *Manager {
	delay := cfg.DeleteDelay
	if delay <= 0 {
		delay = defaultDeleteDelay
	}
	return &Manager{
		queue:       nil,
		queued:      make(map[string]Job),
		inflight:    make(map[string]bool),
		wake:        make(chan struct{}, 1),
		outputDir:   cfg.OutputDir,
		stagingDir:  cfg.StagingDir,
		fetcher:     cfg.Fetcher,
		pack:        cfg.Packager,
		notifier:    cfg.Notifier,
		store:       cfg.Store,
		recovery:    errorx.NewHandler(),
		lowMemory:   cfg.LowMemory,
		deleteDelay: delay,
	}
}

// Start launches the worker goroutine
func (m *Manager) Start(ctx context.Context) error {
	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.MkdirAll(m.stagingDir, 0755); err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}

	if m.lowMemory {
		if n, err := m.purgeArtifacts(); err != nil {
			logger.Warnf("Low-memory mode: startup purge failed: %v", err)
		} else if n > 0 {
			logger.Infof("Low-memory mode: purged %d leftover artifacts at startup", n)
		}
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	m.mu.Unlock()

	m.ctx = ctx
	m.wg.Add(1)
	go m.worker()

	logger.Infof("Download manager started (output: %s)", m.outputDir)
	return nil
}

// Submit registers a job unless its identifier is already queued or in
// flight. The check and the registration happen under one lock, so two
// concurrent events for the same identifier cannot both be admitted.
func (m *Manager) Submit(job Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return ErrStopped
	}
	if _, ok := m.queued[job.ID]; ok {
		return ErrBusy
	}
	if m.inflight[job.ID] {
		return ErrBusy
	}

	job.EnqueuedAt = time.Now()
	m.queued[job.ID] = job
	m.queue = append(m.queue, job)

	select {
	case m.wake <- struct{}{}:
	default:
	}

	logger.Infof("Download manager: queued album %s for user %s", job.ID, job.UserID)
	return nil
}

// IsBusy reports whether the identifier is queued or in flight
func (m *Manager) IsBusy(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queued[id]; ok {
		return true
	}
	return m.inflight[id]
}

// Progress returns a live snapshot of in-flight and queued identifiers.
// Queued ids are in submission order.
func (m *Manager) Progress() (inflight []string, queued []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.inflight {
		inflight = append(inflight, id)
	}
	for _, job := range m.queue {
		queued = append(queued, job.ID)
	}
	return inflight, queued
}

// Shutdown stops admission, waits for the in-flight job to finish, and
// discards any jobs still queued. It is a graceful drain, not preemption.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}

	m.wg.Wait()

	m.mu.Lock()
	dropped := len(m.queue)
	m.queue = nil
	m.queued = make(map[string]Job)
	m.mu.Unlock()

	if dropped > 0 {
		logger.Infof("Download manager: dropped %d queued jobs on shutdown", dropped)
	}
	logger.Infof("Download manager stopped")
}

// worker is the single long-lived consumer of the queue
func (m *Manager) worker() {
	defer m.wg.Done()

	for {
		job, ok := m.next()
		if !ok {
			m.mu.Lock()
			running := m.running
			m.mu.Unlock()
			if !running {
				return
			}

			select {
			case <-m.wake:
			case <-time.After(queueWaitTimeout):
			}
			continue
		}

		m.process(job)
	}
}

// next dequeues the head job and moves it into the in-flight map. It
// returns false when the queue is empty or the manager is stopping, so a
// job queued behind a shutdown never starts.
func (m *Manager) next() (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running || len(m.queue) == 0 {
		return Job{}, false
	}

	job := m.queue[0]
	m.queue = m.queue[1:]
	delete(m.queued, job.ID)
	m.inflight[job.ID] = true
	return job, true
}

// process runs one job. The in-flight entry is removed on every exit path,
// including panics, so an identifier can never become permanently busy.
func (m *Manager) process(job Job) {
	defer func() {
		m.mu.Lock()
		delete(m.inflight, job.ID)
		m.mu.Unlock()
	}()

	start := time.Now()
	var title string

	err := m.recovery.WithRecovery(func() error {
		var runErr error
		title, runErr = m.runJob(job)
		return runErr
	})

	duration := time.Since(start)

	if err != nil {
		logger.Errorf("Download manager: album %s failed after %s: %v", job.ID, duration.Round(time.Millisecond), err)
		m.record(job, title, storage.StatusFailed, err.Error(), duration)
		m.notify(job, fmt.Sprintf("❌ 下载失败：%v\n\n快让主人帮我检查一下∑(O_O；)", err))
		return
	}

	logger.Infof("Download manager: album %s done in %s", job.ID, duration.Round(time.Millisecond))
	m.record(job, title, storage.StatusOK, "", duration)

	if m.lowMemory {
		m.notify(job, fmt.Sprintf("✅ദ്ദി˶>ω<)✧ 漫画ID %s 下载并转换完成！\n\n⚠️ 低占用模式：文件发送后%s内会自动删除", job.ID, m.deleteDelay))
		m.pushArtifact(job)
		return
	}
	m.notify(job, fmt.Sprintf("✅ദ്ദി˶>ω<)✧ 漫画ID %s 下载并转换完成！\n\n友情提示：输入'发送 %s'可以把文件发给您", job.ID, job.ID))
}

// pushArtifact sends the finished file to the requester right away and
// schedules its removal. Low-memory mode only; in the normal mode the
// user pulls files with the send command.
func (m *Manager) pushArtifact(job Job) {
	if m.notifier == nil {
		return
	}
	path := m.FindArtifact(job.ID)
	if path == "" {
		logger.Warnf("Download manager: artifact for album %s vanished before push", job.ID)
		return
	}
	if err := m.notifier.SendFile(job.UserID, path, job.GroupID, job.Private); err != nil {
		logger.Errorf("Download manager: failed to push %s to user %s: %v", path, job.UserID, err)
	}

	time.AfterFunc(m.deleteDelay, func() {
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				logger.Warnf("Low-memory mode: failed to remove %s: %v", path, err)
			}
			return
		}
		logger.Infof("Low-memory mode: removed %s", filepath.Base(path))
	})
	logger.Infof("Low-memory mode: %s scheduled for removal in %s", filepath.Base(path), m.deleteDelay)
}

// purgeArtifacts removes every finished artifact from the output
// directory. Low-memory startups begin with an empty shelf.
func (m *Manager) purgeArtifacts() (int, error) {
	removed := 0
	for _, name := range m.ListArtifacts() {
		if err := os.Remove(filepath.Join(m.outputDir, name)); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// runJob executes the fetch → package → publish pipeline inside a private
// staging directory. Staging is removed on every exit path; the artifact
// only appears in the shared output directory once complete.
func (m *Manager) runJob(job Job) (string, error) {
	staging := filepath.Join(m.stagingDir, job.ID)
	if err := os.RemoveAll(staging); err != nil {
		return "", fmt.Errorf("failed to clear staging: %w", err)
	}
	if err := os.MkdirAll(staging, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging: %w", err)
	}
	defer os.RemoveAll(staging)

	album, err := m.fetcher.Fetch(m.ctx, job.ID, staging)
	if err != nil {
		return "", err
	}
	if len(album.Pages) == 0 {
		return "", fmt.Errorf("fetch returned no pages for album %s", job.ID)
	}

	name := job.ID
	if album.Title != "" {
		name = job.ID + "-" + sanitize.FilenameSafe(album.Title)
	}

	tmp := filepath.Join(staging, name+m.pack.Ext())
	if err := m.pack.Pack(album.Pages, tmp); err != nil {
		return album.Title, fmt.Errorf("packaging failed: %w", err)
	}

	final := filepath.Join(m.outputDir, name+m.pack.Ext())
	if err := os.Rename(tmp, final); err != nil {
		return album.Title, fmt.Errorf("failed to publish artifact: %w", err)
	}

	return album.Title, nil
}

func (m *Manager) record(job Job, title, status, detail string, duration time.Duration) {
	if m.store == nil {
		return
	}
	if err := m.store.RecordDownload(job.ID, title, job.UserID, status, detail, duration); err != nil {
		logger.Warnf("Download manager: failed to record history for %s: %v", job.ID, err)
	}
}

func (m *Manager) notify(job Job, text string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.SendText(job.UserID, text, job.GroupID, job.Private); err != nil {
		logger.Errorf("Download manager: failed to notify user %s about album %s: %v", job.UserID, job.ID, err)
	}
}

// SweepStaging removes staging directories older than maxAge that are not
// tied to a busy identifier. Leftovers appear when the process dies mid-job.
func (m *Manager) SweepStaging(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(m.stagingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	cutoff := time.Now().Add(-maxAge)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if m.IsBusy(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(m.stagingDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			logger.Warnf("Download manager: failed to sweep staging dir %s: %v", path, err)
			continue
		}
		removed++
	}

	return removed, nil
}
