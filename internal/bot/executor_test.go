package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mangabot/internal/config"
	"mangabot/internal/download"
	"mangabot/internal/storage"
	"mangabot/internal/transport"
)

func newTestExecutor(t *testing.T, perm config.PermissionsConfig) (*Executor, *download.Manager, *recordingSender) {
	t.Helper()
	dir := t.TempDir()
	m := download.NewManager(download.Config{
		OutputDir:  filepath.Join(dir, "out"),
		StagingDir: filepath.Join(dir, "staging"),
		Fetcher:    stubFetcher{},
		Packager:   stubPackager{},
	})
	if err := os.MkdirAll(filepath.Join(dir, "out"), 0755); err != nil {
		t.Fatal(err)
	}
	sender := newRecordingSender()
	exec := NewExecutor(m, NewGate(perm), sender, nil, "v1")
	return exec, m, sender
}

func privateEvent(user, text string) transport.Event {
	return transport.Event{
		PostType:    transport.PostMsg,
		MessageType: transport.MsgPrivate,
		UserID:      user,
		RawMessage:  text,
	}
}

func TestExecuteHelpAndWelcome(t *testing.T) {
	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{})

	exec.Execute(privateEvent("1", "帮助"))
	if got := sender.lastText(t); !strings.Contains(got, "下载") {
		t.Errorf("help text = %q", got)
	}

	exec.Execute(privateEvent("1", "早上好"))
	if got := sender.lastText(t); !strings.Contains(got, "帮助") {
		t.Errorf("welcome text = %q, want pointer to help", got)
	}
}

func TestExecuteValidationError(t *testing.T) {
	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{})

	exec.Execute(privateEvent("1", "下载 abc"))
	if got := sender.lastText(t); !strings.Contains(got, "abc") {
		t.Errorf("validation error = %q, want it to name the bad token", got)
	}

	exec.Execute(privateEvent("1", "进度 123"))
	if got := sender.lastText(t); !strings.Contains(got, "不需要参数") {
		t.Errorf("arity error = %q", got)
	}
}

func TestExecuteQueryAbsent(t *testing.T) {
	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{})

	exec.Execute(privateEvent("1", "查询 123 456"))
	got := sender.lastText(t)
	if !strings.Contains(got, "123") || !strings.Contains(got, "456") {
		t.Errorf("query reply = %q, want both ids reported", got)
	}
	if !strings.Contains(got, "还没有下载过") {
		t.Errorf("query reply = %q, want absent status", got)
	}
}

func TestExecuteDownloadQueuesAndDedupes(t *testing.T) {
	exec, m, sender := newTestExecutor(t, config.PermissionsConfig{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Shutdown()

	exec.Execute(privateEvent("1", "下载 123"))
	if got := sender.lastText(t); !strings.Contains(got, "123") {
		t.Errorf("queue ack = %q", got)
	}

	deadline := time.Now().Add(3 * time.Second)
	for !m.HasArtifact("123") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !m.HasArtifact("123") {
		t.Fatal("download never finished")
	}

	exec.Execute(privateEvent("1", "下载 123"))
	if got := sender.lastText(t); !strings.Contains(got, "已经下载过") {
		t.Errorf("dedup reply = %q, want already-downloaded notice", got)
	}
}

func TestExecuteBatchDownloadAggregatesReply(t *testing.T) {
	exec, m, sender := newTestExecutor(t, config.PermissionsConfig{})
	if err := m.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer m.Shutdown()

	for _, id := range []string{"111", "222"} {
		exec.Execute(privateEvent("1", "下载 "+id))
		deadline := time.Now().Add(3 * time.Second)
		for !m.HasArtifact(id) && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		if !m.HasArtifact(id) {
			t.Fatalf("download of %s never finished", id)
		}
	}

	before := sender.count()
	exec.Execute(privateEvent("1", "下载 111,222"))
	if got := sender.count() - before; got != 1 {
		t.Fatalf("batch over existing artifacts sent %d replies, want one summary", got)
	}
	got := sender.lastText(t)
	if !strings.Contains(got, "共2个") || !strings.Contains(got, "成功2个") {
		t.Errorf("batch summary = %q, want tallied counts", got)
	}

	before = sender.count()
	exec.Execute(privateEvent("1", "下载 111,333"))
	if got := sender.count() - before; got != 1 {
		t.Fatalf("mixed batch sent %d replies, want one", got)
	}
	got = sender.lastText(t)
	if !strings.Contains(got, "333") || !strings.Contains(got, "已加入下载队列") {
		t.Errorf("mixed batch reply = %q, want queue ack for the new id", got)
	}
}

func TestExecuteDeletePermissions(t *testing.T) {
	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{DeleteUsers: []string{"100"}})

	exec.Execute(privateEvent("200", "删除 123"))
	if got := sender.lastText(t); !strings.Contains(got, "没有删除权限") {
		t.Errorf("unauthorized delete reply = %q", got)
	}

	exec.Execute(privateEvent("100", "删除 123"))
	if got := sender.lastText(t); !strings.Contains(got, "没有找到") {
		t.Errorf("delete of absent artifact reply = %q", got)
	}
}

func TestExecuteDeleteDisabled(t *testing.T) {
	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{DeleteUsers: []string{"100", "200"}})

	exec.Execute(privateEvent("100", "删除 123"))
	if got := sender.lastText(t); !strings.Contains(got, "没有开启") {
		t.Errorf("disabled delete reply = %q", got)
	}
}

func TestExecuteSkipsReplyWhenDisconnected(t *testing.T) {
	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{})
	sender.setOffline(true)

	exec.Execute(privateEvent("1", "版本"))
	exec.Execute(privateEvent("1", "发送 123"))
	if got := sender.count(); got != 0 {
		t.Errorf("sends while disconnected = %d, want none", got)
	}

	sender.setOffline(false)
	exec.Execute(privateEvent("1", "版本"))
	if got := sender.lastText(t); !strings.Contains(got, "v1") {
		t.Errorf("reply after reconnect = %q", got)
	}
}

func TestExecuteHistoryWithoutStore(t *testing.T) {
	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{})

	exec.Execute(privateEvent("1", "漫画历史"))
	if got := sender.lastText(t); !strings.Contains(got, "没有开启") {
		t.Errorf("history reply = %q", got)
	}
}

func TestExecuteHistoryReportsCounts(t *testing.T) {
	store, err := storage.New(filepath.Join(t.TempDir(), "bot.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	if err := store.RecordDownload("123", "某漫画", "1", storage.StatusOK, "", time.Second); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordDownload("456", "", "1", storage.StatusFailed, "album not found", 0); err != nil {
		t.Fatal(err)
	}

	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{})
	exec.store = store

	exec.Execute(privateEvent("1", "漫画历史"))
	got := sender.lastText(t)
	if !strings.Contains(got, "共2次") || !strings.Contains(got, "失败1次") {
		t.Errorf("history header = %q, want lifetime counts", got)
	}
	if !strings.Contains(got, "123") || !strings.Contains(got, "456") {
		t.Errorf("history reply = %q, want both records listed", got)
	}
}

func TestExecuteTestID(t *testing.T) {
	exec, _, sender := newTestExecutor(t, config.PermissionsConfig{})
	exec.SetSelfIDSource(func() string { return "555" })

	exec.Execute(privateEvent("42", "测试id"))
	got := sender.lastText(t)
	if !strings.Contains(got, "42") || !strings.Contains(got, "555") {
		t.Errorf("test id reply = %q", got)
	}
}
