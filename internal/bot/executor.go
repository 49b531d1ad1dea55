package bot

import (
	"fmt"
	"runtime"
	"strings"

	"mangabot/internal/download"
	"mangabot/internal/logger"
	"mangabot/internal/storage"
	"mangabot/internal/transport"
)

// Sender is the slice of the transport the executor needs for replies
type Sender interface {
	SendText(userID, text, groupID string, private bool) error
	SendFile(userID, path, groupID string, private bool) error
	IsConnected() bool
}

// Executor runs parsed commands against the download manager
type Executor struct {
	manager *download.Manager
	gate    *Gate
	sender  Sender
	store   *storage.Store // optional, history command degrades without it
	version string
	selfID  func() string
}

// NewExecutor wires command execution to its collaborators
func NewExecutor(m *download.Manager, g *Gate, s Sender, store *storage.Store, version string) *Executor {
	return &Executor{
		manager: m,
		gate:    g,
		sender:  s,
		store:   store,
		version: version,
		selfID:  func() string { return "" },
	}
}

// SetSelfIDSource injects the router's view of the bot's own identifier,
// used by the diagnostic commands
func (e *Executor) SetSelfIDSource(fn func() string) {
	if fn != nil {
		e.selfID = fn
	}
}

// Execute parses and runs one already-authorized message. Errors from
// handlers are reported to the user; nothing is returned to the router.
func (e *Executor) Execute(ev transport.Event) {
	req := Parse(ev.RawMessage)
	if err := ValidateParams(&req); err != nil {
		e.reply(ev, err.Error())
		return
	}

	logger.Debugf("Executor: user %s runs %s", ev.UserID, req.Cmd)

	switch req.Cmd {
	case CmdHelp:
		e.reply(ev, helpText)
	case CmdDownload:
		e.runDownload(ev, req)
	case CmdSend:
		e.runSend(ev, req)
	case CmdList:
		e.runList(ev)
	case CmdQuery:
		e.runQuery(ev, req)
	case CmdDelete:
		e.runDelete(ev, req)
	case CmdProgress:
		e.runProgress(ev)
	case CmdVersion:
		e.reply(ev, fmt.Sprintf("当前版本：%s\n运行平台：%s/%s", e.version, runtime.GOOS, runtime.GOARCH))
	case CmdHistory:
		e.runHistory(ev)
	case CmdTestID:
		e.runTestID(ev)
	case CmdTestFile:
		e.runTestFile(ev)
	case CmdWelcome:
		e.reply(ev, welcomeText)
	default:
		e.reply(ev, unknownText)
	}
}

// reply sends a text response back to where the command came from. A
// disconnected transport drops the reply; the transport owns reconnects
// and the user will retry.
func (e *Executor) reply(ev transport.Event, text string) {
	if !e.sender.IsConnected() {
		logger.Warnf("Executor: transport disconnected, dropping reply to user %s", ev.UserID)
		return
	}
	private := ev.MessageType == transport.MsgPrivate
	if err := e.sender.SendText(ev.UserID, text, ev.GroupID, private); err != nil {
		logger.Errorf("Executor: failed to reply to user %s: %v", ev.UserID, err)
	}
}

// batchResult aggregates the outcome of a multi-identifier command
type batchResult struct {
	total    int
	ok       int
	failures []string // "id: reason"
}

func (r *batchResult) fail(id, reason string) {
	r.failures = append(r.failures, fmt.Sprintf("%s: %s", id, reason))
}

// summary renders a batch outcome. A single-id batch reads like a direct
// answer; larger batches get the tallied form.
func (r *batchResult) summary(verb string) string {
	if r.total == 1 && len(r.failures) == 1 {
		return r.failures[0]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s完成：共%d个，成功%d个", verb, r.total, r.ok)
	if len(r.failures) > 0 {
		fmt.Fprintf(&b, "，失败%d个\n", len(r.failures))
		for _, f := range r.failures {
			b.WriteString("  " + f + "\n")
		}
		return strings.TrimRight(b.String(), "\n")
	}
	return b.String()
}

// historyLine formats one download record for the history command
func historyLine(rec storage.DownloadRecord) string {
	status := "✅"
	if rec.Status == storage.StatusFailed {
		status = "❌"
	}
	title := rec.Title
	if title == "" {
		title = "(无标题)"
	}
	return fmt.Sprintf("%s %s %s [%s]", status, rec.MangaID, title, rec.CreatedAt.Format("01-02 15:04"))
}
