package bot

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mangabot/internal/download"
	"mangabot/internal/logger"
	"mangabot/internal/transport"
)

const welcomeText = `你好呀！我是漫画下载机器人 (๑•̀ㅂ•́)و✧

发送'帮助'查看我会做什么~`

const unknownText = `我听不懂这个呢 (｡•́︿•̀｡)

输入'帮助'看看我会哪些指令吧~`

const helpText = `我会这些指令哦：

下载 <ID> [ID...] - 下载漫画并转换
发送 <ID> [ID...] | 发送 all - 把下载好的文件发给你
查询 <ID> [ID...] - 查询漫画的状态
列表 - 列出所有下载好的漫画
删除 <ID> [ID...] | 删除 all - 删除下载好的文件
进度 - 查看当前下载进度
漫画历史 - 查看最近的下载记录
版本 - 查看当前版本

多个ID用逗号或句号分开~`

// runDownload queues each identifier; an already-finished album is
// answered from the artifact on disk without re-downloading. A batch of
// more than one identifier gets exactly one aggregated reply so long
// lists don't flood the chat.
func (e *Executor) runDownload(ev transport.Event, req Request) {
	ids := req.IDs
	if req.All {
		ids = e.allArtifactIDs()
		if len(ids) == 0 {
			e.reply(ev, "还没有下载过任何漫画哦，直接'下载 <ID>'吧 (･ω･)")
			return
		}
	}

	res := batchResult{total: len(ids)}
	var started, existing []string

	for _, id := range ids {
		if e.manager.HasArtifact(id) {
			res.ok++
			existing = append(existing, id)
			continue
		}

		job := download.Job{
			ID:      id,
			UserID:  ev.UserID,
			GroupID: ev.GroupID,
			Private: ev.MessageType == transport.MsgPrivate,
		}
		switch err := e.manager.Submit(job); {
		case err == nil:
			res.ok++
			started = append(started, id)
		case errors.Is(err, download.ErrBusy):
			res.fail(id, "已经在下载队列里啦，耐心等等哦")
		case errors.Is(err, download.ErrStopped):
			res.fail(id, "机器人正在关闭，稍后再试哦")
		default:
			res.fail(id, err.Error())
		}
	}

	if len(ids) == 1 {
		switch {
		case len(existing) == 1:
			e.reply(ev, fmt.Sprintf("漫画ID %s 已经下载过啦，输入'发送 %s'就能拿到文件哦 (￣▽￣)~*", existing[0], existing[0]))
		case len(started) == 1:
			e.reply(ev, fmt.Sprintf("📥 收到！漫画ID %s 已加入下载队列，完成后我会通知你哒 (ง •̀_•́)ง", started[0]))
		default:
			e.reply(ev, res.failures[0])
		}
		return
	}

	var b strings.Builder
	if len(started) > 0 {
		fmt.Fprintf(&b, "📥 收到！漫画ID %s 已加入下载队列，完成后我会通知你哒 (ง •̀_•́)ง\n", strings.Join(started, "、"))
	}
	b.WriteString(res.summary("下载"))
	e.reply(ev, strings.TrimRight(b.String(), "\n"))
}

// runSend delivers finished artifacts as files
func (e *Executor) runSend(ev transport.Event, req Request) {
	if !e.sender.IsConnected() {
		logger.Warnf("Executor: transport disconnected, cannot deliver files to user %s", ev.UserID)
		return
	}

	ids := req.IDs
	if req.All {
		ids = e.allArtifactIDs()
		if len(ids) == 0 {
			e.reply(ev, "还没有下载好的漫画哦，先用'下载'命令吧 (･ω･)")
			return
		}
	}

	private := ev.MessageType == transport.MsgPrivate
	res := batchResult{total: len(ids)}

	for _, id := range ids {
		path := e.manager.FindArtifact(id)
		if path == "" {
			if e.manager.IsBusy(id) {
				res.fail(id, "还在下载中，稍等一下哦")
			} else {
				res.fail(id, "还没有下载过，先输入'下载 "+id+"'吧")
			}
			continue
		}
		e.reply(ev, fmt.Sprintf("📨 找到漫画 %s 了，文件发送中...", id))
		if err := e.sender.SendFile(ev.UserID, path, ev.GroupID, private); err != nil {
			logger.Errorf("Executor: failed to send %s to user %s: %v", path, ev.UserID, err)
			res.fail(id, "文件发送失败了，稍后再试哦")
			continue
		}
		res.ok++
	}

	if len(res.failures) > 0 || res.total > 1 {
		e.reply(ev, res.summary("发送"))
	}
}

// runList names every finished artifact
func (e *Executor) runList(ev transport.Event) {
	names := e.manager.ListArtifacts()
	if len(names) == 0 {
		e.reply(ev, "书架上还是空的呢，先用'下载'命令填满它吧 (･ω･)")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📚 书架上有%d本漫画：\n", len(names))
	// blocks of five keep long shelves readable in chat
	for i, name := range names {
		if i > 0 && i%5 == 0 {
			b.WriteString("\n")
		}
		b.WriteString("  " + strings.TrimSuffix(name, filepath.Ext(name)) + "\n")
	}
	e.reply(ev, strings.TrimRight(b.String(), "\n"))
}

// runQuery reports per-identifier status: finished, in progress, or absent
func (e *Executor) runQuery(ev transport.Event, req Request) {
	ids := req.IDs
	if req.All {
		ids = e.allArtifactIDs()
		if len(ids) == 0 {
			e.reply(ev, "还没有下载过任何漫画哦 (･ω･)")
			return
		}
	}

	var b strings.Builder
	for _, id := range ids {
		switch {
		case e.manager.HasArtifact(id):
			fmt.Fprintf(&b, "✅ %s 已下载完成\n", id)
		case e.manager.IsBusy(id):
			fmt.Fprintf(&b, "⏳ %s 正在下载或排队中\n", id)
		default:
			fmt.Fprintf(&b, "❓ %s 还没有下载过\n", id)
		}
	}
	e.reply(ev, strings.TrimRight(b.String(), "\n"))
}

// runDelete removes finished artifacts, restricted to the one configured
// delete user. Busy identifiers have no artifact yet; they count as absent.
func (e *Executor) runDelete(ev transport.Event, req Request) {
	if !e.gate.DeleteConfigured() {
		e.reply(ev, "删除功能没有开启哦")
		return
	}
	if !e.gate.CanDelete(ev.UserID) {
		e.reply(ev, "你没有删除权限哦 (￣^￣)")
		return
	}

	ids := req.IDs
	if req.All {
		ids = e.allArtifactIDs()
		if len(ids) == 0 {
			e.reply(ev, "书架上没有可以删除的漫画哦")
			return
		}
	}

	res := batchResult{total: len(ids)}
	for _, id := range ids {
		removed, err := e.manager.DeleteArtifact(id)
		switch {
		case err != nil:
			logger.Errorf("Executor: failed to delete artifact %s: %v", id, err)
			res.fail(id, "删除失败了")
		case !removed:
			res.fail(id, "没有找到对应的文件")
		default:
			res.ok++
		}
	}
	e.reply(ev, res.summary("删除"))
}

// runProgress shows a live snapshot of the queue
func (e *Executor) runProgress(ev transport.Event) {
	inflight, queued := e.manager.Progress()
	if len(inflight) == 0 && len(queued) == 0 {
		e.reply(ev, "现在很闲哦，没有正在下载的任务 (∪.∪ )...zzz")
		return
	}

	var b strings.Builder
	for _, id := range inflight {
		fmt.Fprintf(&b, "⏬ 正在下载：%s\n", id)
	}
	if len(queued) > 0 {
		fmt.Fprintf(&b, "📋 排队中（%d个）：%s", len(queued), strings.Join(queued, "、"))
	}
	e.reply(ev, strings.TrimRight(b.String(), "\n"))
}

// runHistory lists recent download attempts from storage
func (e *Executor) runHistory(ev transport.Event) {
	if e.store == nil {
		e.reply(ev, "历史记录功能没有开启哦")
		return
	}

	records, err := e.store.RecentDownloads(10)
	if err != nil {
		logger.Errorf("Executor: failed to load download history: %v", err)
		e.reply(ev, "读取历史记录失败了，稍后再试哦")
		return
	}
	if len(records) == 0 {
		e.reply(ev, "还没有任何下载记录哦")
		return
	}

	var b strings.Builder
	if total, failed, err := e.store.CountDownloads(); err == nil {
		fmt.Fprintf(&b, "📖 最近的下载记录（历史共%d次，失败%d次）：\n", total, failed)
	} else {
		b.WriteString("📖 最近的下载记录：\n")
	}
	for _, rec := range records {
		b.WriteString("  " + historyLine(rec) + "\n")
	}
	e.reply(ev, strings.TrimRight(b.String(), "\n"))
}

// runTestID echoes the identifiers the bot sees, for wiring checks
func (e *Executor) runTestID(ev transport.Event) {
	self := e.selfID()
	if self == "" {
		self = "(未知)"
	}
	e.reply(ev, fmt.Sprintf("你的ID：%s\n群ID：%s\n我的ID：%s", ev.UserID, orDash(ev.GroupID), self))
}

// runTestFile sends the newest artifact, confirming file delivery works
func (e *Executor) runTestFile(ev transport.Event) {
	names := e.manager.ListArtifacts()
	if len(names) == 0 {
		e.reply(ev, "没有可以测试的文件哦，先下载一本漫画吧")
		return
	}

	path := e.manager.FindArtifact(firstArtifactID(names))
	if path == "" {
		e.reply(ev, "没有可以测试的文件哦")
		return
	}

	private := ev.MessageType == transport.MsgPrivate
	if err := e.sender.SendFile(ev.UserID, path, ev.GroupID, private); err != nil {
		logger.Errorf("Executor: test file send failed: %v", err)
		e.reply(ev, "测试文件发送失败了 ∑(O_O；)")
		return
	}
	e.reply(ev, "测试文件发送成功 ✧(≖ ◡ ≖✿)")
}

// allArtifactIDs maps ListArtifacts back to identifiers
func (e *Executor) allArtifactIDs() []string {
	names := e.manager.ListArtifacts()
	seen := make(map[string]bool, len(names))
	var ids []string
	for _, name := range names {
		id := artifactNameID(name)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func firstArtifactID(names []string) string {
	for _, name := range names {
		if id := artifactNameID(name); id != "" {
			return id
		}
	}
	return ""
}

// artifactNameID mirrors the manager's naming scheme: "<id>-<title><ext>"
// or "<id><ext>"
func artifactNameID(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.Index(base, "-"); i >= 0 {
		base = base[:i]
	}
	return base
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
