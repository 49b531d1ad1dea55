// Package bot implements command parsing, permission gating, and the
// event router that turns chat messages into download jobs.
package bot

import (
	"fmt"
	"strings"
)

// Command identifies one bot operation
type Command int

const (
	CmdUnknown Command = iota
	CmdWelcome
	CmdHelp
	CmdDownload
	CmdSend
	CmdList
	CmdQuery
	CmdDelete
	CmdProgress
	CmdVersion
	CmdHistory
	CmdTestID
	CmdTestFile
)

func (c Command) String() string {
	switch c {
	case CmdWelcome:
		return "welcome"
	case CmdHelp:
		return "help"
	case CmdDownload:
		return "download"
	case CmdSend:
		return "send"
	case CmdList:
		return "list"
	case CmdQuery:
		return "query"
	case CmdDelete:
		return "delete"
	case CmdProgress:
		return "progress"
	case CmdVersion:
		return "version"
	case CmdHistory:
		return "history"
	case CmdTestID:
		return "test_id"
	case CmdTestFile:
		return "test_file"
	default:
		return "unknown"
	}
}

// argShape describes what a command expects after its keyword
type argShape int

const (
	argNone  argShape = iota // no parameters allowed
	argBatch                 // one or more identifiers, or "all" where supported
	argAny                   // anything goes, arguments ignored
)

// commandSpec binds surface keywords to a command and its argument shape
type commandSpec struct {
	cmd   Command
	shape argShape
}

// aliases maps the first token of a message to a command. Chinese keywords
// are the primary surface, with the word-order variants users type
// interchangeably; English ones are kept as convenience aliases.
var aliases = map[string]commandSpec{
	"帮助":       {CmdHelp, argNone},
	"漫画帮助":     {CmdHelp, argNone},
	"帮助漫画":     {CmdHelp, argNone},
	"help":     {CmdHelp, argNone},
	"下载":       {CmdDownload, argBatch},
	"漫画下载":     {CmdDownload, argBatch},
	"下载漫画":     {CmdDownload, argBatch},
	"download": {CmdDownload, argBatch},
	"发送":       {CmdSend, argBatch},
	"发送漫画":     {CmdSend, argBatch},
	"漫画发送":     {CmdSend, argBatch},
	"send":     {CmdSend, argBatch},
	"列表":       {CmdList, argNone},
	"漫画列表":     {CmdList, argNone},
	"列表漫画":     {CmdList, argNone},
	"list":     {CmdList, argNone},
	"查询":       {CmdQuery, argBatch},
	"查询漫画":     {CmdQuery, argBatch},
	"漫画查询":     {CmdQuery, argBatch},
	"query":    {CmdQuery, argBatch},
	"删除":       {CmdDelete, argBatch},
	"删除漫画":     {CmdDelete, argBatch},
	"漫画删除":     {CmdDelete, argBatch},
	"delete":   {CmdDelete, argBatch},
	"进度":       {CmdProgress, argNone},
	"下载进度":     {CmdProgress, argNone},
	"漫画进度":     {CmdProgress, argNone},
	"progress": {CmdProgress, argNone},
	"版本":       {CmdVersion, argNone},
	"漫画版本":     {CmdVersion, argNone},
	"version":  {CmdVersion, argNone},
	"漫画历史":     {CmdHistory, argNone},
	"history":  {CmdHistory, argNone},
	"测试id":     {CmdTestID, argNone},
	"测试文件":     {CmdTestFile, argNone},
}

// allDirectiveCommands may take the literal "all" instead of identifiers,
// expanded to every finished artifact
var allDirectiveCommands = map[Command]bool{
	CmdDownload: true,
	CmdSend:     true,
	CmdQuery:    true,
	CmdDelete:   true,
}

// greetingKeywords trigger the welcome response when no command matches
var greetingKeywords = []string{
	"你好", "您好", "哈喽", "嗨", "早上好", "中午好", "晚上好", "在吗", "hello", "hi",
}

// Request is a parsed command plus its raw argument text
type Request struct {
	Cmd     Command
	Args    string // raw text after the keyword, trimmed
	IDs     []string
	All     bool // "all" directive in place of identifiers
	Keyword string
}

// Parse splits a message into a command and arguments. An unrecognized
// first token routes to the welcome command when the message carries a
// greeting keyword, and to CmdUnknown otherwise.
func Parse(text string) Request {
	text = strings.TrimSpace(text)
	if text == "" {
		return Request{Cmd: CmdUnknown}
	}

	keyword := firstToken(text)
	spec, ok := aliases[strings.ToLower(keyword)]
	if !ok {
		if containsGreeting(text) {
			return Request{Cmd: CmdWelcome, Args: text}
		}
		return Request{Cmd: CmdUnknown, Args: text}
	}

	args := strings.TrimSpace(text[len(keyword):])
	return Request{Cmd: spec.cmd, Args: args, Keyword: keyword}
}

func containsGreeting(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range greetingKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// firstToken returns the leading run of non-space characters
func firstToken(s string) string {
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '　' {
			return s[:i]
		}
	}
	return s
}

// ValidateParams checks the argument text against the command's shape and
// fills in IDs or the All flag. Batch validation is all-or-nothing: one
// bad identifier rejects the whole request.
func ValidateParams(req *Request) error {
	shape := argNone
	if spec, ok := aliases[strings.ToLower(req.Keyword)]; ok {
		shape = spec.shape
	} else if req.Cmd == CmdUnknown || req.Cmd == CmdWelcome {
		shape = argAny
	}

	switch shape {
	case argAny:
		return nil
	case argNone:
		if req.Args != "" {
			return fmt.Errorf("'%s'不需要参数哦", req.Keyword)
		}
		return nil
	case argBatch:
		if req.Args == "" {
			return fmt.Errorf("'%s'需要至少一个漫画ID哦", req.Keyword)
		}

		ids, all, err := ParseBatch(req.Args)
		if err != nil {
			return err
		}
		if all {
			if !allDirectiveCommands[req.Cmd] {
				return fmt.Errorf("'%s'不支持all参数哦", req.Keyword)
			}
			req.All = true
			return nil
		}
		if len(ids) == 0 {
			return fmt.Errorf("'%s'需要至少一个漫画ID哦", req.Keyword)
		}
		if err := ValidateIDs(ids); err != nil {
			return err
		}
		req.IDs = ids
		return nil
	}
	return nil
}
