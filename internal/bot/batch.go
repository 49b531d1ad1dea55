package bot

import (
	"fmt"
	"strings"
)

// allDirective replaces an identifier list for commands that operate on
// every finished artifact at once
const allDirective = "all"

// separatorChars are the characters that split identifiers in a batch
// argument. Full-width punctuation is included because QQ clients on
// Chinese input methods produce it by default. Bare whitespace between
// tokens is not a separator on its own; it only splits alongside one of
// these, so "123 456" without punctuation reads as one malformed token
// rather than a two-item batch.
const separatorChars = ",.，。、"

// batchSeparator splits on separator characters and, with them present,
// any surrounding whitespace
func batchSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '　':
		return true
	}
	return strings.ContainsRune(separatorChars, r)
}

// ParseBatch splits an argument string into identifier tokens. The literal
// "all" is only valid alone; mixing it with identifiers is rejected so a
// typo cannot silently expand to every artifact. Blank input yields an
// empty list, which callers reject with their own wording.
func ParseBatch(args string) (ids []string, all bool, err error) {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil, false, nil
	}
	if args == allDirective {
		return nil, true, nil
	}

	tokens := strings.FieldsFunc(args, batchSeparator)
	for _, tok := range tokens {
		if tok == allDirective {
			return nil, false, fmt.Errorf("'all'不能和其他ID混用哦")
		}
	}
	if len(tokens) == 0 {
		return nil, false, fmt.Errorf("没有找到任何漫画ID哦")
	}
	if len(tokens) > 1 && !strings.ContainsAny(args, separatorChars) {
		return nil, false, fmt.Errorf("多个ID要用逗号或句号分开哦")
	}

	return tokens, false, nil
}

// ValidateIDs checks that every token is a plain decimal identifier. The
// whole batch is rejected on the first bad token, naming it, so the user
// can fix the message instead of getting a half-processed batch.
func ValidateIDs(ids []string) error {
	for _, id := range ids {
		if !isDigits(id) {
			return fmt.Errorf("'%s'不是有效的漫画ID哦，ID应该是纯数字", id)
		}
	}
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
