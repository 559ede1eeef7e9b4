package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// NoteKind 备注类型
type NoteKind string

const (
	NoteCreated       NoteKind = "created"
	NoteStatusChange  NoteKind = "status_change"
	NoteLuwangUpdate  NoteKind = "luwang_update"
	NoteReassignment  NoteKind = "reassignment"
	NoteRemark        NoteKind = "note"
	NoteImport        NoteKind = "import"
	NoteSyncCreate    NoteKind = "sync_create"
	NoteSyncOverwrite NoteKind = "sync_overwrite"
	NoteSyncMerge     NoteKind = "sync_merge"
)

// NoteEntry 结构化备注条目，只追加不修改
type NoteEntry struct {
	At      time.Time         `json:"at"`
	Actor   string            `json:"actor"`
	Kind    NoteKind          `json:"kind"`
	Message string            `json:"message,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

// NewNote 构造备注条目
func NewNote(actor string, kind NoteKind, message string, payload map[string]string) NoteEntry {
	return NoteEntry{
		At:      time.Now(),
		Actor:   actor,
		Kind:    kind,
		Message: message,
		Payload: payload,
	}
}

// String 单行文本表示，例如：
// [2025-03-01 08:00] status_change by u-1: active → completed {from=active to=completed}
func (n NoteEntry) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", n.At.Local().Format("2006-01-02 15:04"), n.Kind)
	if n.Actor != "" {
		fmt.Fprintf(&b, " by %s", n.Actor)
	}
	if n.Message != "" {
		b.WriteString(": ")
		b.WriteString(n.Message)
	}
	if len(n.Payload) > 0 {
		keys := make([]string, 0, len(n.Payload))
		for k := range n.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+n.Payload[k])
		}
		b.WriteString(" {" + strings.Join(parts, " ") + "}")
	}
	return b.String()
}

// RenderNotes 把备注列表渲染为一段文本，按追加顺序逐行输出
func RenderNotes(notes []NoteEntry) string {
	lines := make([]string, len(notes))
	for i, n := range notes {
		lines[i] = n.String()
	}
	return strings.Join(lines, "\n")
}

// FilterNotes 按类型筛选；kind 为空时返回全部
func FilterNotes(notes []NoteEntry, kind NoteKind) []NoteEntry {
	if kind == "" {
		return append([]NoteEntry(nil), notes...)
	}
	var out []NoteEntry
	for _, n := range notes {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
