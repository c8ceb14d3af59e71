package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode/utf8"

	"task-ledger/internal/model"
	"task-ledger/internal/service"
)

const helpText = `<b>Task ledger</b>

/add name | description | member | deadline - create a task. Member is a user id, "me", or empty to assign the author of the message you reply to. Deadline is YYYY-MM-DD.
/show [me|id] [private] - tasks of this chat. With "private" the list comes as a direct message.
/showall [me|id] [private] - task counts across all chats
/remove &lt;id&gt; - delete a task after confirmation
/status &lt;id&gt; - change the status of a task
/version - build version`

// maxMessageRunes keeps each message under Telegram's 4096 character cap.
const maxMessageRunes = 4000

// maxFieldRunes bounds free text inside one task block. Escaping turns a
// rune into at most five, so a block always fits one message.
const maxFieldRunes = 250

func escape(s string) string {
	return html.EscapeString(s)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit-1]) + "…"
}

// splitMessages packs blocks into as few messages as possible without
// cutting a block. A block longer than the limit travels alone.
func splitMessages(blocks []string, limit int) []string {
	var (
		out  []string
		cur  strings.Builder
		size int
	)
	for _, block := range blocks {
		n := utf8.RuneCountInString(block)
		if size > 0 && size+n > limit {
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
			size = 0
		}
		cur.WriteString(block)
		size += n
	}
	if last := strings.TrimSpace(cur.String()); last != "" {
		out = append(out, last)
	}
	return out
}

// splitLines chunks a line oriented text such as the summary.
func splitLines(text string, limit int) []string {
	lines := strings.SplitAfter(text, "\n")
	return splitMessages(lines, limit)
}

func formatCreated(task model.Task) string {
	return fmt.Sprintf("✅ Task created: <b>%s</b>\nID: <code>%s</code>", escape(task.TaskName), escape(task.ID))
}

// formatTask renders one task of /show. memberName is already resolved.
func formatTask(task model.Task, memberName string, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", escape(truncate(task.TaskName, maxFieldRunes)))
	fmt.Fprintf(&b, "ID: <code>%s</code>\n", escape(task.ID))
	fmt.Fprintf(&b, "Description: %s\n", escape(truncate(task.DescriptionText(), maxFieldRunes)))
	fmt.Fprintf(&b, "Member: %s\n", escape(truncate(memberName, maxFieldRunes)))
	fmt.Fprintf(&b, "Deadline: %s\n", escape(task.DeadlineText()))
	status := task.DisplayStatus(now)
	if task.Overdue(now) {
		status = "⚠️ " + status
	}
	fmt.Fprintf(&b, "Status: %s\n\n", escape(status))
	return b.String()
}

func formatDeleteReport(r service.DeleteReport, taskID string) string {
	id := escape(taskID)
	switch r.Outcome {
	case service.DeleteNotFound:
		return fmt.Sprintf("🔍 Task <code>%s</code> not found.", id)
	case service.DeleteTimedOut:
		return fmt.Sprintf("⌛ No answer in time, task <code>%s</code> was kept.", id)
	case service.DeleteCancelled:
		return fmt.Sprintf("⏹ The bot is shutting down, task <code>%s</code> was kept.", id)
	case service.DeleteDeclined:
		return fmt.Sprintf("↩️ Deletion of <code>%s</code> cancelled.", id)
	}
	if !r.Deleted {
		return fmt.Sprintf("🔍 Task <code>%s</code> not found.", id)
	}
	text := fmt.Sprintf("🗑 Task <code>%s</code> deleted.", id)
	if r.TaskName != "" {
		text = fmt.Sprintf("🗑 Task <b>%s</b> (<code>%s</code>) deleted.", escape(truncate(r.TaskName, maxFieldRunes)), id)
	}
	if r.RelationDropped {
		text += "\n📭 This chat has no tasks left."
	}
	return text
}

func formatStatusReport(r service.StatusReport, taskID string) string {
	id := escape(taskID)
	switch r.Outcome {
	case service.StatusNotFound:
		return fmt.Sprintf("🔍 Task <code>%s</code> not found.", id)
	case service.StatusTimedOut:
		return fmt.Sprintf("⌛ No status chosen in time, task <code>%s</code> unchanged.", id)
	case service.StatusCancelled:
		return fmt.Sprintf("⏹ The bot is shutting down, task <code>%s</code> unchanged.", id)
	case service.StatusUnrecognized:
		return fmt.Sprintf("🤔 Unrecognized choice, task <code>%s</code> unchanged.", id)
	}
	if !r.Updated {
		return fmt.Sprintf("🔍 Task <code>%s</code> not found.", id)
	}
	if r.Previous != r.Status && r.Previous.Valid() {
		return fmt.Sprintf("🔄 Task <code>%s</code> is now %s (was %s).", id, escape(r.Status.String()), escape(r.Previous.String()))
	}
	return fmt.Sprintf("🔄 Task <code>%s</code> is now %s.", id, escape(r.Status.String()))
}
