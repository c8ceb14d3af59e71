package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"

	"task-ledger/internal/interaction"
)

type DeleteOutcome int

const (
	DeleteConfirmed DeleteOutcome = iota
	DeleteDeclined
	DeleteTimedOut
	DeleteCancelled
	// DeleteNotFound means no prompt was shown because the id is unknown.
	DeleteNotFound
)

func (o DeleteOutcome) String() string {
	switch o {
	case DeleteConfirmed:
		return "confirmed"
	case DeleteDeclined:
		return "declined"
	case DeleteTimedOut:
		return "timed_out"
	case DeleteCancelled:
		return "cancelled"
	case DeleteNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// DeleteReport is the terminal state of a confirmation. Deleted and
// RelationDropped are only meaningful when Outcome is DeleteConfirmed.
type DeleteReport struct {
	Outcome         DeleteOutcome
	TaskName        string
	Deleted         bool
	RelationDropped bool
}

const (
	confirmYes = "yes"
	confirmNo  = "no"
)

// ConfirmWorkflow puts a yes/no question in front of a task delete.
type ConfirmWorkflow struct {
	prompts Prompter
	store   TaskDeleter
	timeout time.Duration
	log     *slog.Logger
}

func NewConfirmWorkflow(prompts Prompter, store TaskDeleter, timeout time.Duration, log *slog.Logger) *ConfirmWorkflow {
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}
	return &ConfirmWorkflow{prompts: prompts, store: store, timeout: timeout, log: log}
}

// Run asks for confirmation and deletes the task only on "yes". The
// returned error is set when the lookup, the prompt or the delete failed.
func (w *ConfirmWorkflow) Run(ctx context.Context, t Target) (DeleteReport, error) {
	task, err := w.store.Get(ctx, t.ChannelID, t.TaskID)
	if err != nil {
		return DeleteReport{}, err
	}
	if task == nil {
		return DeleteReport{Outcome: DeleteNotFound}, nil
	}

	text := fmt.Sprintf("🗑 Delete task <b>%s</b> (<code>%s</code>)?",
		html.EscapeString(task.TaskName), html.EscapeString(t.TaskID))
	res, err := w.prompts.Ask(ctx, interaction.Request{
		ChatID: t.ChannelID,
		Owner:  t.UserID,
		Text:   text,
		Style:  interaction.StyleButtons,
		Options: []interaction.Option{
			{Label: "✅ Yes", Value: confirmYes},
			{Label: "↩️ No", Value: confirmNo},
		},
	}, w.timeout)
	if err != nil {
		return DeleteReport{}, err
	}

	report := DeleteReport{TaskName: task.TaskName}
	switch {
	case res.Outcome == interaction.TimedOut:
		w.log.Info("delete timed out", "channel_id", t.ChannelID, "task_id", t.TaskID)
		report.Outcome = DeleteTimedOut
		return report, nil
	case res.Outcome == interaction.Cancelled:
		w.log.Info("delete cancelled", "channel_id", t.ChannelID, "task_id", t.TaskID)
		report.Outcome = DeleteCancelled
		return report, nil
	case res.Outcome != interaction.Chosen || res.Value != confirmYes:
		w.log.Info("delete declined", "channel_id", t.ChannelID, "task_id", t.TaskID)
		report.Outcome = DeleteDeclined
		return report, nil
	}

	report.Outcome = DeleteConfirmed
	out, err := w.store.Delete(ctx, t.ChannelID, t.TaskID)
	if err != nil {
		return report, err
	}
	w.log.Info("delete confirmed", "channel_id", t.ChannelID, "task_id", t.TaskID,
		"deleted", out.Deleted, "relation_dropped", out.RelationDropped)
	report.Deleted = out.Deleted
	report.RelationDropped = out.RelationDropped
	return report, nil
}
