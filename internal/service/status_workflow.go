package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strconv"
	"time"

	"task-ledger/internal/interaction"
	"task-ledger/internal/model"
)

type StatusOutcome int

const (
	StatusApplied StatusOutcome = iota
	StatusTimedOut
	StatusUnrecognized
	StatusCancelled
	// StatusNotFound means no menu was shown because the id is unknown.
	StatusNotFound
)

func (o StatusOutcome) String() string {
	switch o {
	case StatusApplied:
		return "applied"
	case StatusTimedOut:
		return "timed_out"
	case StatusUnrecognized:
		return "unrecognized"
	case StatusCancelled:
		return "cancelled"
	case StatusNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// StatusReport is the terminal state of a status change. Updated is false
// when the task was gone by the time the choice arrived.
type StatusReport struct {
	Outcome  StatusOutcome
	TaskName string
	Previous model.Status
	Status   model.Status
	Updated  bool
}

// StatusWorkflow lets the user pick a new status from the closed set.
type StatusWorkflow struct {
	prompts Prompter
	store   StatusSetter
	timeout time.Duration
	log     *slog.Logger
}

func NewStatusWorkflow(prompts Prompter, store StatusSetter, timeout time.Duration, log *slog.Logger) *StatusWorkflow {
	if timeout <= 0 {
		timeout = DefaultStatusTimeout
	}
	return &StatusWorkflow{prompts: prompts, store: store, timeout: timeout, log: log}
}

func statusOptions() []interaction.Option {
	opts := make([]interaction.Option, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		opts = append(opts, interaction.Option{
			Label: s.String(),
			Value: strconv.Itoa(int(s)),
		})
	}
	return opts
}

// Run presents the statuses and applies the chosen one.
func (w *StatusWorkflow) Run(ctx context.Context, t Target) (StatusReport, error) {
	task, err := w.store.Get(ctx, t.ChannelID, t.TaskID)
	if err != nil {
		return StatusReport{}, err
	}
	if task == nil {
		return StatusReport{Outcome: StatusNotFound}, nil
	}

	text := fmt.Sprintf("Choose a status for <b>%s</b> (<code>%s</code>), now %s",
		html.EscapeString(task.TaskName), html.EscapeString(t.TaskID), task.Status)
	res, err := w.prompts.Ask(ctx, interaction.Request{
		ChatID:  t.ChannelID,
		Owner:   t.UserID,
		Text:    text,
		Style:   interaction.StyleMenu,
		Options: statusOptions(),
	}, w.timeout)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{TaskName: task.TaskName, Previous: task.Status}
	switch res.Outcome {
	case interaction.TimedOut:
		w.log.Info("status change timed out", "channel_id", t.ChannelID, "task_id", t.TaskID)
		report.Outcome = StatusTimedOut
		return report, nil
	case interaction.Cancelled:
		report.Outcome = StatusCancelled
		return report, nil
	case interaction.Unrecognized:
		report.Outcome = StatusUnrecognized
		return report, nil
	}

	status, ok := model.ParseStatus(res.Value)
	if !ok {
		w.log.Warn("status choice out of range", "value", res.Value)
		report.Outcome = StatusUnrecognized
		return report, nil
	}

	report.Outcome = StatusApplied
	report.Status = status
	updated, err := w.store.SetStatus(ctx, t.ChannelID, t.TaskID, status)
	if err != nil {
		return report, err
	}
	w.log.Info("status changed", "channel_id", t.ChannelID, "task_id", t.TaskID,
		"status", status.String(), "updated", updated)
	report.Updated = updated
	return report, nil
}
