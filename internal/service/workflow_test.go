package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"task-ledger/internal/interaction"
	"task-ledger/internal/model"
	"task-ledger/internal/repository"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakePrompter struct {
	res  interaction.Result
	err  error
	reqs []interaction.Request
}

func (f *fakePrompter) Ask(_ context.Context, req interaction.Request, _ time.Duration) (interaction.Result, error) {
	f.reqs = append(f.reqs, req)
	return f.res, f.err
}

type fakeStore struct {
	mu       sync.Mutex
	task     *model.Task
	lookups  int
	deletes  []string
	statuses []model.Status
	found    bool
}

// newFakeStore holds one task; found controls whether writes still match it.
func newFakeStore(found bool) *fakeStore {
	return &fakeStore{
		task:  &model.Task{ID: target.TaskID, TaskName: "write report", Status: model.StatusInProgress},
		found: found,
	}
}

func (f *fakeStore) Get(_ context.Context, _ int64, taskID string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.task == nil || f.task.ID != taskID {
		return nil, nil
	}
	t := *f.task
	return &t, nil
}

func (f *fakeStore) Delete(_ context.Context, _ int64, taskID string) (repository.DeleteResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, taskID)
	return repository.DeleteResult{Deleted: f.found, RelationDropped: f.found}, nil
}

func (f *fakeStore) SetStatus(_ context.Context, _ int64, _ string, status model.Status) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return f.found, nil
}

func (f *fakeStore) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deletes), len(f.statuses)
}

// chatStub stands in for the chat platform behind a real Waiter.
type chatStub struct {
	mu      sync.Mutex
	sent    chan string
	deleted int
}

func newChatStub() *chatStub { return &chatStub{sent: make(chan string, 4)} }

func (c *chatStub) SendPrompt(_ context.Context, chatID int64, _ string, promptID string, _ interaction.Style, _ []interaction.Option) (interaction.MessageRef, error) {
	c.sent <- promptID
	return interaction.MessageRef{ChatID: chatID, MessageID: 1}, nil
}

func (c *chatStub) DeleteMessage(context.Context, interaction.MessageRef) error {
	c.mu.Lock()
	c.deleted++
	c.mu.Unlock()
	return nil
}

func (c *chatStub) deletedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleted
}

var target = Target{ChannelID: 5, UserID: 7, TaskID: "task-1"}

func TestConfirmWorkflow(t *testing.T) {
	cases := []struct {
		name        string
		res         interaction.Result
		wantOutcome DeleteOutcome
		wantDeletes int
	}{
		{"yes", interaction.Result{Outcome: interaction.Chosen, Value: confirmYes}, DeleteConfirmed, 1},
		{"no", interaction.Result{Outcome: interaction.Chosen, Value: confirmNo}, DeleteDeclined, 0},
		{"timeout", interaction.Result{Outcome: interaction.TimedOut}, DeleteTimedOut, 0},
		{"unrecognized", interaction.Result{Outcome: interaction.Unrecognized, Value: "x"}, DeleteDeclined, 0},
		{"cancelled", interaction.Result{Outcome: interaction.Cancelled}, DeleteCancelled, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prompts := &fakePrompter{res: tc.res}
			store := newFakeStore(true)
			wf := NewConfirmWorkflow(prompts, store, time.Second, discardLogger())

			report, err := wf.Run(context.Background(), target)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if report.Outcome != tc.wantOutcome {
				t.Fatalf("outcome = %v, want %v", report.Outcome, tc.wantOutcome)
			}
			deletes, _ := store.calls()
			if deletes != tc.wantDeletes {
				t.Fatalf("deletes = %d, want %d", deletes, tc.wantDeletes)
			}
			if tc.wantDeletes == 1 && (!report.Deleted || !report.RelationDropped) {
				t.Fatalf("report = %+v", report)
			}
			if report.TaskName != "write report" {
				t.Fatalf("task name = %q", report.TaskName)
			}

			req := prompts.reqs[0]
			if req.Owner != target.UserID || req.ChatID != target.ChannelID || req.Style != interaction.StyleButtons || len(req.Options) != 2 {
				t.Fatalf("request = %+v", req)
			}
		})
	}
}

func TestConfirmWorkflowPromptError(t *testing.T) {
	store := newFakeStore(false)
	wf := NewConfirmWorkflow(&fakePrompter{err: errors.New("send failed")}, store, time.Second, discardLogger())
	if _, err := wf.Run(context.Background(), target); err == nil {
		t.Fatal("expected error")
	}
	if deletes, _ := store.calls(); deletes != 0 {
		t.Fatalf("deleted after failed prompt")
	}
}

func TestConfirmWorkflowMissingTask(t *testing.T) {
	wf := NewConfirmWorkflow(&fakePrompter{res: interaction.Result{Outcome: interaction.Chosen, Value: confirmYes}}, newFakeStore(false), time.Second, discardLogger())
	report, err := wf.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != DeleteConfirmed || report.Deleted {
		t.Fatalf("report = %+v", report)
	}
}

func TestConfirmWorkflowTimeoutWithWaiter(t *testing.T) {
	chat := newChatStub()
	waiter := interaction.NewWaiter(chat, discardLogger())
	store := newFakeStore(true)
	wf := NewConfirmWorkflow(waiter, store, 20*time.Millisecond, discardLogger())

	report, err := wf.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != DeleteTimedOut {
		t.Fatalf("outcome = %v", report.Outcome)
	}
	if deletes, _ := store.calls(); deletes != 0 {
		t.Fatalf("deletes = %d", deletes)
	}
	if chat.deletedCount() != 1 {
		t.Fatalf("prompt not retracted")
	}
	if st := waiter.Dispatch(<-chat.sent, target.UserID, confirmYes); st != interaction.Expired {
		t.Fatalf("late confirm = %v", st)
	}
	if deletes, _ := store.calls(); deletes != 0 {
		t.Fatalf("late confirm deleted the task")
	}
}

func TestStatusWorkflowWithWaiter(t *testing.T) {
	chat := newChatStub()
	waiter := interaction.NewWaiter(chat, discardLogger())
	store := newFakeStore(true)
	wf := NewStatusWorkflow(waiter, store, time.Second, discardLogger())

	promptID := make(chan string, 1)
	go func() {
		id := <-chat.sent
		waiter.Dispatch(id, target.UserID, "0")
		promptID <- id
	}()

	report, err := wf.Run(context.Background(), target)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Outcome != StatusApplied || report.Status != model.StatusDone || !report.Updated {
		t.Fatalf("report = %+v", report)
	}

	if st := waiter.Dispatch(<-promptID, target.UserID, "1"); st != interaction.Expired {
		t.Fatalf("second choice = %v, want Expired", st)
	}
	_, sets := store.calls()
	if sets != 1 || store.statuses[0] != model.StatusDone {
		t.Fatalf("statuses = %v", store.statuses)
	}
	if chat.deletedCount() != 1 {
		t.Fatalf("menu not retracted")
	}
}

func TestStatusWorkflowOutcomes(t *testing.T) {
	cases := []struct {
		name     string
		res      interaction.Result
		want     StatusOutcome
		wantSets int
	}{
		{"timeout", interaction.Result{Outcome: interaction.TimedOut}, StatusTimedOut, 0},
		{"unrecognized", interaction.Result{Outcome: interaction.Unrecognized, Value: "9"}, StatusUnrecognized, 0},
		{"out of range", interaction.Result{Outcome: interaction.Chosen, Value: "9"}, StatusUnrecognized, 0},
		{"not started", interaction.Result{Outcome: interaction.Chosen, Value: "1"}, StatusApplied, 1},
		{"cancelled", interaction.Result{Outcome: interaction.Cancelled}, StatusCancelled, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newFakeStore(true)
			prompts := &fakePrompter{res: tc.res}
			wf := NewStatusWorkflow(prompts, store, time.Second, discardLogger())
			report, err := wf.Run(context.Background(), target)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if report.Outcome != tc.want {
				t.Fatalf("outcome = %v, want %v", report.Outcome, tc.want)
			}
			if _, sets := store.calls(); sets != tc.wantSets {
				t.Fatalf("set status calls = %d, want %d", sets, tc.wantSets)
			}
			if prompts.reqs[0].Style != interaction.StyleMenu {
				t.Fatalf("status prompt is not a menu")
			}
		})
	}
}

func TestStatusOptions(t *testing.T) {
	opts := statusOptions()
	want := []interaction.Option{
		{Label: "Done", Value: "0"},
		{Label: "NotStarted", Value: "1"},
		{Label: "InProgress", Value: "2"},
	}
	if len(opts) != len(want) {
		t.Fatalf("options = %+v", opts)
	}
	for i := range want {
		if opts[i] != want[i] {
			t.Fatalf("option %d = %+v, want %+v", i, opts[i], want[i])
		}
	}
}

func TestWorkflowsSkipPromptForUnknownTask(t *testing.T) {
	ctx := context.Background()
	unknown := Target{ChannelID: target.ChannelID, UserID: target.UserID, TaskID: "nope"}

	prompts := &fakePrompter{res: interaction.Result{Outcome: interaction.Chosen, Value: confirmYes}}
	store := newFakeStore(true)

	report, err := NewConfirmWorkflow(prompts, store, time.Second, discardLogger()).Run(ctx, unknown)
	if err != nil {
		t.Fatalf("confirm run: %v", err)
	}
	if report.Outcome != DeleteNotFound {
		t.Fatalf("confirm outcome = %v, want not_found", report.Outcome)
	}

	status, err := NewStatusWorkflow(prompts, store, time.Second, discardLogger()).Run(ctx, unknown)
	if err != nil {
		t.Fatalf("status run: %v", err)
	}
	if status.Outcome != StatusNotFound {
		t.Fatalf("status outcome = %v, want not_found", status.Outcome)
	}

	if len(prompts.reqs) != 0 {
		t.Fatalf("prompted %d times for an unknown task", len(prompts.reqs))
	}
	if deletes, sets := store.calls(); deletes != 0 || sets != 0 {
		t.Fatalf("store written: deletes=%d sets=%d", deletes, sets)
	}
	if store.lookups != 2 {
		t.Fatalf("lookups = %d, want 2", store.lookups)
	}
}

func TestStatusWorkflowReportsPreviousStatus(t *testing.T) {
	prompts := &fakePrompter{res: interaction.Result{Outcome: interaction.Chosen, Value: "0"}}
	report, err := NewStatusWorkflow(prompts, newFakeStore(true), time.Second, discardLogger()).Run(context.Background(), target)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Previous != model.StatusInProgress || report.Status != model.StatusDone || report.TaskName != "write report" {
		t.Fatalf("report = %+v", report)
	}
	if !strings.Contains(prompts.reqs[0].Text, "write report") {
		t.Fatalf("prompt text = %q", prompts.reqs[0].Text)
	}
}
