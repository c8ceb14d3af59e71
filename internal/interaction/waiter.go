// Package interaction publishes choice prompts to a chat and blocks until
// one human answer arrives or the wait budget runs out.
//
// A prompt resolves at most once. Whichever comes first, a qualifying
// choice or the deadline, decides the outcome; anything later against the
// same prompt is dropped. The prompt message is deleted before Await returns.
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Style selects how options are rendered.
type Style int

const (
	// StyleButtons puts all options in one row (binary confirm/deny).
	StyleButtons Style = iota
	// StyleMenu renders a single-select list, one option per row.
	StyleMenu
)

type Option struct {
	Label string
	Value string
}

// MessageRef identifies a published prompt message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Messenger is the chat-platform side of a prompt.
type Messenger interface {
	SendPrompt(ctx context.Context, chatID int64, text string, promptID string, style Style, options []Option) (MessageRef, error)
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// Outcome is the terminal state of a prompt.
type Outcome int

const (
	Chosen Outcome = iota
	TimedOut
	Unrecognized
	// Cancelled means the caller's context ended before any answer.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Chosen:
		return "chosen"
	case TimedOut:
		return "timed_out"
	case Unrecognized:
		return "unrecognized"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type Result struct {
	Outcome Outcome
	Value   string
	Label   string
}

// DispatchStatus tells the platform how a choice event was handled.
type DispatchStatus int

const (
	Accepted DispatchStatus = iota
	// Expired covers unknown prompts and prompts that already resolved.
	Expired
	// Forbidden means the prompt belongs to another user.
	Forbidden
)

// Request describes a prompt to publish. Owner limits who may answer; zero
// lets anyone in the chat answer.
type Request struct {
	ChatID  int64
	Owner   int64
	Text    string
	Style   Style
	Options []Option
}

// Prompt is the handle for one published prompt.
type Prompt struct {
	ID      string
	Message MessageRef

	owner   int64
	options []Option
	choice  chan string
	settled atomic.Bool
}

// settle claims the single resolution slot.
func (p *Prompt) settle() bool {
	return p.settled.CompareAndSwap(false, true)
}

var ErrNoOptions = errors.New("prompt needs at least one option")

// retractTimeout bounds the delete call that runs after the wait is over.
const retractTimeout = 10 * time.Second

// Waiter tracks open prompts and routes choice events to them.
type Waiter struct {
	messenger Messenger
	log       *slog.Logger

	mu      sync.Mutex
	pending map[string]*Prompt
}

func NewWaiter(messenger Messenger, log *slog.Logger) *Waiter {
	return &Waiter{
		messenger: messenger,
		log:       log,
		pending:   make(map[string]*Prompt),
	}
}

// Present publishes the prompt. On error nothing is left registered.
func (w *Waiter) Present(ctx context.Context, req Request) (*Prompt, error) {
	if len(req.Options) == 0 {
		return nil, ErrNoOptions
	}
	p := &Prompt{
		ID:      strings.ReplaceAll(uuid.NewString(), "-", ""),
		owner:   req.Owner,
		options: append([]Option(nil), req.Options...),
		choice:  make(chan string, 1),
	}

	w.mu.Lock()
	w.pending[p.ID] = p
	w.mu.Unlock()

	ref, err := w.messenger.SendPrompt(ctx, req.ChatID, req.Text, p.ID, req.Style, p.options)
	if err != nil {
		w.forget(p.ID)
		return nil, fmt.Errorf("publish prompt: %w", err)
	}
	p.Message = ref
	w.log.Debug("prompt published", "prompt_id", p.ID, "chat_id", ref.ChatID, "message_id", ref.MessageID)
	return p, nil
}

// Await blocks until the prompt resolves, timeout elapses or ctx ends, then
// retracts the prompt.
func (w *Waiter) Await(ctx context.Context, p *Prompt, timeout time.Duration) Result {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		value     string
		got       bool
		cancelled bool
	)
	select {
	case value = <-p.choice:
		got = true
	case <-timer.C:
	case <-ctx.Done():
		cancelled = true
	}
	if !got && !p.settle() {
		// A choice claimed the prompt while the deadline fired; it is
		// already on its way and wins.
		value = <-p.choice
		got = true
	}

	w.retract(ctx, p)

	switch {
	case !got && cancelled:
		w.log.Info("prompt cancelled", "prompt_id", p.ID)
		return Result{Outcome: Cancelled}
	case !got:
		w.log.Info("prompt timed out", "prompt_id", p.ID)
		return Result{Outcome: TimedOut}
	}
	for _, opt := range p.options {
		if opt.Value == value {
			return Result{Outcome: Chosen, Value: opt.Value, Label: opt.Label}
		}
	}
	w.log.Warn("unrecognized prompt choice", "prompt_id", p.ID, "value", value)
	return Result{Outcome: Unrecognized, Value: value}
}

// Ask is Present followed by Await.
func (w *Waiter) Ask(ctx context.Context, req Request, timeout time.Duration) (Result, error) {
	p, err := w.Present(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return w.Await(ctx, p, timeout), nil
}

// Dispatch delivers a choice event from user to the prompt. Only the first
// accepted event resolves it.
func (w *Waiter) Dispatch(promptID string, user int64, value string) DispatchStatus {
	w.mu.Lock()
	p, ok := w.pending[promptID]
	w.mu.Unlock()
	if !ok {
		return Expired
	}
	if p.owner != 0 && p.owner != user {
		return Forbidden
	}
	if !p.settle() {
		return Expired
	}
	p.choice <- value
	return Accepted
}

// openPrompts reports how many prompts are still open.
func (w *Waiter) openPrompts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Waiter) forget(id string) {
	w.mu.Lock()
	delete(w.pending, id)
	w.mu.Unlock()
}

func (w *Waiter) retract(ctx context.Context, p *Prompt) {
	w.forget(p.ID)
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), retractTimeout)
	defer cancel()
	if err := w.messenger.DeleteMessage(delCtx, p.Message); err != nil {
		w.log.Warn("retract prompt", "prompt_id", p.ID, "error", err)
	}
}
