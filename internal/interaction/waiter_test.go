package interaction

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	sent    chan string
	deleted []MessageRef
	sendErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{sent: make(chan string, 16)}
}

func (f *fakeMessenger) SendPrompt(_ context.Context, chatID int64, _ string, promptID string, _ Style, _ []Option) (MessageRef, error) {
	if f.sendErr != nil {
		return MessageRef{}, f.sendErr
	}
	f.mu.Lock()
	f.nextID++
	ref := MessageRef{ChatID: chatID, MessageID: f.nextID}
	f.mu.Unlock()
	f.sent <- promptID
	return ref, nil
}

func (f *fakeMessenger) DeleteMessage(_ context.Context, ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeMessenger) deletedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deleted)
}

func newTestWaiter() (*Waiter, *fakeMessenger) {
	m := newFakeMessenger()
	return NewWaiter(m, slog.New(slog.NewTextHandler(io.Discard, nil))), m
}

var yesNo = []Option{{Label: "Yes", Value: "yes"}, {Label: "No", Value: "no"}}

func TestAskChosen(t *testing.T) {
	w, m := newTestWaiter()

	go func() {
		id := <-m.sent
		if st := w.Dispatch(id, 7, "yes"); st != Accepted {
			t.Errorf("dispatch = %v, want Accepted", st)
		}
	}()

	res, err := w.Ask(context.Background(), Request{ChatID: 1, Owner: 7, Text: "sure?", Options: yesNo}, time.Second)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.Outcome != Chosen || res.Value != "yes" || res.Label != "Yes" {
		t.Fatalf("result = %+v", res)
	}
	if m.deletedCount() != 1 {
		t.Fatalf("prompt deleted %d times, want 1", m.deletedCount())
	}
	if w.openPrompts() != 0 {
		t.Fatalf("pending = %d", w.openPrompts())
	}
}

func TestAskTimeoutRetractsPrompt(t *testing.T) {
	w, m := newTestWaiter()

	res, err := w.Ask(context.Background(), Request{ChatID: 1, Owner: 7, Options: yesNo}, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.Outcome != TimedOut {
		t.Fatalf("outcome = %v, want TimedOut", res.Outcome)
	}
	if m.deletedCount() != 1 {
		t.Fatalf("prompt deleted %d times, want 1", m.deletedCount())
	}

	id := <-m.sent
	if st := w.Dispatch(id, 7, "yes"); st != Expired {
		t.Fatalf("late dispatch = %v, want Expired", st)
	}
}

func TestAskContextCancelled(t *testing.T) {
	w, m := newTestWaiter()
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		<-m.sent
		cancel()
	}()

	res, err := w.Ask(ctx, Request{ChatID: 1, Options: yesNo}, time.Minute)
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if res.Outcome != Cancelled {
		t.Fatalf("outcome = %v, want Cancelled", res.Outcome)
	}
	if m.deletedCount() != 1 {
		t.Fatalf("prompt not retracted after cancel")
	}
}

func TestDispatchForbiddenForOtherUsers(t *testing.T) {
	w, _ := newTestWaiter()
	ctx := context.Background()

	p, err := w.Present(ctx, Request{ChatID: 1, Owner: 7, Options: yesNo})
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if st := w.Dispatch(p.ID, 8, "yes"); st != Forbidden {
		t.Fatalf("stranger dispatch = %v, want Forbidden", st)
	}
	if st := w.Dispatch(p.ID, 7, "no"); st != Accepted {
		t.Fatalf("owner dispatch = %v, want Accepted", st)
	}
	res := w.Await(ctx, p, time.Second)
	if res.Outcome != Chosen || res.Value != "no" {
		t.Fatalf("result = %+v", res)
	}
}

func TestDispatchWithoutOwner(t *testing.T) {
	w, _ := newTestWaiter()
	p, err := w.Present(context.Background(), Request{ChatID: 1, Options: yesNo})
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	if st := w.Dispatch(p.ID, 12345, "yes"); st != Accepted {
		t.Fatalf("dispatch = %v, want Accepted", st)
	}
}

func TestUnrecognizedValue(t *testing.T) {
	w, _ := newTestWaiter()
	ctx := context.Background()

	p, err := w.Present(ctx, Request{ChatID: 1, Owner: 7, Options: yesNo})
	if err != nil {
		t.Fatalf("present: %v", err)
	}
	w.Dispatch(p.ID, 7, "maybe")
	res := w.Await(ctx, p, time.Second)
	if res.Outcome != Unrecognized || res.Value != "maybe" {
		t.Fatalf("result = %+v", res)
	}
}

func TestFirstChoiceWins(t *testing.T) {
	w, _ := newTestWaiter()
	ctx := context.Background()

	p, err := w.Present(ctx, Request{ChatID: 1, Owner: 7, Options: yesNo})
	if err != nil {
		t.Fatalf("present: %v", err)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			value := "yes"
			if i%2 == 1 {
				value = "no"
			}
			if w.Dispatch(p.ID, 7, value) == Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if accepted != 1 {
		t.Fatalf("accepted %d choices, want 1", accepted)
	}
	if res := w.Await(ctx, p, time.Second); res.Outcome != Chosen {
		t.Fatalf("outcome = %v", res.Outcome)
	}
}

func TestPresentFailures(t *testing.T) {
	w, m := newTestWaiter()
	ctx := context.Background()

	if _, err := w.Present(ctx, Request{ChatID: 1}); !errors.Is(err, ErrNoOptions) {
		t.Fatalf("no options err = %v", err)
	}

	sendErr := errors.New("forbidden: bot was kicked")
	m.sendErr = sendErr
	if _, err := w.Ask(ctx, Request{ChatID: 1, Options: yesNo}, time.Second); !errors.Is(err, sendErr) {
		t.Fatalf("send err = %v", err)
	}
	if w.openPrompts() != 0 {
		t.Fatalf("failed prompt left registered")
	}
}

func TestDispatchUnknownPrompt(t *testing.T) {
	w, _ := newTestWaiter()
	if st := w.Dispatch("nope", 1, "yes"); st != Expired {
		t.Fatalf("dispatch = %v, want Expired", st)
	}
}

func TestChoiceCodec(t *testing.T) {
	data, err := EncodeChoice("abc123", "2")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	id, value, ok := DecodeChoice(data)
	if !ok || id != "abc123" || value != "2" {
		t.Fatalf("decode(%q) = %q, %q, %v", data, id, value, ok)
	}

	// Values may contain the separator.
	data, _ = EncodeChoice("abc", "a:b")
	if _, value, _ := DecodeChoice(data); value != "a:b" {
		t.Fatalf("value = %q", value)
	}

	for _, bad := range []string{"", "x:abc:1", "p:", "p::1", "p:abc"} {
		if _, _, ok := DecodeChoice(bad); ok {
			t.Errorf("DecodeChoice(%q) accepted", bad)
		}
	}

	if _, err := EncodeChoice(strings.Repeat("a", 32), strings.Repeat("v", 40)); err == nil {
		t.Fatal("oversized payload accepted")
	}
}
