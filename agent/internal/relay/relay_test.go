package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/armastats/relay/agent/internal/deadletter"
	"github.com/armastats/relay/agent/internal/transport"
	"github.com/armastats/relay/pkg/types"
)

// fakeTransport records every POST and answers from a scripted error list.
type fakeTransport struct {
	mu     sync.Mutex
	posts  []Item
	errs   []error // consumed in order; nil entries and an empty list mean success
	status int
}

func (f *fakeTransport) Post(_ context.Context, url string, body []byte) (*transport.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = append(f.posts, Item{Destination: url, Payload: append([]byte(nil), body...)})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	status := f.status
	if status == 0 {
		status = 200
	}
	return &transport.Response{StatusCode: status}, nil
}

func (f *fakeTransport) recorded() []Item {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Item, len(f.posts))
	copy(out, f.posts)
	return out
}

// collector is an Observer that keeps every delivery.
type collector struct {
	mu sync.Mutex
	ds []types.Delivery
}

func (c *collector) Observe(d types.Delivery) {
	c.mu.Lock()
	c.ds = append(c.ds, d)
	c.mu.Unlock()
}

func (c *collector) deliveries() []types.Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.Delivery(nil), c.ds...)
}

var errStale = fmt.Errorf("%w: EOF", transport.ErrStaleConnection)

// runWorker pushes items, closes the queue and waits for Run to return.
func runWorker(t *testing.T, tr Transport, cfg WorkerConfig, items ...Item) {
	t.Helper()
	q := NewQueue()
	for _, it := range items {
		if err := q.Push(it); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	w := NewWorker(q, tr, cfg)
	done := make(chan struct{})
	go func() {
		w.Run()
		close(done)
	}()
	q.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after queue close")
	}
}

func item(n int) Item {
	return Item{Destination: "http://backend/missions/1/events", Payload: []byte(fmt.Sprintf(`{"n":%d}`, n))}
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 200; i++ {
		_ = q.Push(item(i))
	}
	if q.Len() != 200 {
		t.Fatalf("Len: got %d, want 200", q.Len())
	}
	for i := 0; i < 200; i++ {
		it, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop %d: queue reported closed", i)
		}
		if string(it.Payload) != string(item(i).Payload) {
			t.Fatalf("Pop %d: got %s", i, it.Payload)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain: got %d", q.Len())
	}
}

func TestQueue_CloseDrainsThenStops(t *testing.T) {
	q := NewQueue()
	_ = q.Push(item(1))
	q.Close()
	q.Close() // idempotent

	if err := q.Push(item(2)); !errors.Is(err, ErrClosed) {
		t.Fatalf("Push after Close: got %v, want ErrClosed", err)
	}
	if _, ok := q.Pop(); !ok {
		t.Fatal("Pop: queued item lost on Close")
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on closed empty queue: expected ok=false")
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	got := make(chan Item, 1)
	go func() {
		it, _ := q.Pop()
		got <- it
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(30 * time.Millisecond):
	}

	_ = q.Push(item(7))
	select {
	case it := <-got:
		if string(it.Payload) != `{"n":7}` {
			t.Errorf("payload: got %s", it.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake after Push")
	}
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()
	var wg sync.WaitGroup
	for p := 0; p < 8; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = q.Push(item(i))
			}
		}()
	}
	wg.Wait()
	q.Close()

	n := 0
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		n++
	}
	if n != 800 {
		t.Errorf("popped %d items, want 800", n)
	}
}

func TestWorker_DeliversInOrder(t *testing.T) {
	tr := &fakeTransport{}
	obs := &collector{}
	runWorker(t, tr, WorkerConfig{Observers: []Observer{obs}}, item(1), item(2), item(3))

	posts := tr.recorded()
	if len(posts) != 3 {
		t.Fatalf("posts: got %d, want 3", len(posts))
	}
	for i, p := range posts {
		if string(p.Payload) != string(item(i+1).Payload) {
			t.Errorf("post[%d]: got %s", i, p.Payload)
		}
	}
	for _, d := range obs.deliveries() {
		if d.Outcome != types.OutcomeDelivered || d.Attempts != 1 {
			t.Errorf("delivery: got outcome=%s attempts=%d", d.Outcome, d.Attempts)
		}
	}
}

func TestWorker_RetriesStaleOnce(t *testing.T) {
	tr := &fakeTransport{errs: []error{errStale}}
	obs := &collector{}
	runWorker(t, tr, WorkerConfig{Observers: []Observer{obs}}, item(1))

	if got := len(tr.recorded()); got != 2 {
		t.Fatalf("posts: got %d, want 2 (original + one retry)", got)
	}
	ds := obs.deliveries()
	if len(ds) != 1 || ds[0].Outcome != types.OutcomeRetried || ds[0].Attempts != 2 {
		t.Fatalf("deliveries: got %+v", ds)
	}
	if !ds[0].Delivered() {
		t.Error("retried delivery should count as delivered")
	}
}

func TestWorker_DropsAfterFailedRetry(t *testing.T) {
	tr := &fakeTransport{errs: []error{errStale, errStale}}
	dead := deadletter.NewMemorySink(10)
	obs := &collector{}
	runWorker(t, tr, WorkerConfig{DeadLetter: dead, Observers: []Observer{obs}}, item(1), item(2))

	posts := tr.recorded()
	if len(posts) != 3 {
		t.Fatalf("posts: got %d, want 3 (two attempts for the first item, one for the second)", len(posts))
	}
	ds := obs.deliveries()
	if ds[0].Outcome != types.OutcomeDropped || ds[0].Attempts != 2 {
		t.Errorf("first delivery: got %+v", ds[0])
	}
	if ds[1].Outcome != types.OutcomeDelivered {
		t.Errorf("second delivery: got %+v", ds[1])
	}

	letters, _ := dead.List(context.Background())
	if len(letters) != 1 {
		t.Fatalf("dead letters: got %d, want 1", len(letters))
	}
	if letters[0].Payload != `{"n":1}` || letters[0].Attempts != 2 {
		t.Errorf("dead letter: got %+v", letters[0])
	}
}

func TestWorker_OtherFailureIsNotRetried(t *testing.T) {
	tr := &fakeTransport{errs: []error{&transport.StatusError{StatusCode: 503}}}
	obs := &collector{}
	runWorker(t, tr, WorkerConfig{Observers: []Observer{obs}}, item(1))

	if got := len(tr.recorded()); got != 1 {
		t.Fatalf("posts: got %d, want 1", got)
	}
	ds := obs.deliveries()
	if len(ds) != 1 || ds[0].Outcome != types.OutcomeDropped {
		t.Fatalf("deliveries: got %+v", ds)
	}
	if ds[0].StatusCode != 503 {
		t.Errorf("status code: got %d, want 503", ds[0].StatusCode)
	}
}

func TestWorker_SurvivesObserverPanic(t *testing.T) {
	tr := &fakeTransport{}
	obs := &collector{}
	boom := ObserverFunc(func(types.Delivery) { panic("observer bug") })
	runWorker(t, tr, WorkerConfig{Observers: []Observer{boom, obs}}, item(1), item(2))

	if got := len(obs.deliveries()); got != 2 {
		t.Errorf("deliveries after observer panic: got %d, want 2", got)
	}
}

func TestWorker_UsesInjectedClock(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	calls := 0
	now := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Millisecond)
	}
	obs := &collector{}
	runWorker(t, &fakeTransport{}, WorkerConfig{Observers: []Observer{obs}, Now: now}, item(1))

	d := obs.deliveries()[0]
	if d.Duration != time.Millisecond {
		t.Errorf("duration: got %v, want 1ms", d.Duration)
	}
}

// panicTransport panics on its first POST and succeeds afterwards.
type panicTransport struct {
	fakeTransport
	fired bool
}

func (p *panicTransport) Post(ctx context.Context, url string, body []byte) (*transport.Response, error) {
	if !p.fired {
		p.fired = true
		panic("transport bug")
	}
	return p.fakeTransport.Post(ctx, url, body)
}

func TestWorker_SurvivesTransportPanic(t *testing.T) {
	tr := &panicTransport{}
	runWorker(t, tr, WorkerConfig{}, item(1), item(2))

	posts := tr.recorded()
	if len(posts) != 1 || string(posts[0].Payload) != `{"n":2}` {
		t.Fatalf("posts after panic: got %+v, want only the second item", posts)
	}
}
