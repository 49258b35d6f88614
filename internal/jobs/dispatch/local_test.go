package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/agrisense/agrisense-backend/internal/data/repos/testutil"
)

type fakeExecutor struct {
	mu      sync.Mutex
	seen    map[uuid.UUID]int
	active  int32
	peak    int32
	hold    time.Duration
	panicOn uuid.UUID
}

func (f *fakeExecutor) ExecuteRecompute(_ context.Context, jobID uuid.UUID) error {
	n := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	f.mu.Lock()
	if f.seen == nil {
		f.seen = map[uuid.UUID]int{}
	}
	f.seen[jobID]++
	f.mu.Unlock()
	if jobID == f.panicOn {
		panic("boom")
	}
	time.Sleep(f.hold)
	return nil
}

func TestLocalRunsEachJobOnceWithinBound(t *testing.T) {
	exec := &fakeExecutor{hold: 20 * time.Millisecond}
	d := NewLocal(testutil.Logger(t), exec, 2)

	ids := make([]uuid.UUID, 8)
	for i := range ids {
		ids[i] = uuid.New()
		if err := d.Dispatch(context.Background(), ids[i]); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	d.Wait()

	for _, id := range ids {
		if exec.seen[id] != 1 {
			t.Fatalf("job %s ran %d times", id, exec.seen[id])
		}
	}
	if exec.peak > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", exec.peak)
	}
}

func TestLocalSurvivesPanic(t *testing.T) {
	bad := uuid.New()
	exec := &fakeExecutor{panicOn: bad}
	d := NewLocal(testutil.Logger(t), exec, 1)

	good := uuid.New()
	_ = d.Dispatch(context.Background(), bad)
	_ = d.Dispatch(context.Background(), good)
	d.Wait()

	if exec.seen[good] != 1 {
		t.Fatalf("job after panic ran %d times", exec.seen[good])
	}
}

func TestLocalDetachesFromRequestContext(t *testing.T) {
	exec := &fakeExecutor{hold: 10 * time.Millisecond}
	d := NewLocal(testutil.Logger(t), exec, 1)

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()
	_ = d.Dispatch(ctx, id)
	cancel()
	d.Wait()

	if exec.seen[id] != 1 {
		t.Fatalf("job ran %d times after request cancel", exec.seen[id])
	}
}

func TestLocalWithoutExecutor(t *testing.T) {
	d := NewLocal(testutil.Logger(t), nil, 1)
	if err := d.Dispatch(context.Background(), uuid.New()); err == nil {
		t.Fatalf("expected error without executor")
	}
}
