package suspend

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/fault"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler("test")
	t.Cleanup(s.Stop)
	return s
}

func TestAwait_RequiresTimeout(t *testing.T) {
	s := newTestScheduler(t)
	var called atomic.Bool

	_, err := s.Call(context.Background(), "no-timeout", func(task *Task) (any, error) {
		return Await(task, 0, func(ctx context.Context) (int, error) {
			called.Store(true)
			return 1, nil
		})
	})

	if !errors.Is(err, fault.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if called.Load() {
		t.Error("operation ran despite missing timeout")
	}
}

func TestAwait_TimeoutIsTransportFailure(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.Call(context.Background(), "slow", func(task *Task) (any, error) {
		return Await(task, 20*time.Millisecond, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
	})

	if !errors.Is(err, fault.ErrTransportFailure) {
		t.Fatalf("err = %v, want ErrTransportFailure", err)
	}
	if got := s.Stats().Timeouts; got != 1 {
		t.Errorf("Timeouts = %d, want 1", got)
	}
}

func TestAwait_ErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"plain error becomes transport failure", errors.New("connection refused"), fault.ErrTransportFailure},
		{"kind is preserved", fmt.Errorf("%w: no layout", fault.ErrDeviceUnavailable), fault.ErrDeviceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestScheduler(t)
			_, err := s.Call(context.Background(), "op", func(task *Task) (any, error) {
				return Await(task, time.Second, func(ctx context.Context) (int, error) {
					return 0, tt.err
				})
			})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAwait_ReleasesTurnWhileWaiting(t *testing.T) {
	s := newTestScheduler(t)
	unblock := make(chan struct{})
	var order []string
	var mu sync.Mutex
	record := func(step string) {
		mu.Lock()
		order = append(order, step)
		mu.Unlock()
	}

	suspended := make(chan struct{})
	first := make(chan error, 1)
	if err := s.Go("waiter", func(task *Task) {
		record("waiter start")
		_, err := Await(task, time.Second, func(ctx context.Context) (struct{}, error) {
			close(suspended)
			<-unblock
			return struct{}{}, nil
		})
		record("waiter resumed")
		first <- err
	}); err != nil {
		t.Fatal(err)
	}

	<-suspended
	if _, err := s.Call(context.Background(), "other", func(task *Task) (any, error) {
		record("other ran")
		close(unblock)
		return nil, nil
	}); err != nil {
		t.Fatal(err)
	}

	if err := <-first; err != nil {
		t.Fatalf("waiter err = %v", err)
	}

	want := []string{"waiter start", "other ran", "waiter resumed"}
	mu.Lock()
	defer mu.Unlock()
	if fmt.Sprint(order) != fmt.Sprint(want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestScheduler_OneTaskHoldsTheTurn(t *testing.T) {
	s := newTestScheduler(t)
	var active, maxActive atomic.Int32
	enter := func() {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Call(context.Background(), "worker", func(task *Task) (any, error) {
				enter()
				time.Sleep(time.Millisecond)
				active.Add(-1)

				_, err := Await(task, time.Second, func(ctx context.Context) (int, error) {
					time.Sleep(2 * time.Millisecond)
					return 0, nil
				})

				enter()
				active.Add(-1)
				return nil, err
			})
		}()
	}
	wg.Wait()

	if got := maxActive.Load(); got != 1 {
		t.Errorf("max concurrently active tasks = %d, want 1", got)
	}
}

func TestAwait_SequentialSuspensionsResumeInOrder(t *testing.T) {
	s := newTestScheduler(t)

	v, err := s.Call(context.Background(), "seq", func(task *Task) (any, error) {
		var got []int
		for i, d := range []time.Duration{15 * time.Millisecond, time.Millisecond, 5 * time.Millisecond} {
			n, err := Await(task, time.Second, func(ctx context.Context) (int, error) {
				time.Sleep(d)
				return i, nil
			})
			if err != nil {
				return nil, err
			}
			got = append(got, n)
		}
		return got, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(v) != "[0 1 2]" {
		t.Errorf("results = %v, want [0 1 2]", v)
	}
	if got := s.Stats().Suspensions; got != 3 {
		t.Errorf("Suspensions = %d, want 3", got)
	}
}

func TestScheduler_StopCancelsSuspendedTasks(t *testing.T) {
	s := NewScheduler("stop")
	suspended := make(chan struct{})
	result := make(chan error, 1)

	_ = s.Go("blocked", func(task *Task) {
		_, err := Await(task, time.Minute, func(ctx context.Context) (int, error) {
			close(suspended)
			<-ctx.Done()
			return 0, ctx.Err()
		})
		result <- err
	})

	<-suspended
	s.Stop()

	if err := <-result; !errors.Is(err, ErrStopped) {
		t.Errorf("err = %v, want ErrStopped", err)
	}
	if err := s.Go("late", func(*Task) {}); !errors.Is(err, ErrStopped) {
		t.Errorf("Go after Stop err = %v, want ErrStopped", err)
	}
	if _, err := s.Call(context.Background(), "late", func(*Task) (any, error) { return nil, nil }); !errors.Is(err, ErrStopped) {
		t.Errorf("Call after Stop err = %v, want ErrStopped", err)
	}
	s.Stop()
}

func TestCall_RecoversPanic(t *testing.T) {
	s := newTestScheduler(t)

	_, err := s.Call(context.Background(), "boom", func(*Task) (any, error) {
		panic("bad handler")
	})
	if !errors.Is(err, ErrTaskPanicked) {
		t.Fatalf("err = %v, want ErrTaskPanicked", err)
	}

	v, err := s.Call(context.Background(), "after", func(*Task) (any, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("scheduler unusable after panic: v=%v err=%v", v, err)
	}
	if s.Stats().Panics != 1 {
		t.Errorf("Panics = %d, want 1", s.Stats().Panics)
	}
}

func TestCall_ContextCancelled(t *testing.T) {
	s := newTestScheduler(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	release := make(chan struct{})
	defer close(release)

	_, err := s.Call(ctx, "slow", func(task *Task) (any, error) {
		return Await(task, time.Second, func(context.Context) (int, error) {
			<-release
			return 0, nil
		})
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestRecv(t *testing.T) {
	s := newTestScheduler(t)
	inbox := make(chan string, 1)

	go func() {
		time.Sleep(5 * time.Millisecond)
		inbox <- "pose"
	}()

	v, err := s.Call(context.Background(), "recv", func(task *Task) (any, error) {
		msg, ok := Recv(task, inbox)
		if !ok {
			return nil, errors.New("inbox closed")
		}
		return msg, nil
	})
	if err != nil || v != "pose" {
		t.Fatalf("Recv = %v, %v", v, err)
	}

	close(inbox)
	v, _ = s.Call(context.Background(), "recv-closed", func(task *Task) (any, error) {
		_, ok := Recv(task, inbox)
		return ok, nil
	})
	if v != false {
		t.Errorf("Recv on closed channel ok = %v, want false", v)
	}
}

func TestObserver(t *testing.T) {
	s := newTestScheduler(t)
	var mu sync.Mutex
	var seen []string
	s.SetObserver(func(task string, waited time.Duration, err error) {
		mu.Lock()
		seen = append(seen, fmt.Sprintf("%s:%v", task, err == nil))
		mu.Unlock()
	})

	_, _ = s.Call(context.Background(), "observed", func(task *Task) (any, error) {
		return Await(task, time.Second, func(context.Context) (int, error) { return 1, nil })
	})

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "observed:true" {
		t.Errorf("observer saw %v", seen)
	}
}
