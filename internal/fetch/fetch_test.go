package fetch

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTasksRunConcurrently(t *testing.T) {
	var running int32
	var peak int32

	fn := func() (int, error) {
		now := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if now <= old || atomic.CompareAndSwapInt32(&peak, old, now) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return 1, nil
	}

	a := Start(fn)
	b := Start(fn)
	a.Wait()
	b.Wait()

	if atomic.LoadInt32(&peak) < 2 {
		t.Error("Expected both fetches to overlap")
	}
}

func TestFailuresAreIndependent(t *testing.T) {
	activities := Start(func() ([]string, error) {
		return nil, errors.New("activities unavailable")
	})
	summary := Start(func() (int, error) {
		return 42, nil
	})

	actRes := activities.Wait()
	sumRes := summary.Wait()

	if actRes.Err == nil {
		t.Error("Expected activities fetch to fail")
	}
	if sumRes.Err != nil {
		t.Error("Summary fetch must not be affected by the other failure:", sumRes.Err)
	}
	if sumRes.Data != 42 {
		t.Errorf("Expected summary data 42, got %d", sumRes.Data)
	}
}

func TestWaitIsRepeatable(t *testing.T) {
	task := Start(func() (string, error) { return "once", nil })

	first := task.Wait()
	second := task.Wait()
	if first.Data != "once" || second.Data != "once" {
		t.Errorf("Expected repeated Wait to return the same result, got %q then %q", first.Data, second.Data)
	}
}
