package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/signal_copier/internal/usecase"
	"go.uber.org/zap"
)

func TestWorker_RunsJobsInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := usecase.NewWorker(16, zap.NewNop())
	w.Start(ctx)
	defer w.Stop()

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		require.NoError(t, w.Submit("job", func(ctx context.Context) {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	wg.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
}

func TestWorker_Call(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := usecase.NewWorker(4, zap.NewNop())
	w.Start(ctx)
	defer w.Stop()

	errBoom := errors.New("boom")
	assert.NoError(t, w.Call(ctx, "ok", func(ctx context.Context) error { return nil }))
	assert.ErrorIs(t, w.Call(ctx, "fail", func(ctx context.Context) error { return errBoom }), errBoom)
}

func TestWorker_SurvivesPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := usecase.NewWorker(4, zap.NewNop())
	w.Start(ctx)
	defer w.Stop()

	require.NoError(t, w.Submit("panics", func(ctx context.Context) { panic("bad job") }))
	assert.NoError(t, w.Call(ctx, "after", func(ctx context.Context) error { return nil }))
}

func TestWorker_CallTimesOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := usecase.NewWorker(4, zap.NewNop())
	w.Start(ctx)
	defer w.Stop()

	release := make(chan struct{})
	require.NoError(t, w.Submit("slow", func(ctx context.Context) { <-release }))

	callCtx, callCancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer callCancel()
	err := w.Call(callCtx, "waiting", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)
}

func TestCallValue(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := usecase.NewWorker(4, zap.NewNop())
	w.Start(ctx)
	defer w.Stop()

	got, err := usecase.CallValue(ctx, w, "answer", func(ctx context.Context) ([]int, error) {
		return []int{4, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2}, got)

	release := make(chan struct{})
	finished := make(chan []int, 1)
	callCtx, callCancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer callCancel()
	got, err = usecase.CallValue(callCtx, w, "slow", func(ctx context.Context) ([]int, error) {
		<-release
		out := []int{1}
		finished <- out
		return out, nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, got)

	close(release)
	select {
	case v := <-finished:
		assert.Equal(t, []int{1}, v)
	case <-time.After(time.Second):
		t.Fatal("abandoned job did not finish")
	}
}

func TestWorker_QueueFullAndStopped(t *testing.T) {
	w := usecase.NewWorker(1, zap.NewNop())

	// Not started: the single slot fills and the next submit is rejected.
	require.NoError(t, w.Submit("first", func(ctx context.Context) {}))
	assert.ErrorIs(t, w.Submit("second", func(ctx context.Context) {}), usecase.ErrWorkerQueueFull)

	w.Start(context.Background())
	w.Stop()
	assert.ErrorIs(t, w.Submit("late", func(ctx context.Context) {}), usecase.ErrWorkerStopped)
}
