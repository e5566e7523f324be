package sessions

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionLockerSerializesWriters(t *testing.T) {
	locker := NewSessionLocker(time.Second)
	var active int32
	var maxActive int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "sess-1", func(context.Context) error {
				n := atomic.AddInt32(&active, 1)
				if n > atomic.LoadInt32(&maxActive) {
					atomic.StoreInt32(&maxActive, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), maxActive)
}

func TestSessionLockerTimesOut(t *testing.T) {
	locker := NewSessionLocker(10 * time.Millisecond)
	require.NoError(t, locker.Lock(context.Background(), "sess-2"))

	err := locker.Lock(context.Background(), "sess-2")
	require.ErrorIs(t, err, ErrLockTimeout)
}
