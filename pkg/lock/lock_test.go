package lock

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type locker interface {
	Lock(key string)
	Unlock(key string)
	RLock(key string)
	RUnlock(key string)
}

func TestLockers_ExclusiveWrites(t *testing.T) {
	lockers := map[string]locker{
		"stripe": NewStripeLock(16),
		"mutex":  NewMutexLock(),
	}
	for name, l := range lockers {
		t.Run(name, func(t *testing.T) {
			counter := 0
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < 100; j++ {
						l.Lock("same-key")
						counter++
						l.Unlock("same-key")
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 5000, counter)
		})
	}
}

func TestStripeLock_DefaultStripes(t *testing.T) {
	sl := NewStripeLock(0)
	assert.Len(t, sl.stripes, 2048)
	assert.Same(t, sl.stripe("a"), sl.stripe("a"))
}

func TestInFlight_SecondAcquireFails(t *testing.T) {
	f := NewInFlight()

	release, ok := f.TryAcquire("video-1")
	require.True(t, ok)
	assert.True(t, f.Busy("video-1"))

	_, ok = f.TryAcquire("video-1")
	assert.False(t, ok, "same id must be rejected while outstanding")

	other, ok := f.TryAcquire("video-2")
	require.True(t, ok, "different ids are independent")
	other()

	release()
	release()
	assert.False(t, f.Busy("video-1"))
	assert.Equal(t, 0, f.Len())

	again, ok := f.TryAcquire("video-1")
	require.True(t, ok, "id is free after release")
	again()
}

func TestInFlight_ZeroValue(t *testing.T) {
	var f InFlight
	release, ok := f.TryAcquire("x")
	require.True(t, ok)
	release()
}

func TestInFlight_ConcurrentAcquireSingleWinner(t *testing.T) {
	f := NewInFlight()
	var winners atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := f.TryAcquire("comment-9"); ok {
				winners.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func benchmarkLocker(b *testing.B, l locker, readRatio float64) {
	keys := make([]string, 1000)
	for i := range keys {
		keys[i] = fmt.Sprintf("/videos/%d", i)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(time.Now().UnixNano()))
		for pb.Next() {
			key := keys[r.Intn(len(keys))]
			if r.Float64() < readRatio {
				l.RLock(key)
				l.RUnlock(key)
			} else {
				l.Lock(key)
				l.Unlock(key)
			}
		}
	})
}

func BenchmarkStripeLock_ReadHeavy(b *testing.B) { benchmarkLocker(b, NewStripeLock(256), 0.9) }
func BenchmarkMutexLock_ReadHeavy(b *testing.B)  { benchmarkLocker(b, NewMutexLock(), 0.9) }
