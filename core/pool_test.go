package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferPool(t *testing.T) {
	t.Run("Get and Put", func(t *testing.T) {
		pool := NewBufferPool(0)
		require.Equal(t, initialPoolSize, len(pool.items), "Pool should be pre-warmed with the correct number of items")

		buf := pool.Get()
		require.NotNil(t, buf, "Get() should not return a nil buffer")
		require.Equal(t, initialPoolSize-1, len(pool.items), "Pool size should decrease by 1 after Get")

		testString := "ACGTACGT"
		buf.WriteString(testString)
		assert.Equal(t, testString, buf.String())

		pool.Put(buf)
		require.Equal(t, initialPoolSize, len(pool.items), "Pool size should return to initial size after Put")

		buf2 := pool.Get()
		assert.Equal(t, 0, buf2.Len(), "Reused buffer should be reset (length 0)")
	})

	t.Run("Get more than pool size", func(t *testing.T) {
		pool := NewBufferPool(0)
		for i := 0; i < initialPoolSize; i++ {
			pool.Get()
		}
		require.Equal(t, 0, len(pool.items))

		newBuf := pool.Get()
		require.NotNil(t, newBuf)
		_, misses, created, _ := pool.GetMetrics()
		assert.Equal(t, uint64(1), misses)
		assert.Equal(t, uint64(initialPoolSize+1), created)

		pool.Put(newBuf)
		require.Equal(t, 1, len(pool.items))
	})

	t.Run("Put beyond limit drops buffers", func(t *testing.T) {
		pool := NewBufferPool(0)
		pool.maxItems = initialPoolSize
		pool.Put(pool.newFunc())
		assert.Equal(t, initialPoolSize, len(pool.items))
	})

	t.Run("With Initial Capacity", func(t *testing.T) {
		initialCap := 128
		pool := NewBufferPool(initialCap)
		buf := pool.Get()
		require.NotNil(t, buf)
		assert.Equal(t, 0, buf.Len())
		assert.GreaterOrEqual(t, buf.Cap(), initialCap)
	})

	t.Run("Concurrent Access", func(t *testing.T) {
		pool := NewBufferPool(128)
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					buf := pool.Get()
					buf.WriteString("N")
					pool.Put(buf)
				}
			}()
		}
		wg.Wait()
		hits, misses, _, size := pool.GetMetrics()
		assert.Equal(t, uint64(50*100), hits+misses)
		assert.LessOrEqual(t, size, int64(maxPoolSize))
	})
}
