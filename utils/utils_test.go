package utils_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RogueTeam/ilpgateway/utils"
	"github.com/stretchr/testify/assert"
)

func Test_Between(t *testing.T) {
	assertions := assert.New(t)

	assertions.True(utils.Between(1, 1, 10))
	assertions.True(utils.Between(10, 1, 10))
	assertions.False(utils.Between(0, 1, 10))
	assertions.False(utils.Between(10.5, 1, 10))
}

func Test_JobPool(t *testing.T) {
	assertions := assert.New(t)

	const size = 3
	pool := utils.NewJobPool(size)

	var running, peak atomic.Int64
	var wg sync.WaitGroup
	for range 20 {
		pool.Get()
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer pool.Put()

			current := running.Add(1)
			for {
				old := peak.Load()
				if current <= old || peak.CompareAndSwap(old, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
		}()
	}
	wg.Wait()

	assertions.LessOrEqual(peak.Load(), int64(size), "pool exceeded its size")
}

func Test_ConsumeChannel(t *testing.T) {
	c := make(chan int, 10)
	for i := range 10 {
		c <- i
	}
	close(c)

	utils.ConsumeChannel[int](c)
	_, ok := <-c
	assert.False(t, ok, "channel should be drained")
}

func Test_WithTimeout(t *testing.T) {
	assertions := assert.New(t)

	ctx, cancel := utils.WithTimeout(t.Context(), 0)
	defer cancel()
	_, hasDeadline := ctx.Deadline()
	assertions.False(hasDeadline)

	ctx, cancel = utils.WithTimeout(t.Context(), time.Minute)
	defer cancel()
	_, hasDeadline = ctx.Deadline()
	assertions.True(hasDeadline)
}
