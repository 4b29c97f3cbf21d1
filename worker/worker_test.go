package worker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_SingleWorkerKeepsOrder(t *testing.T) {
	p := New(1, 16)
	p.Start()

	var mu sync.Mutex
	var got []int
	for i := 0; i < 10; i++ {
		i := i
		assert.True(t, p.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	p.Stop()

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := New(2, 1)
	p.Start()
	p.Stop()
	p.Stop()

	assert.False(t, p.Submit(func() {}))
}

func TestPool_StopWithoutStartRunsQueued(t *testing.T) {
	p := New(1, 4)
	ran := 0
	p.Submit(func() { ran++ })
	p.Submit(func() { ran++ })
	p.Stop()

	assert.Equal(t, 2, ran)
}
