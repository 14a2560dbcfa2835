package registry_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cory-johannsen/impostor/internal/game/registry"
)

func TestGraceTimer_Fires(t *testing.T) {
	var called atomic.Int32
	registry.NewGraceTimer(10*time.Millisecond, func() {
		called.Add(1)
	})
	assert.Eventually(t, func() bool { return called.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestGraceTimer_StopPreventsCallback(t *testing.T) {
	var called atomic.Int32
	gt := registry.NewGraceTimer(30*time.Millisecond, func() {
		called.Add(1)
	})
	gt.Stop()
	assert.True(t, gt.Stopped())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), called.Load())
}

func TestGraceTimer_StopIdempotent(t *testing.T) {
	gt := registry.NewGraceTimer(time.Second, func() {})
	gt.Stop()
	gt.Stop()
	assert.True(t, gt.Stopped())
}
