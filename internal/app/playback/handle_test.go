package playback

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimedOpener_FallbackDuration(t *testing.T) {
	opener := TimedOpener{Fallback: 30 * time.Second}

	h, err := opener.Open("mem://clip", 0)
	require.NoError(t, err)
	defer h.Stop()

	assert.Equal(t, 30*time.Second, h.Duration())
}

func TestTimedHandle_FinishesAfterDuration(t *testing.T) {
	opener := TimedOpener{Fallback: time.Second}

	h, err := opener.Open("mem://clip", 60*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, h.Play())

	select {
	case err := <-h.Done():
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("clip did not finish")
	}
	assert.Equal(t, h.Duration(), h.Position())
}

func TestTimedHandle_StopSuppressesDone(t *testing.T) {
	opener := TimedOpener{Fallback: time.Second}

	h, err := opener.Open("mem://clip", 60*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, h.Play())
	h.Stop()

	select {
	case <-h.Done():
		t.Fatal("done must not fire after stop")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTimedHandle_PauseHoldsPosition(t *testing.T) {
	opener := TimedOpener{Fallback: time.Second}

	h, err := opener.Open("mem://clip", 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, h.Play())
	defer h.Stop()

	time.Sleep(50 * time.Millisecond)
	h.Pause()

	p1 := h.Position()
	time.Sleep(100 * time.Millisecond)
	p2 := h.Position()
	assert.Equal(t, p1, p2, "position must not advance while paused")
	assert.Greater(t, p1, time.Duration(0))
}
