package transfer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/fileschema/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newFakeThrottle(clock *fakeClock) *Throttle {
	throttle := NewThrottle()
	throttle.now = clock.Now
	throttle.sleep = clock.Sleep
	return throttle
}

func TestThrottle_Wait(t *testing.T) {
	t.Parallel()

	t.Run("first transfer does not wait", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		throttle := newFakeThrottle(clock)

		require.NoError(t, throttle.Wait(context.Background(), time.Second))
		assert.Empty(t, clock.slept)
		assert.Equal(t, clock.now, throttle.Last())
	})

	t.Run("second transfer waits for the remaining interval", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		throttle := newFakeThrottle(clock)

		require.NoError(t, throttle.Wait(context.Background(), time.Second))
		clock.now = clock.now.Add(300 * time.Millisecond)
		require.NoError(t, throttle.Wait(context.Background(), time.Second))

		require.Len(t, clock.slept, 1)
		assert.Equal(t, 700*time.Millisecond, clock.slept[0])
	})

	t.Run("elapsed interval does not wait", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		throttle := newFakeThrottle(clock)

		require.NoError(t, throttle.Wait(context.Background(), time.Second))
		clock.now = clock.now.Add(2 * time.Second)
		require.NoError(t, throttle.Wait(context.Background(), time.Second))
		assert.Empty(t, clock.slept)
	})

	t.Run("zero interval never waits", func(t *testing.T) {
		t.Parallel()

		clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
		throttle := newFakeThrottle(clock)

		require.NoError(t, throttle.Wait(context.Background(), 0))
		require.NoError(t, throttle.Wait(context.Background(), 0))
		assert.Empty(t, clock.slept)
	})
}

func TestThrottle_WaitCancelled(t *testing.T) {
	t.Parallel()

	throttle := NewThrottle()
	require.NoError(t, throttle.Wait(context.Background(), time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := throttle.Wait(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_TransferLocal(t *testing.T) {
	t.Parallel()

	sourceDir := t.TempDir()
	source := filepath.Join(sourceDir, "orders.csv")
	require.NoError(t, os.WriteFile(source, []byte("id,name\n1,Alice\n"), 0o600))

	targetDir := filepath.Join(t.TempDir(), "archive")
	settings := model.CopySettings{Mode: model.TransferLocal, Target: targetDir}

	target, err := NewClient(nil).Transfer(context.Background(), source, settings)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(targetDir, "orders.csv"), target)
	assert.Equal(t, TargetPath(source, settings), target)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Alice\n", string(content))
}

func TestClient_TransferErrors(t *testing.T) {
	t.Parallel()

	client := NewClient(nil)

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()

		settings := model.CopySettings{Mode: model.TransferLocal, Target: t.TempDir()}
		_, err := client.Transfer(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), settings)
		assert.ErrorIs(t, err, model.ErrSourceRead)
	})

	t.Run("unsupported mode", func(t *testing.T) {
		t.Parallel()

		settings := model.CopySettings{Mode: "carrier-pigeon"}
		_, err := client.Transfer(context.Background(), "a.csv", settings)
		assert.ErrorIs(t, err, model.ErrSourceRead)
	})

	t.Run("no mode copies nothing", func(t *testing.T) {
		t.Parallel()

		target, err := client.Transfer(context.Background(), "a.csv", model.CopySettings{})
		require.NoError(t, err)
		assert.Empty(t, target)
	})

	t.Run("sftp without credentials", func(t *testing.T) {
		t.Parallel()

		source := filepath.Join(t.TempDir(), "a.csv")
		require.NoError(t, os.WriteFile(source, []byte("x"), 0o600))

		settings := model.CopySettings{Mode: model.TransferSFTP, Host: "127.0.0.1", Target: "/upload"}
		_, err := client.Transfer(context.Background(), source, settings)
		assert.ErrorIs(t, err, model.ErrConfiguration)
	})
}

func TestTargetPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/upload/a.csv", TargetPath("/data/in/a.csv", model.CopySettings{Mode: model.TransferSFTP, Target: "/upload"}))
	assert.Equal(t, "/upload/a.csv", TargetPath("/data/in/a.csv", model.CopySettings{Mode: model.TransferFTP, Target: "/upload/"}))
}
