package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screen-capture/src/messages"
)

func TestPublishSkipsSender(t *testing.T) {
	r := New()
	defer r.Shutdown()

	tray, err := r.Subscribe(messages.ComponentTray, 4)
	require.NoError(t, err)
	backend, err := r.Subscribe(messages.ComponentBackend, 4)
	require.NoError(t, err)

	r.Publish(messages.ComponentBackend, messages.RecordingStateChanged{State: "recording"})

	env, err := WaitForMessage(tray, messages.TypeRecordingStateChanged, time.Second)
	require.NoError(t, err)
	assert.Equal(t, messages.ComponentBackend, env.From)
	assert.Equal(t, "recording", env.Message.(messages.RecordingStateChanged).State)
	assert.Equal(t, 0, DrainChannel(backend))
}

func TestPublishDropsWhenFull(t *testing.T) {
	r := New()
	defer r.Shutdown()

	inbox, err := r.Subscribe(messages.ComponentNotify, 1)
	require.NoError(t, err)

	pub := r.Publisher(messages.ComponentBackend)
	for i := 0; i < 5; i++ {
		pub(messages.RecordingDuration{ElapsedSeconds: float64(i)})
	}
	assert.Equal(t, 1, DrainChannel(inbox))
}

func TestSendDirect(t *testing.T) {
	r := New()
	defer r.Shutdown()

	main, err := r.Subscribe(messages.ComponentMain, 1)
	require.NoError(t, err)

	require.NoError(t, r.Send(messages.MessageEnvelope{
		From: messages.ComponentTray, To: messages.ComponentMain,
		Message: messages.TrayAction{Action: "capture_area"},
	}))
	env := <-main
	assert.Equal(t, "capture_area", env.Message.(messages.TrayAction).Action)

	err = r.Send(messages.MessageEnvelope{To: "nobody", Message: messages.Shutdown{}})
	assert.Error(t, err)
}

func TestSendTimesOut(t *testing.T) {
	r := New()
	defer r.Shutdown()
	r.SendTimeout = 10 * time.Millisecond

	_, err := r.Subscribe(messages.ComponentMain, 0)
	require.NoError(t, err)
	err = r.Send(messages.MessageEnvelope{To: messages.ComponentMain, Message: messages.Shutdown{}})
	assert.ErrorContains(t, err, "timeout")
}

func TestSubscribeTwiceFails(t *testing.T) {
	r := New()
	_, err := r.Subscribe("x", 1)
	require.NoError(t, err)
	_, err = r.Subscribe("x", 1)
	assert.Error(t, err)
	assert.Equal(t, []string{"x"}, r.Subscribers())

	r.Shutdown()
	assert.Empty(t, r.Subscribers())
	_, err = r.Subscribe("y", 1)
	assert.Error(t, err)
	r.Publish("z", messages.Shutdown{})
}
