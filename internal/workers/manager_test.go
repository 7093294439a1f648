package workers

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	name     string
	startErr error
	events   *[]string
}

func (w *fakeWorker) Name() string { return w.name }

func (w *fakeWorker) Start() error {
	if w.startErr != nil {
		return w.startErr
	}
	*w.events = append(*w.events, "start "+w.name)
	return nil
}

func (w *fakeWorker) Stop() {
	*w.events = append(*w.events, "stop "+w.name)
}

func TestManager_StartStop(t *testing.T) {
	var events []string
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(logger,
		&fakeWorker{name: "a", events: &events},
		&fakeWorker{name: "b", events: &events},
	)

	require.NoError(t, m.Start())
	m.Stop()

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
}

func TestManager_StartFailureStopsStarted(t *testing.T) {
	var events []string
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := NewManager(logger,
		&fakeWorker{name: "a", events: &events},
		&fakeWorker{name: "b", events: &events, startErr: errors.New("bad schedule")},
	)

	err := m.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start worker b")
	assert.Equal(t, []string{"start a", "stop a"}, events)

	m.Stop()
	assert.Len(t, events, 2, "a second Stop is a no-op")
}
