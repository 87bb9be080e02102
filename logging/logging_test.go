package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Paygate/logger"
)

type bufferWriter struct {
	mux  sync.Mutex
	logs []logger.Log
}

func (b *bufferWriter) Write(p []byte) (int, error) {
	var l logger.Log
	if err := json.Unmarshal(p, &l); err != nil {
		return 0, err
	}
	b.mux.Lock()
	defer b.mux.Unlock()
	b.logs = append(b.logs, l)
	return len(p), nil
}

func (b *bufferWriter) len() int {
	b.mux.Lock()
	defer b.mux.Unlock()
	return len(b.logs)
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

func TestHelperWritesAllLevels(t *testing.T) {
	w := &bufferWriter{}
	h := New("test", nil, nil, w)

	h.Debug("debug")
	h.Info("info")
	h.Warn("warn")
	h.Error("error")

	assert.Eventually(t, func() bool { return w.len() == 4 }, time.Second, 10*time.Millisecond)

	levels := make(map[string]string)
	w.mux.Lock()
	for _, l := range w.logs {
		levels[l.Level] = l.Msg
		assert.Equal(t, "test", l.Service)
	}
	w.mux.Unlock()
	assert.Equal(t, map[string]string{"debug": "debug", "info": "info", "warn": "warn", "error": "error"}, levels)
}

func TestHelperFatalCallsCallback(t *testing.T) {
	w := &bufferWriter{}
	var fatal error
	h := New("test", nil, func(err error) { fatal = err }, w)

	h.Fatal("boom")

	require.Error(t, fatal)
	assert.ErrorIs(t, fatal, ErrFatal)
	assert.Equal(t, 1, w.len())
}

func TestHelperReportsWriterErrors(t *testing.T) {
	var buf bytes.Buffer
	var mux sync.Mutex
	h := New("test", func(err error) {
		mux.Lock()
		defer mux.Unlock()
		buf.WriteString(err.Error())
	}, nil, failingWriter{})

	h.Info("lost")

	assert.Eventually(t, func() bool {
		mux.Lock()
		defer mux.Unlock()
		return buf.String() == "write failed"
	}, time.Second, 10*time.Millisecond)
}
