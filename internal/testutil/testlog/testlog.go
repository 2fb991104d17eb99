package testlog

import (
	"bytes"
	"sync"
	"testing"

	"github.com/danmuck/mirbridge/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Start(t *testing.T) {
	t.Helper()
	logging.ConfigureTests()
	log.Info().Msgf("test=%s", t.Name())
}

// Buffer is a concurrency-safe log sink for asserting on emitted lines.
type Buffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Capture returns a JSON logger writing into a Buffer, at debug level.
func Capture(t *testing.T) (zerolog.Logger, *Buffer) {
	t.Helper()
	buf := &Buffer{}
	return zerolog.New(buf).Level(zerolog.DebugLevel), buf
}
