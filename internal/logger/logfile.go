package logger

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	logFileBufferSize    = 32 * 1024
	logFileFlushInterval = time.Second
)

// logFile is an append-only log file behind a write buffer. A background
// goroutine flushes the buffer every logFileFlushInterval.
type logFile struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	closed bool

	done chan struct{}
	wg   sync.WaitGroup
}

func openLogFile(path string) (*logFile, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := ensureFileDirectory(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	lf := &logFile{
		file: f,
		buf:  bufio.NewWriterSize(f, logFileBufferSize),
		done: make(chan struct{}),
	}
	lf.wg.Go(lf.flushLoop)
	return lf, nil
}

func (lf *logFile) flushLoop() {
	ticker := time.NewTicker(logFileFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-lf.done:
			return
		case <-ticker.C:
			_ = lf.Flush()
		}
	}
}

func (lf *logFile) Write(p []byte) (int, error) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.closed {
		return 0, os.ErrClosed
	}
	return lf.buf.Write(p)
}

// Flush hands buffered records to the OS
func (lf *logFile) Flush() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if lf.closed {
		return nil
	}
	return lf.buf.Flush()
}

// Close stops the flush loop, then flushes, syncs and closes the file.
// Calling Close twice is a no-op.
func (lf *logFile) Close() error {
	lf.mu.Lock()
	if lf.closed {
		lf.mu.Unlock()
		return nil
	}
	lf.closed = true
	close(lf.done)
	err := errors.Join(lf.buf.Flush(), lf.file.Sync(), lf.file.Close())
	lf.mu.Unlock()

	lf.wg.Wait()
	return err
}
