// Package persistence implements the append-only log that makes the
// in-memory knowledge graph durable between snapshots.
package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// AOFWriter appends framed records to the log file.
type AOFWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	fw   *FrameWriter
	path string
}

// NewAOFWriter opens or creates a log file at the given path.
func NewAOFWriter(path string) (*AOFWriter, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open AOF file: %w", err)
	}

	buf := bufio.NewWriter(file)
	return &AOFWriter{
		file: file,
		buf:  buf,
		fw:   NewFrameWriter(buf),
		path: path,
	}, nil
}

// Append writes one record to the buffer. Call Flush or Sync to make it durable.
func (a *AOFWriter) Append(op OpCode, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.fw.WriteFrame(op, payload)
}

// Flush forces the buffer contents to be written to the file descriptor.
func (a *AOFWriter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Flush()
}

// Sync flushes and fsyncs.
func (a *AOFWriter) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		return err
	}
	return a.file.Sync()
}

// Close flushes and closes the underlying file.
func (a *AOFWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		_ = a.file.Close()
		return err
	}
	return a.file.Close()
}

// Truncate clears the file content. Used after a snapshot has been written.
func (a *AOFWriter) Truncate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.buf.Reset(a.file)
	if err := a.file.Truncate(0); err != nil {
		return err
	}
	_, err := a.file.Seek(0, io.SeekStart)
	return err
}

// Size returns the on-disk size, excluding buffered bytes.
func (a *AOFWriter) Size() (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	info, err := a.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Path returns the file path.
func (a *AOFWriter) Path() string {
	return a.path
}

// Replay reads every frame from r and hands it to apply, in order.
//
// A torn frame at the very end of the stream (crash during write) stops the
// replay without error; the partial record is logged and dropped. Any other
// framing error, or an error from apply, aborts the replay.
func Replay(r io.Reader, apply func(op OpCode, payload []byte) error) (int, error) {
	br := bufio.NewReader(r)
	applied := 0
	offset := 0

	for {
		op, payload, n, err := ReadFrame(br)
		if err == io.EOF {
			return applied, nil
		}
		if errors.Is(err, ErrIncompleteFrame) {
			slog.Warn("AOF ends with an incomplete frame, ignoring tail", "offset", offset, "records", applied)
			return applied, nil
		}
		if err != nil {
			return applied, fmt.Errorf("AOF corrupted at offset %d: %w", offset, err)
		}
		if err := apply(op, payload); err != nil {
			return applied, fmt.Errorf("AOF record %d (offset %d): %w", applied, offset, err)
		}
		applied++
		offset += n
	}
}
