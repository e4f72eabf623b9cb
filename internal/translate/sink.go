package translate

import (
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
)

// Sink receives encoded frames.
type Sink interface {
	WriteFrame(v any) error
}

// SSEWriter frames each value as a server-sent event and flushes it.
type SSEWriter struct {
	w io.Writer
}

// NewSSEWriter returns an SSEWriter writing to w.
func NewSSEWriter(w io.Writer) *SSEWriter { return &SSEWriter{w: w} }

// WriteFrame implements Sink.
func (s *SSEWriter) WriteFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// LineWriter writes each value as one JSON line.
type LineWriter struct {
	w io.Writer
}

// NewLineWriter returns a LineWriter writing to w.
func NewLineWriter(w io.Writer) *LineWriter { return &LineWriter{w: w} }

// WriteFrame implements Sink.
func (l *LineWriter) WriteFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	data = append(data, '\n')
	_, err = l.w.Write(data)
	return err
}
