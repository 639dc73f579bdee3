// Package stream provides chunked streaming response writing utilities.
package stream

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer wraps an http.ResponseWriter for chunk-preserving streaming
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter creates a new stream writer
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	return &Writer{
		w:       w,
		flusher: flusher,
	}, nil
}

// SetHeaders sets the streaming response headers
func (sw *Writer) SetHeaders() {
	sw.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	sw.w.Header().Set("Cache-Control", "no-cache")
	sw.w.Header().Set("Connection", "keep-alive")
	sw.w.Header().Set("X-Accel-Buffering", "no")
}

// WriteChunk writes one upstream chunk exactly as received and flushes it
func (sw *Writer) WriteChunk(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	_, err := sw.w.Write(chunk)
	if err != nil {
		return err
	}

	sw.flusher.Flush()
	return nil
}

// WriteJSONError writes an error payload and flushes it. Only useful before
// any chunk has been written; once streaming has started the connection is
// simply closed.
func (sw *Writer) WriteJSONError(errorType, message string) error {
	errorData := map[string]interface{}{
		"type": "error",
		"error": map[string]string{
			"type":    errorType,
			"message": message,
		},
	}

	jsonData, err := json.Marshal(errorData)
	if err != nil {
		return err
	}

	_, err = sw.w.Write(jsonData)
	if err != nil {
		return err
	}

	sw.flusher.Flush()
	return nil
}

// Flush flushes any buffered data
func (sw *Writer) Flush() {
	sw.flusher.Flush()
}
