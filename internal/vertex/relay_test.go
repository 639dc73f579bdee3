package vertex

import (
	"bytes"
	"errors"
	"io"
	"testing"

	apperrors "github.com/advisorkit/advisor-proxy-go/internal/errors"
)

// scriptedReader returns one scripted chunk per Read call, then the final
// error. It mimics a network transport delivering data in bursts.
type scriptedReader struct {
	chunks   [][]byte
	finalErr error
	pos      int
	closed   bool
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.chunks) {
		if r.finalErr != nil {
			return 0, r.finalErr
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.pos])
	r.pos++
	return n, nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

func TestRelayPreservesChunkBoundaries(t *testing.T) {
	src := &scriptedReader{
		chunks: [][]byte{
			[]byte("first "),
			[]byte("second "),
			[]byte("third"),
		},
	}

	chunks, errs := Relay(src)

	var got [][]byte
	for chunk := range chunks {
		got = append(got, chunk)
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected relay error: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	for i, want := range []string{"first ", "second ", "third"} {
		if string(got[i]) != want {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want)
		}
	}
	if !src.closed {
		t.Error("relay must close the upstream body")
	}
}

func TestRelayMidStreamError(t *testing.T) {
	src := &scriptedReader{
		chunks: [][]byte{
			[]byte("partial "),
			[]byte("data"),
		},
		finalErr: errors.New("connection reset"),
	}

	chunks, errs := Relay(src)

	var got bytes.Buffer
	for chunk := range chunks {
		got.Write(chunk)
	}
	err := <-errs

	if got.String() != "partial data" {
		t.Errorf("chunks before the failure must stand: %q", got.String())
	}
	if err == nil {
		t.Fatal("expected a terminal stream error")
	}
	if !apperrors.IsStreamError(err) {
		t.Fatalf("expected StreamError, got %T", err)
	}
	streamErr := err.(*apperrors.StreamError)
	if streamErr.ChunksEmitted != 2 {
		t.Errorf("ChunksEmitted = %d, want 2", streamErr.ChunksEmitted)
	}
	if !src.closed {
		t.Error("relay must close the upstream body on error")
	}
}

func TestRelayEmptyStream(t *testing.T) {
	src := &scriptedReader{}

	chunks, errs := Relay(src)

	count := 0
	for range chunks {
		count++
	}
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no chunks, got %d", count)
	}
}

func TestRelayErrorBeforeAnyChunk(t *testing.T) {
	src := &scriptedReader{finalErr: errors.New("refused")}

	chunks, errs := Relay(src)

	for range chunks {
		t.Error("no chunks expected")
	}
	err := <-errs
	if !apperrors.IsStreamError(err) {
		t.Fatalf("expected StreamError, got %v", err)
	}
	if err.(*apperrors.StreamError).ChunksEmitted != 0 {
		t.Error("ChunksEmitted should be 0")
	}
}

func TestDrainMaterializesStream(t *testing.T) {
	src := &scriptedReader{
		chunks: [][]byte{[]byte("a"), []byte("b"), []byte("c")},
	}

	chunks, errs := Relay(src)
	out, err := Drain(chunks, errs)
	if err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if string(out) != "abc" {
		t.Errorf("Drain = %q, want %q", out, "abc")
	}
}

func TestDrainSurfacesError(t *testing.T) {
	src := &scriptedReader{
		chunks:   [][]byte{[]byte("partial")},
		finalErr: errors.New("cut"),
	}

	chunks, errs := Relay(src)
	out, err := Drain(chunks, errs)
	if err == nil {
		t.Fatal("expected error from Drain")
	}
	if string(out) != "partial" {
		t.Errorf("Drain should return the bytes received before the failure, got %q", out)
	}
}
