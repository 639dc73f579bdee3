// Package vertex provides the Vertex AI reasoning-engine client.
package vertex

import (
	"io"

	"github.com/advisorkit/advisor-proxy-go/internal/errors"
)

// relayBufferSize is the size of the single in-flight chunk buffer
const relayBufferSize = 32 * 1024

// Relay forwards an upstream byte stream to the consumer one chunk at a
// time. Chunk boundaries and ordering are preserved exactly as the transport
// delivers them; at most one chunk is in flight, so memory use is bounded
// regardless of response size.
//
// The chunk channel is closed exactly once after the last chunk. If the
// upstream read fails mid-stream, the chunks already emitted stand and a
// terminal StreamError is delivered on the error channel before both
// channels close. The relay is single-pass and non-restartable; it is the
// only reader of src and closes it when done.
func Relay(src io.ReadCloser) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)
		defer src.Close()

		emitted := 0
		buf := make([]byte, relayBufferSize)

		for {
			n, err := src.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				chunks <- chunk
				emitted++
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- errors.NewStreamError("upstream stream terminated: "+err.Error(), emitted)
				return
			}
		}
	}()

	return chunks, errs
}

// Drain consumes a relay to completion and returns the concatenated bytes.
// This is the explicit materializing adapter over the streaming contract;
// callers that need bounded memory must consume the channels directly.
func Drain(chunks <-chan []byte, errs <-chan error) ([]byte, error) {
	var out []byte
	for chunk := range chunks {
		out = append(out, chunk...)
	}
	if err := <-errs; err != nil {
		return out, err
	}
	return out, nil
}
