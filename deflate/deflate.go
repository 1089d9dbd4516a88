// Package deflate implements the Deflator and Inflator: caller-driven and
// streaming compression/decompression built on top of the internal/engine
// native DEFLATE shim.
package deflate

import (
	"io"

	"github.com/pkg/errors"

	"github.com/philipaconrad/flatekit/internal/engine"
)

// Compile-time defaults for level and buffer sizing, since this package has
// no external configuration surface of its own.
const (
	DefaultSizeFactor = 5
	DefaultLevel      = 6

	minSizeFactor = 5
	ringMinSize   = 32 * 1024
)

var (
	// ErrBadParam surfaces engine.CompressBadParam / engine.DecompressBadParam unchanged.
	ErrBadParam = errors.New("deflate: engine rejected call parameters")
	// ErrPutBufFailed surfaces engine.CompressPutBufFailed unchanged.
	ErrPutBufFailed = errors.New("deflate: engine failed to place output")
	// ErrEngineFailed surfaces engine.DecompressFailed unchanged.
	ErrEngineFailed = errors.New("deflate: compressed stream is malformed")
	// ErrAdler32Mismatch surfaces engine.DecompressAdler32Mismatch unchanged.
	ErrAdler32Mismatch = errors.New("deflate: Adler-32 checksum mismatch")
	// ErrAborted is returned when a write callback requests cancellation.
	ErrAborted = errors.New("deflate: write callback requested cancellation")
	// ErrTruncated is returned when input ends before the engine signals DONE.
	ErrTruncated = errors.New("deflate: input truncated before engine signalled completion")
	// ErrClosed is returned by operations attempted after Close.
	ErrClosed = errors.New("deflate: use after Close")
	// ErrFinalized is returned by CompressWrite calls after a final write already completed.
	ErrFinalized = errors.New("deflate: write after finalization")
)

// ReadFunc pulls up to len(p) bytes of input, returning (0, nil) for EOF —
// matching this codebase's callback-driven pipe convention rather than
// io.Reader's io.EOF sentinel, since a zero-length non-error read is used
// throughout the pipe/drive loops as the refill-is-exhausted signal.
type ReadFunc func(p []byte) (int, error)

// WriteFunc accepts a fully-formed chunk of output. The bool return
// requests cancellation of the enclosing pipe when true.
type WriteFunc func(p []byte, isFinal bool) (cancel bool, err error)

func sizeFactorToBufLen(f int) int {
	if f < minSizeFactor {
		f = minSizeFactor
	}
	return 1024 << uint(f)
}

func ringSizeFor(f int) int {
	n := sizeFactorToBufLen(f)
	size := ringMinSize
	for size < n {
		size <<= 1
	}
	return size
}

// wrapReader adapts an io.Reader to ReadFunc, translating io.EOF into a
// zero-length, error-free read.
func wrapReader(r io.Reader) ReadFunc {
	return func(p []byte) (int, error) {
		n, err := r.Read(p)
		if err == io.EOF {
			return n, nil
		}
		return n, err
	}
}

func mapDecompressStatus(status engine.DecompressStatus) error {
	switch status {
	case engine.DecompressFailed:
		return ErrEngineFailed
	case engine.DecompressAdler32Mismatch:
		return ErrAdler32Mismatch
	case engine.DecompressBadParam:
		return ErrBadParam
	default:
		return nil
	}
}
