package gzipstream

import (
	"hash/crc32"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/philipaconrad/flatekit/deflate"
)

const (
	stateWroteHeader uint32 = 1 << iota
	stateClosed
	stateFinalized
)

// GzipStreamWriter is the GZipWriter adapter: a writer whose Write feeds
// bytes into a Deflator via CompressWrite(..., final=false, ...) while
// accumulating a running CRC-32 over the plaintext, and whose Finalize
// drives the engine to DONE and appends the gzip trailer. It keeps the
// teacher package's single-uint32-bitflag state-tracking idiom rather than
// a handful of separate booleans.
type GzipStreamWriter struct {
	Header

	w          io.Writer
	def        *deflate.Deflator
	level      int
	sizeFactor int
	err        error
	digest     uint32
	size       uint32
	stateFlags uint32

	// Logger receives Debug/Warn diagnostics; defaults to the package
	// logger and is never forced on callers who want silence.
	Logger *logrus.Logger
}

func (z *GzipStreamWriter) checkWroteHeader() bool { return z.stateFlags&stateWroteHeader != 0 }
func (z *GzipStreamWriter) setWroteHeader()         { z.stateFlags |= stateWroteHeader }
func (z *GzipStreamWriter) checkClosed() bool       { return z.stateFlags&stateClosed != 0 }
func (z *GzipStreamWriter) setClosed()              { z.stateFlags |= stateClosed }
func (z *GzipStreamWriter) checkFinalized() bool    { return z.stateFlags&stateFinalized != 0 }
func (z *GzipStreamWriter) setFinalized()           { z.stateFlags |= stateFinalized }

// NewGzipStreamWriter returns a writer using DefaultCompression and the
// deflate package's DefaultSizeFactor.
func NewGzipStreamWriter(w io.Writer) *GzipStreamWriter {
	z, _ := NewGzipStreamWriterLevel(w, DefaultCompression)
	return z
}

// NewGzipStreamWriterLevel is like NewGzipStreamWriter but specifies the
// compression level. level must be DefaultCompression or in [0,9].
func NewGzipStreamWriterLevel(w io.Writer, level int) (*GzipStreamWriter, error) {
	return NewGzipStreamWriterLevelFactor(w, level, deflate.DefaultSizeFactor)
}

// NewGzipStreamWriterLevelFactor additionally specifies the Deflator's
// buffer size factor F.
func NewGzipStreamWriterLevelFactor(w io.Writer, level, sizeFactor int) (*GzipStreamWriter, error) {
	resolved, err := resolveLevel(level)
	if err != nil {
		return nil, err
	}
	z := &GzipStreamWriter{}
	z.init(w, resolved, sizeFactor)
	return z, nil
}

func (z *GzipStreamWriter) init(w io.Writer, level, sizeFactor int) {
	*z = GzipStreamWriter{
		Header:     Header{OS: 255},
		w:          w,
		def:        deflate.NewDeflator(sizeFactor),
		level:      level,
		sizeFactor: sizeFactor,
		Logger:     log,
	}
	z.def.Init(level, false, false)
}

// Reset discards the Writer's state and makes it equivalent to the result
// of NewGzipStreamWriterLevel, but writing to w instead. The previous
// Deflator is closed first.
func (z *GzipStreamWriter) Reset(w io.Writer) {
	if z.def != nil {
		z.def.Close()
	}
	z.init(w, z.level, z.sizeFactor)
}

func (z *GzipStreamWriter) writeHeaderIfNeeded() error {
	if z.checkWroteHeader() {
		return nil
	}
	if err := writeGzipHeader(z.w, z.Header); err != nil {
		return err
	}
	z.setWroteHeader()
	z.Logger.WithFields(logFields{"name": z.Name, "level": z.level}).Debug("gzipstream: wrote header")
	return nil
}

// Write compresses p and writes it to the underlying writer, accumulating
// the running CRC-32. Compressed bytes may be buffered internally and are
// not guaranteed to reach w until Finalize.
func (z *GzipStreamWriter) Write(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	if z.checkClosed() {
		return 0, ErrClosed
	}
	if z.checkFinalized() {
		return 0, ErrFinalized
	}
	if err := z.writeHeaderIfNeeded(); err != nil {
		z.err = err
		return 0, err
	}

	z.digest = crc32.Update(z.digest, crc32.IEEETable, p)
	z.size += uint32(len(p))

	z.err = z.def.CompressWrite(p, false, func(chunk []byte) error {
		_, werr := z.w.Write(chunk)
		return werr
	})
	if z.err != nil {
		return 0, z.err
	}
	return len(p), nil
}

// Finalize drives the Deflator to DONE, writes the gzip trailer, and marks
// the stream finalized. Writes after Finalize fail with ErrFinalized.
func (z *GzipStreamWriter) Finalize() error {
	if z.err != nil {
		return z.err
	}
	if z.checkFinalized() {
		return nil
	}
	if err := z.writeHeaderIfNeeded(); err != nil {
		z.err = err
		return err
	}
	z.err = z.def.CompressWrite(nil, true, func(chunk []byte) error {
		_, werr := z.w.Write(chunk)
		return werr
	})
	if z.err != nil {
		return z.err
	}
	z.setFinalized()
	if err := writeTrailer(z.w, z.digest, z.size); err != nil {
		z.err = err
		return err
	}
	z.Logger.WithFields(logFields{"crc": z.digest, "size": z.size}).Debug("gzipstream: wrote trailer")
	return nil
}

// Flush has no distinct meaning for the native-engine-backed Deflator
// beyond what Write already does (there is no partial-flush primitive in
// the engine-FFI contract), so it is a no-op kept only for drop-in
// compatibility with callers expecting a Flush method.
func (z *GzipStreamWriter) Flush() error {
	if z.err != nil {
		return z.err
	}
	return nil
}

// Close finalizes the stream (if not already) and releases the Deflator's
// engine state. Idempotent.
func (z *GzipStreamWriter) Close() error {
	if z.checkClosed() {
		return nil
	}
	err := z.Finalize()
	z.def.Close()
	z.setClosed()
	return err
}

// WriteCompressed is the CompressedBlobWriter extension point: it accepts
// an already-DEFLATE-compressed blob (produced by a Deflator configured
// identically to this writer's) and appends it verbatim to the output
// stream, combining its known CRC-32 into the running digest via
// crc32Combine instead of recomputing it from plaintext. This lets callers
// assemble a gzip member out of independently compressed chunks.
func (z *GzipStreamWriter) WriteCompressed(compressed []byte, blobCRC uint32, blobLen int64) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	if z.checkClosed() {
		return 0, ErrClosed
	}
	if z.checkFinalized() {
		return 0, ErrFinalized
	}
	if err := z.writeHeaderIfNeeded(); err != nil {
		z.err = err
		return 0, err
	}
	n, err := z.w.Write(compressed)
	if err != nil {
		z.err = err
		return n, err
	}
	z.digest = crc32Combine(z.digest, blobCRC, blobLen)
	z.size += uint32(blobLen)
	return n, nil
}
