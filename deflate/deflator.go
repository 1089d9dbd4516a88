package deflate

import (
	"encoding/binary"
	"hash"
	"hash/adler32"
	"io"

	"github.com/philipaconrad/flatekit/internal/engine"
)

// Deflator drives compression through the native engine. It owns a staging
// input buffer of 1024*2^F bytes and a staging output buffer of the same
// size plus 32 KiB of slack, per this codebase's size-factor convention.
type Deflator struct {
	comp *engine.Compressor

	inBuf  []byte
	outBuf []byte

	inOff, inEnd int
	outOff       int

	readTotal, writeTotal uint64

	finalized bool
	closed    bool

	addAdler32   bool
	adlerDigest  hash.Hash32
	adlerWritten bool
}

// NewDeflator constructs a Deflator with buffers sized by F (with_size_factor).
func NewDeflator(sizeFactor int) *Deflator {
	bufLen := sizeFactorToBufLen(sizeFactor)
	return &Deflator{
		comp:   engine.NewCompressor(),
		inBuf:  make([]byte, bufLen),
		outBuf: make([]byte, bufLen+32*1024),
	}
}

// Init (re)initializes the engine for a new stream. It resets cursors but
// not the cumulative read/write totals. addAdler32 is honored independently
// of addZlibHeader: zlib's own RFC1950 wrapper already appends an Adler-32,
// so addAdler32 only takes effect when addZlibHeader is false (raw DEFLATE
// plus a manually appended Adler-32 trailer, matching the native engine's
// documented add_adler32 flag).
func (d *Deflator) Init(level int, addZlibHeader, addAdler32 bool) error {
	if d.closed {
		return ErrClosed
	}
	status := d.comp.Init(level, addZlibHeader)
	d.inOff, d.inEnd, d.outOff = 0, 0, 0
	d.finalized = false
	d.addAdler32 = addAdler32 && !addZlibHeader
	if d.addAdler32 {
		d.adlerDigest = adler32.New()
	} else {
		d.adlerDigest = nil
	}
	d.adlerWritten = false
	if status != engine.CompressOkay {
		return ErrBadParam
	}
	return nil
}

// appendAdlerTrailer appends the accumulated Adler-32 checksum (big-endian,
// matching RFC1950's own trailer convention) to outBuf once, when DONE is
// reached and add_adler32 was requested without the zlib wrapper.
func (d *Deflator) appendAdlerTrailer() {
	if !d.addAdler32 || d.adlerWritten {
		return
	}
	var tail [4]byte
	binary.BigEndian.PutUint32(tail[:], d.adlerDigest.Sum32())
	d.outOff += copy(d.outBuf[d.outOff:], tail[:])
	d.adlerWritten = true
}

// Close frees the underlying engine state. Idempotent.
func (d *Deflator) Close() error {
	if d.closed {
		return nil
	}
	d.comp.Cleanup()
	d.closed = true
	return nil
}

// CompressPipe drives the compression loop entirely inside: refill input
// via readCB (0 means EOF), step the engine, and invoke writeCB whenever
// the output buffer fills or the engine signals DONE. writeCB's cancel
// return propagates as ErrAborted.
func (d *Deflator) CompressPipe(readCB ReadFunc, writeCB WriteFunc) error {
	if d.closed {
		return ErrClosed
	}
	eof := false
	for {
		if d.inOff >= d.inEnd && !eof {
			n, err := readCB(d.inBuf)
			if err != nil {
				return err
			}
			if n == 0 {
				eof = true
			} else {
				d.inOff, d.inEnd = 0, n
			}
		}

		chunkStart := d.inOff
		consumed, produced, status := d.comp.Step(d.inBuf[d.inOff:d.inEnd], d.outBuf[d.outOff:], eof)
		if d.addAdler32 && consumed > 0 {
			d.adlerDigest.Write(d.inBuf[chunkStart : chunkStart+consumed])
		}
		d.inOff += consumed
		d.readTotal += uint64(consumed)
		d.outOff += produced
		d.writeTotal += uint64(produced)

		full := d.outOff == len(d.outBuf)
		done := status == engine.CompressDone
		if done {
			d.appendAdlerTrailer()
		}
		if full || done {
			cancel, err := writeCB(d.outBuf[:d.outOff], done)
			d.outOff = 0
			if err != nil {
				return err
			}
			if cancel {
				return ErrAborted
			}
		}

		switch status {
		case engine.CompressDone:
			d.finalized = true
			return nil
		case engine.CompressBadParam:
			return ErrBadParam
		case engine.CompressPutBufFailed:
			return ErrPutBufFailed
		}
	}
}

// CompressPipeRW is compress_pipe_rw: a trivial adapter over CompressPipe
// for io.Reader/io.Writer.
func (d *Deflator) CompressPipeRW(r io.Reader, w io.Writer) error {
	return d.CompressPipe(wrapReader(r), func(p []byte, _ bool) (bool, error) {
		_, err := w.Write(p)
		return false, err
	})
}

// CompressWrite lets the caller drive the loop by handing in one input
// block at a time. When final is true it loops internally until the
// engine returns DONE and all pending output is flushed; when false it
// returns once all of input has been consumed, preserving any partial
// input left in the staging buffer for the next call.
func (d *Deflator) CompressWrite(input []byte, final bool, writeCB func([]byte) error) error {
	if d.closed {
		return ErrClosed
	}
	if d.finalized {
		return ErrFinalized
	}
	offset := 0
	for {
		if d.inOff >= d.inEnd && offset < len(input) {
			n := copy(d.inBuf, input[offset:])
			offset += n
			d.inOff, d.inEnd = 0, n
		}
		haveStaged := d.inOff < d.inEnd
		moreCallerInput := offset < len(input)
		finish := final && !moreCallerInput

		if !haveStaged && !finish {
			return nil
		}

		chunkStart := d.inOff
		consumed, produced, status := d.comp.Step(d.inBuf[d.inOff:d.inEnd], d.outBuf[d.outOff:], finish)
		if d.addAdler32 && consumed > 0 {
			d.adlerDigest.Write(d.inBuf[chunkStart : chunkStart+consumed])
		}
		d.inOff += consumed
		d.readTotal += uint64(consumed)
		d.outOff += produced
		d.writeTotal += uint64(produced)

		full := d.outOff == len(d.outBuf)
		done := status == engine.CompressDone
		if done {
			d.appendAdlerTrailer()
		}
		if full || done {
			if err := writeCB(d.outBuf[:d.outOff]); err != nil {
				return err
			}
			d.outOff = 0
		}

		switch status {
		case engine.CompressDone:
			d.finalized = true
			return nil
		case engine.CompressBadParam:
			return ErrBadParam
		case engine.CompressPutBufFailed:
			return ErrPutBufFailed
		}

		if !finish && d.inOff >= d.inEnd && !moreCallerInput {
			return nil
		}
	}
}

// CompressBuf runs a single engine call, reporting consumed/produced byte
// counts directly.
func (d *Deflator) CompressBuf(in, out []byte, finalInput bool) (consumed, produced int, status engine.CompressStatus) {
	return d.comp.Step(in, out, finalInput)
}

// ReadTotal and WriteTotal report cumulative bytes consumed/produced across
// the Deflator's lifetime (since the last Init did not reset them).
func (d *Deflator) ReadTotal() uint64  { return d.readTotal }
func (d *Deflator) WriteTotal() uint64 { return d.writeTotal }
