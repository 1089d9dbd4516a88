package deflate

import (
	"hash"
	"hash/adler32"

	"github.com/philipaconrad/flatekit/internal/engine"
)

// RestFunc receives the unconsumed tail of the input staging buffer once
// decompress_pipe reaches DONE — this is how the gzip framer recovers its
// 8-byte trailer without a second read pass.
type RestFunc func(p []byte) error

// Inflator drives decompression through the native engine, maintaining a
// power-of-two output ring (>= 32 KiB) so the engine's LZ77 dictionary
// region stays valid across refill cycles.
type Inflator struct {
	decomp *engine.Decompressor

	inBuf        []byte
	inOff, inEnd int
	sawReaderEOF bool

	ring               []byte
	outBegin, outEnd   int

	done   bool
	closed bool

	readTotal, writeTotal uint64

	addAdler32  bool
	adlerDigest hash.Hash32
}

// NewInflator constructs an Inflator with an input staging buffer of
// 1024*2^F bytes and an output ring sized to the next power of two at
// least as large as that buffer and at least 32 KiB.
func NewInflator(sizeFactor int) *Inflator {
	return &Inflator{
		decomp: engine.NewDecompressor(),
		inBuf:  make([]byte, sizeFactorToBufLen(sizeFactor)),
		ring:   make([]byte, ringSizeFor(sizeFactor)),
	}
}

// Init (re)initializes the engine for a new stream.
func (inf *Inflator) Init(addZlibHeader, addAdler32 bool) error {
	if inf.closed {
		return ErrClosed
	}
	inf.decomp.Init(addZlibHeader)
	inf.inOff, inf.inEnd = 0, 0
	inf.outBegin, inf.outEnd = 0, 0
	inf.done = false
	inf.sawReaderEOF = false
	inf.addAdler32 = addAdler32 && !addZlibHeader
	if inf.addAdler32 {
		inf.adlerDigest = adler32.New()
	} else {
		inf.adlerDigest = nil
	}
	return nil
}

// Close frees the underlying engine state. Idempotent.
func (inf *Inflator) Close() error {
	if inf.closed {
		return nil
	}
	inf.decomp.Cleanup()
	inf.closed = true
	return nil
}

func (inf *Inflator) refillInput(readCB ReadFunc) error {
	if inf.inOff < inf.inEnd || inf.sawReaderEOF {
		return nil
	}
	n, err := readCB(inf.inBuf)
	if err != nil {
		return err
	}
	if n == 0 {
		inf.sawReaderEOF = true
	}
	inf.inOff, inf.inEnd = 0, n
	return nil
}

// DecompressPipe is the internal drive loop. The ring is flushed to
// writeCB only when it fills completely or DONE is reached. On DONE, the
// unconsumed tail of the input staging buffer is handed to restCB.
func (inf *Inflator) DecompressPipe(readCB ReadFunc, writeCB func([]byte) error, restCB RestFunc) error {
	if inf.closed {
		return ErrClosed
	}
	for {
		if err := inf.refillInput(readCB); err != nil {
			return err
		}

		flags := engine.RingOutput
		if !inf.sawReaderEOF {
			flags |= engine.MoreInputComing
		}
		consumed, produced, status := inf.decomp.Step(inf.inBuf[inf.inOff:inf.inEnd], inf.ring[inf.outEnd:], flags)
		inf.inOff += consumed
		inf.readTotal += uint64(consumed)
		inf.outEnd += produced
		inf.writeTotal += uint64(produced)
		if inf.addAdler32 && produced > 0 {
			inf.adlerDigest.Write(inf.ring[inf.outEnd-produced : inf.outEnd])
		}

		switch status {
		case engine.DecompressNeedsMoreInput:
			if inf.outEnd == len(inf.ring) {
				if err := writeCB(inf.ring[inf.outBegin:inf.outEnd]); err != nil {
					return err
				}
				inf.outBegin, inf.outEnd = 0, 0
			} else if inf.inOff >= inf.inEnd && inf.sawReaderEOF {
				return ErrTruncated
			}
		case engine.DecompressHasMoreOutput:
			if err := writeCB(inf.ring[inf.outBegin:inf.outEnd]); err != nil {
				return err
			}
			inf.outBegin, inf.outEnd = 0, 0
		case engine.DecompressDone:
			if inf.outEnd > inf.outBegin {
				if err := writeCB(inf.ring[inf.outBegin:inf.outEnd]); err != nil {
					return err
				}
			}
			inf.outBegin, inf.outEnd = 0, 0
			inf.done = true
			return restCB(inf.inBuf[inf.inOff:inf.inEnd])
		default:
			if err := mapDecompressStatus(status); err != nil {
				return err
			}
		}
	}
}

// DecompressRead drains buffered decompressed bytes into output, refilling
// the ring from the engine (via possibly several readCB calls) only when
// the ring is empty. Returns 0 exactly once after DONE; subsequent calls
// continue to return 0.
func (inf *Inflator) DecompressRead(readCB ReadFunc, output []byte) (int, error) {
	if inf.closed {
		return 0, ErrClosed
	}
	if inf.outBegin < inf.outEnd {
		n := copy(output, inf.ring[inf.outBegin:inf.outEnd])
		inf.outBegin += n
		return n, nil
	}
	if inf.done {
		return 0, nil
	}

	inf.outBegin, inf.outEnd = 0, 0
	for inf.outEnd == 0 && !inf.done {
		if err := inf.refillInput(readCB); err != nil {
			return 0, err
		}

		flags := engine.RingOutput
		if !inf.sawReaderEOF {
			flags |= engine.MoreInputComing
		}
		consumed, produced, status := inf.decomp.Step(inf.inBuf[inf.inOff:inf.inEnd], inf.ring[inf.outEnd:], flags)
		inf.inOff += consumed
		inf.readTotal += uint64(consumed)
		inf.outEnd += produced
		inf.writeTotal += uint64(produced)
		if inf.addAdler32 && produced > 0 {
			inf.adlerDigest.Write(inf.ring[inf.outEnd-produced : inf.outEnd])
		}

		if status == engine.DecompressDone {
			inf.done = true
			break
		}
		if err := mapDecompressStatus(status); err != nil {
			return 0, err
		}
		if consumed == 0 && produced == 0 && inf.sawReaderEOF && inf.inOff >= inf.inEnd {
			return 0, ErrTruncated
		}
	}

	n := copy(output, inf.ring[inf.outBegin:inf.outEnd])
	inf.outBegin += n
	return n, nil
}

// RestLen reports the number of unconsumed bytes left in the input staging
// buffer (meaningful after DONE, e.g. to recover a gzip trailer).
func (inf *Inflator) RestLen() int { return inf.inEnd - inf.inOff }

// Rest returns the unconsumed tail of the input staging buffer.
func (inf *Inflator) Rest() []byte { return inf.inBuf[inf.inOff:inf.inEnd] }

// Done reports whether the engine has signalled completion.
func (inf *Inflator) Done() bool { return inf.done }

func (inf *Inflator) ReadTotal() uint64  { return inf.readTotal }
func (inf *Inflator) WriteTotal() uint64 { return inf.writeTotal }
