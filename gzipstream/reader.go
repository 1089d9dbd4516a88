package gzipstream

import (
	"hash/crc32"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/philipaconrad/flatekit/deflate"
)

const (
	readerHeaderRead uint32 = 1 << iota
	readerEOF
	readerVerified
)

// GzipStreamReader is the GZipReader adapter: its Read pulls from an
// underlying Inflator in caller-sized chunks. When the engine signals
// DONE, it recovers the trailer from the Inflator's residual input window
// (topping up from the underlying reader if fewer than 8 bytes were
// delivered), verifies the CRC, and returns io.EOF on all subsequent reads.
type GzipStreamReader struct {
	Header

	r          io.Reader
	inf        *deflate.Inflator
	sizeFactor int
	digest     uint32
	size       uint32
	err        error
	stateFlags uint32

	Logger *logrus.Logger
}

func (z *GzipStreamReader) checkHeaderRead() bool { return z.stateFlags&readerHeaderRead != 0 }
func (z *GzipStreamReader) setHeaderRead()        { z.stateFlags |= readerHeaderRead }
func (z *GzipStreamReader) checkEOF() bool        { return z.stateFlags&readerEOF != 0 }
func (z *GzipStreamReader) setEOF()               { z.stateFlags |= readerEOF }
func (z *GzipStreamReader) checkVerified() bool   { return z.stateFlags&readerVerified != 0 }
func (z *GzipStreamReader) setVerified()          { z.stateFlags |= readerVerified }

// NewGzipStreamReader returns a reader using the deflate package's
// DefaultSizeFactor. The header is not read until the first Read call.
func NewGzipStreamReader(r io.Reader) *GzipStreamReader {
	return NewGzipStreamReaderFactor(r, deflate.DefaultSizeFactor)
}

// NewGzipStreamReaderFactor additionally specifies the Inflator's buffer
// size factor F.
func NewGzipStreamReaderFactor(r io.Reader, sizeFactor int) *GzipStreamReader {
	return &GzipStreamReader{
		r:          r,
		inf:        deflate.NewInflator(sizeFactor),
		sizeFactor: sizeFactor,
		Logger:     log,
	}
}

func (z *GzipStreamReader) ensureHeader() error {
	if z.checkHeaderRead() {
		return nil
	}
	h, err := readGzipHeader(z.r)
	if err != nil {
		return err
	}
	z.Header = h
	z.inf.Init(false, false)
	z.setHeaderRead()
	return nil
}

func readerReadFunc(r io.Reader) deflate.ReadFunc {
	return func(p []byte) (int, error) {
		n, err := r.Read(p)
		if err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
		return n, nil
	}
}

// Read decompresses into p, accumulating the running CRC-32 and size.
// Once the engine signals completion it verifies the trailer and returns
// io.EOF; it continues to return (0, io.EOF) afterward.
func (z *GzipStreamReader) Read(p []byte) (int, error) {
	if z.err != nil {
		return 0, z.err
	}
	if z.checkEOF() {
		return 0, io.EOF
	}
	if err := z.ensureHeader(); err != nil {
		z.err = err
		return 0, err
	}

	n, err := z.inf.DecompressRead(readerReadFunc(z.r), p)
	if err != nil {
		z.err = err
		return 0, err
	}
	if n > 0 {
		z.digest = crc32.Update(z.digest, crc32.IEEETable, p[:n])
		z.size += uint32(n)
		return n, nil
	}

	// n == 0: the engine has reached DONE. Recover and verify the trailer.
	rest := append([]byte(nil), z.inf.Rest()...)
	var buf [64]byte
	for len(rest) < 8 {
		m, rerr := z.r.Read(buf[:])
		if m > 0 {
			rest = append(rest, buf[:m]...)
		}
		if rerr != nil {
			break
		}
	}
	if len(rest) < 8 {
		z.err = ErrTruncated
		return 0, z.err
	}
	crc, size, perr := parseTrailer(rest[:8])
	if perr != nil {
		z.err = perr
		return 0, z.err
	}
	if crc != z.digest || size != z.size {
		z.Logger.WithFields(logFields{"wantCRC": crc, "gotCRC": z.digest, "wantSize": size, "gotSize": z.size}).
			Warn("gzipstream: trailer verification failed")
		z.err = ErrChecksum
		return 0, z.err
	}
	z.setVerified()
	z.setEOF()
	return 0, io.EOF
}

// Close releases the Inflator's engine state. Idempotent.
func (z *GzipStreamReader) Close() error {
	return z.inf.Close()
}
