// Package gzipstream implements the gzip (RFC 1952) framer: header/trailer
// parsing and emission, a running CRC-32 over plaintext, and pipe,
// reader-adapter, and writer-adapter shapes built on top of the deflate
// package's Deflator/Inflator.
package gzipstream

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/philipaconrad/flatekit/deflate"
)

const (
	gzipID1     = 0x1f
	gzipID2     = 0x8b
	gzipDeflate = 8

	flagText    = 1 << 0
	flagHdrCrc  = 1 << 1
	flagExtra   = 1 << 2
	flagName    = 1 << 3
	flagComment = 1 << 4
)

// Re-exported compression level constants, matching compress/flate's and
// the teacher package's naming so callers moving from either one keep the
// same vocabulary.
const (
	NoCompression      = 0
	BestSpeed          = 1
	BestCompression    = 9
	DefaultCompression = -1
)

var (
	// ErrHeader is returned when reading gzip data with a bad signature or
	// an unsupported compression method.
	ErrHeader = errors.New("gzipstream: invalid gzip header")
	// ErrChecksum is returned when the trailer's CRC-32 or ISIZE does not
	// match the decompressed data.
	ErrChecksum = errors.New("gzipstream: checksum/size mismatch in trailer")
	// ErrHdrNonLatin1 is returned when a header Name/Comment contains a
	// byte outside Latin-1's representable range.
	ErrHdrNonLatin1 = errors.New("gzipstream: header string is not representable in Latin-1")
	// ErrHdrExtraDataTooLarge is returned when Header.Extra exceeds the
	// 16-bit length field's range.
	ErrHdrExtraDataTooLarge = errors.New("gzipstream: header Extra field exceeds 65535 bytes")
	// ErrInvalidCompressionLevel is returned for levels outside [0,9],
	// other than the DefaultCompression sentinel.
	ErrInvalidCompressionLevel = errors.New("gzipstream: invalid compression level")
	// ErrClosed is returned by operations attempted on a closed writer/reader.
	ErrClosed = errors.New("gzipstream: use after Close")
	// ErrFinalized is returned by Write calls attempted after finalize.
	ErrFinalized = errors.New("gzipstream: write after finalize")
	// ErrTruncated is returned when fewer than 8 trailer bytes are available.
	ErrTruncated = errors.New("gzipstream: truncated gzip trailer")
)

// Header mirrors compress/gzip.Header: the metadata fields of a gzip
// member exposed on both the Writer and Reader.
type Header struct {
	Comment string
	Extra   []byte
	ModTime time.Time
	Name    string
	OS      byte
}

func resolveLevel(level int) (int, error) {
	if level == DefaultCompression {
		return deflate.DefaultLevel, nil
	}
	if level < 0 || level > 9 {
		return 0, ErrInvalidCompressionLevel
	}
	return level, nil
}

// log is the package-level default logger, overridable per Writer/Reader
// via their Logger field; it is never forced on callers who construct
// their own logrus.Logger and disable output.
var log = logrus.StandardLogger()
