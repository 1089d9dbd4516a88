// Package ioutil provides the short-read-tolerant buffer filling and
// zero-terminated string helpers shared by the gzip framer and zip reader.
//
// Fixed-width integer packing itself is left to encoding/binary; this
// package only supplies the accumulation loop and string framing that
// encoding/binary does not.
package ioutil

import (
	"io"

	"github.com/pkg/errors"
)

// ErrNonLatin1 is returned by WriteStrz when asked to encode a rune outside
// the Latin-1 range, matching gzip's requirement that header strings be
// ISO-8859-1.
var ErrNonLatin1 = errors.New("ioutil: non-Latin-1 byte in header string")

// ReadFullUpTo reads into buf[off:off+n] until it has accumulated n bytes
// or the reader returns a zero-length read with no error (which it
// otherwise would not under io.Reader's contract, but some callback-backed
// readers in this codebase use exactly that to signal EOF). It reports the
// number of bytes actually placed into buf and the first error seen, with
// io.EOF only returned once no bytes were read at all.
func ReadFullUpTo(r io.Reader, buf []byte, off, n int) (int, error) {
	total := 0
	for total < n {
		readLen, err := r.Read(buf[off+total : off+n])
		total += readLen
		if err != nil {
			if err == io.EOF && total > 0 {
				return total, nil
			}
			return total, err
		}
		if readLen == 0 {
			break
		}
	}
	return total, nil
}

// ReadStrz reads a zero-terminated byte string from r, not including the
// terminating NUL. It reports ErrNonLatin1-free content verbatim; callers
// that need Latin-1-to-UTF8 conversion handle that themselves (gzip header
// fields are read back as raw bytes here, since most names in practice are
// plain ASCII).
func ReadStrz(r io.Reader) ([]byte, error) {
	var out []byte
	var b [1]byte
	for {
		n, err := r.Read(b[:])
		if n == 1 {
			if b[0] == 0 {
				return out, nil
			}
			out = append(out, b[0])
			continue
		}
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, io.ErrUnexpectedEOF
		}
	}
}

// WriteStrz writes s to w as a NUL-terminated Latin-1 string, converting
// bytes above 0x7f only when necessary and failing on runes that cannot be
// represented in a single Latin-1 byte at all.
func WriteStrz(w io.Writer, s string) error {
	buf := make([]byte, 0, len(s)+1)
	for _, r := range s {
		if r < 0 || r > 0xff {
			return ErrNonLatin1
		}
		buf = append(buf, byte(r))
	}
	buf = append(buf, 0)
	_, err := w.Write(buf)
	return err
}
