package gzipstream

import (
	"encoding/binary"
	"hash/crc32"
	"io"
	"time"

	"github.com/pkg/errors"

	ioutilx "github.com/philipaconrad/flatekit/internal/ioutil"
)

// writeGzipHeader emits the 10-byte fixed header followed by FEXTRA, FNAME,
// FCOMMENT, and FHCRC sections in that order, each conditional on the
// corresponding flag bit derived from which Header fields are populated.
// FHCRC is never set on write (matching every gzip writer in this
// codebase's lineage); it is only ever parsed on read.
func writeGzipHeader(w io.Writer, h Header) error {
	flags := byte(0)
	if len(h.Extra) > 0 {
		flags |= flagExtra
	}
	if h.Name != "" {
		flags |= flagName
	}
	if h.Comment != "" {
		flags |= flagComment
	}

	var hdr [10]byte
	hdr[0] = gzipID1
	hdr[1] = gzipID2
	hdr[2] = gzipDeflate
	hdr[3] = flags
	if !h.ModTime.IsZero() {
		binary.LittleEndian.PutUint32(hdr[4:8], uint32(h.ModTime.Unix()))
	}
	hdr[8] = 0 // xflags: left at 0, matching the teacher's lineage (no per-level hint bits)
	hdr[9] = h.OS
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "gzipstream: writing fixed header")
	}

	if flags&flagExtra != 0 {
		if len(h.Extra) > 0xffff {
			return ErrHdrExtraDataTooLarge
		}
		var lenBuf [2]byte
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(h.Extra)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return errors.Wrap(err, "gzipstream: writing FEXTRA length")
		}
		if _, err := w.Write(h.Extra); err != nil {
			return errors.Wrap(err, "gzipstream: writing FEXTRA payload")
		}
	}
	if flags&flagName != 0 {
		if err := ioutilx.WriteStrz(w, h.Name); err != nil {
			return translateStrzErr(err)
		}
	}
	if flags&flagComment != 0 {
		if err := ioutilx.WriteStrz(w, h.Comment); err != nil {
			return translateStrzErr(err)
		}
	}
	return nil
}

func translateStrzErr(err error) error {
	if errors.Is(err, ioutilx.ErrNonLatin1) {
		return ErrHdrNonLatin1
	}
	return errors.Wrap(err, "gzipstream: writing header string")
}

// readFullUpTo fills buf completely via ioutilx.ReadFullUpTo, the
// short-read accumulation loop shared with the zip reader. It preserves
// io.ReadFull's distinction between a clean boundary (nothing read at all,
// reported as io.EOF) and a read that started but didn't finish (reported
// as io.ErrUnexpectedEOF).
func readFullUpTo(r io.Reader, buf []byte) error {
	n, err := ioutilx.ReadFullUpTo(r, buf, 0, len(buf))
	if err != nil {
		return err
	}
	if n == 0 && len(buf) > 0 {
		return io.EOF
	}
	if n < len(buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// readGzipHeader reads the fixed 10-byte header and, driven by its flag
// byte, the optional FEXTRA/FNAME/FCOMMENT/FHCRC sections in that order,
// verifying the header CRC when FHCRC is present.
func readGzipHeader(r io.Reader) (Header, error) {
	var hdr [10]byte
	if err := readFullUpTo(r, hdr[:]); err != nil {
		return Header{}, err
	}
	if hdr[0] != gzipID1 || hdr[1] != gzipID2 || hdr[2] != gzipDeflate {
		return Header{}, ErrHeader
	}
	flags := hdr[3]
	h := Header{
		ModTime: time.Unix(int64(binary.LittleEndian.Uint32(hdr[4:8])), 0),
		OS:      hdr[9],
	}

	digest := crc32.NewIEEE()
	digest.Write(hdr[:])

	if flags&flagExtra != 0 {
		var lenBuf [2]byte
		if err := readFullUpTo(r, lenBuf[:]); err != nil {
			return h, errors.Wrap(err, "gzipstream: reading FEXTRA length")
		}
		digest.Write(lenBuf[:])
		n := binary.LittleEndian.Uint16(lenBuf[:])
		data := make([]byte, n)
		if err := readFullUpTo(r, data); err != nil {
			return h, errors.Wrap(err, "gzipstream: reading FEXTRA payload")
		}
		digest.Write(data)
		h.Extra = data
	}
	if flags&flagName != 0 {
		name, err := ioutilx.ReadStrz(r)
		if err != nil {
			return h, errors.Wrap(err, "gzipstream: reading FNAME")
		}
		digest.Write(name)
		digest.Write([]byte{0})
		h.Name = string(name)
	}
	if flags&flagComment != 0 {
		comment, err := ioutilx.ReadStrz(r)
		if err != nil {
			return h, errors.Wrap(err, "gzipstream: reading FCOMMENT")
		}
		digest.Write(comment)
		digest.Write([]byte{0})
		h.Comment = string(comment)
	}
	if flags&flagHdrCrc != 0 {
		var crcBuf [2]byte
		if err := readFullUpTo(r, crcBuf[:]); err != nil {
			return h, errors.Wrap(err, "gzipstream: reading FHCRC")
		}
		want := binary.LittleEndian.Uint16(crcBuf[:])
		got := uint16(digest.Sum32() & 0xffff)
		if want != got {
			log.WithFields(logFields{"want": want, "got": got}).Warn("gzipstream: header CRC mismatch")
			return h, ErrHeader
		}
	}

	log.WithFields(logFields{"name": h.Name, "extraLen": len(h.Extra)}).Debug("gzipstream: parsed gzip header")
	return h, nil
}

// writeTrailer emits the 8-byte little-endian CRC-32+ISIZE trailer.
func writeTrailer(w io.Writer, crc, size uint32) error {
	var tb [8]byte
	binary.LittleEndian.PutUint32(tb[0:4], crc)
	binary.LittleEndian.PutUint32(tb[4:8], size)
	_, err := w.Write(tb[:])
	return errors.Wrap(err, "gzipstream: writing trailer")
}

// parseTrailer decodes the 8-byte little-endian CRC-32+ISIZE trailer.
func parseTrailer(b []byte) (crc, size uint32, err error) {
	if len(b) < 8 {
		return 0, 0, ErrTruncated
	}
	crc = binary.LittleEndian.Uint32(b[0:4])
	size = binary.LittleEndian.Uint32(b[4:8])
	return crc, size, nil
}

// logFields is a tiny alias to keep call sites in this file uncluttered.
type logFields = map[string]interface{}
