package gzipstream

import (
	"hash/crc32"
	"io"

	"github.com/philipaconrad/flatekit/deflate"
)

// CompressPipe reads all of r, gzip-frames it at the given level and size
// factor F, and writes the complete member (header, compressed body,
// trailer) to w. It assumes a single gzip member and no Header metadata
// beyond the default OS byte.
func CompressPipe(r io.Reader, w io.Writer, level, sizeFactor int) error {
	resolved, err := resolveLevel(level)
	if err != nil {
		return err
	}

	def := deflate.NewDeflator(sizeFactor)
	defer def.Close()
	if err := def.Init(resolved, false, false); err != nil {
		return err
	}

	if err := writeGzipHeader(w, Header{OS: 255}); err != nil {
		return err
	}

	var digest uint32
	var size uint32
	readCB := func(buf []byte) (int, error) {
		n, err := r.Read(buf)
		if n > 0 {
			digest = crc32.Update(digest, crc32.IEEETable, buf[:n])
			size += uint32(n)
		}
		if err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
		return n, nil
	}
	writeCB := func(p []byte, isFinal bool) (bool, error) {
		_, werr := w.Write(p)
		return false, werr
	}
	if err := def.CompressPipe(readCB, writeCB); err != nil {
		return err
	}
	return writeTrailer(w, digest, size)
}

// DecompressPipe reads a single gzip member from r, decompressing it
// entirely to w, and returns its Header plus any trailing bytes read past
// the member's 8-byte trailer (e.g. the start of a subsequent member).
func DecompressPipe(r io.Reader, w io.Writer, sizeFactor int) (Header, []byte, error) {
	h, err := readGzipHeader(r)
	if err != nil {
		return Header{}, nil, err
	}

	inf := deflate.NewInflator(sizeFactor)
	defer inf.Close()
	if err := inf.Init(false, false); err != nil {
		return h, nil, err
	}

	var digest uint32
	var size uint32
	readCB := func(buf []byte) (int, error) {
		n, err := r.Read(buf)
		if err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
		return n, nil
	}
	writeCB := func(p []byte) error {
		digest = crc32.Update(digest, crc32.IEEETable, p)
		size += uint32(len(p))
		_, werr := w.Write(p)
		return werr
	}
	var rest []byte
	restCB := func(p []byte) error {
		rest = append([]byte(nil), p...)
		return nil
	}
	if err := inf.DecompressPipe(readCB, writeCB, restCB); err != nil {
		return h, nil, err
	}

	var buf [64]byte
	for len(rest) < 8 {
		m, rerr := r.Read(buf[:])
		if m > 0 {
			rest = append(rest, buf[:m]...)
		}
		if rerr != nil {
			break
		}
	}
	if len(rest) < 8 {
		return h, nil, ErrTruncated
	}
	crc, isize, perr := parseTrailer(rest[:8])
	if perr != nil {
		return h, nil, perr
	}
	if crc != digest || isize != size {
		return h, nil, ErrChecksum
	}
	return h, rest[8:], nil
}

// ReadInfo inspects a gzip stream cheaply: it parses the header, seeks to
// the last 8 bytes of the underlying stream, and reads the trailer
// directly without decompressing the body. It assumes a single gzip
// member.
func ReadInfo(f io.ReadSeeker) (Header, uint32, uint32, error) {
	h, err := readGzipHeader(f)
	if err != nil {
		return Header{}, 0, 0, err
	}
	if _, err := f.Seek(-8, io.SeekEnd); err != nil {
		return h, 0, 0, err
	}
	var tb [8]byte
	if _, err := io.ReadFull(f, tb[:]); err != nil {
		return h, 0, 0, err
	}
	crc, size, err := parseTrailer(tb[:])
	return h, crc, size, err
}
