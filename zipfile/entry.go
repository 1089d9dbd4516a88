package zipfile

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"

	"github.com/philipaconrad/flatekit/deflate"
)

// localHeader holds just the fields of the local file header this reader
// needs; most of it duplicates the central directory entry, but the
// name/extra lengths here are what actually determine where the
// compressed bytes begin.
type localHeader struct {
	nameLen  int
	extraLen int
}

func readLocalHeader(r io.ReaderAt, offset int64) (localHeader, error) {
	var buf [localFixedLen]byte
	if _, err := r.ReadAt(buf[:], offset); err != nil {
		return localHeader{}, errors.Wrap(err, "zipfile: reading local file header")
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != sigLocalHeader {
		return localHeader{}, ErrBadSignature
	}
	return localHeader{
		nameLen:  int(binary.LittleEndian.Uint16(buf[26:28])),
		extraLen: int(binary.LittleEndian.Uint16(buf[28:30])),
	}, nil
}

// dataDescriptor is the optional record following compressed bytes when
// the general-purpose flag's bit 3 ("streaming") is set.
type dataDescriptor struct {
	crc32            uint32
	compressedSize   uint32
	uncompressedSize uint32
}

// readDataDescriptor reads the 12- or 16-byte descriptor at offset,
// tolerating the optional leading 0x08074b50 signature.
func readDataDescriptor(r io.ReaderAt, offset int64) (dataDescriptor, error) {
	var buf [16]byte
	n, err := r.ReadAt(buf[:], offset)
	if err != nil && err != io.EOF {
		return dataDescriptor{}, errors.Wrap(err, "zipfile: reading data descriptor")
	}
	b := buf[:n]
	if len(b) >= 4 && binary.LittleEndian.Uint32(b[0:4]) == sigDataDesc {
		b = b[4:]
	}
	if len(b) < 12 {
		return dataDescriptor{}, errors.New("zipfile: truncated data descriptor")
	}
	return dataDescriptor{
		crc32:            binary.LittleEndian.Uint32(b[0:4]),
		compressedSize:   binary.LittleEndian.Uint32(b[4:8]),
		uncompressedSize: binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// EntryReader decodes and verifies one archive entry's plaintext.
type EntryReader struct {
	r       io.Reader
	method  uint16
	inf     *deflate.Inflator
	digest  uint32
	done    bool
	err     error
	wantCRC uint32
	name    string
}

// Open locates e's local header, clips its compressed-byte window from
// the central directory's recorded CompressedSize, and returns a reader
// that decodes it on demand. sizeFactor selects the Inflator's buffer
// size factor when the entry is DEFLATE-compressed; it is ignored for
// STORE entries.
func (f *File) Open(e *Entry, sizeFactor int) (*EntryReader, error) {
	if e.Method != MethodStore && e.Method != MethodDeflate {
		return nil, ErrUnsupportedMethod
	}

	lh, err := readLocalHeader(f.r, int64(e.LocalHeaderOffset))
	if err != nil {
		return nil, err
	}
	dataStart := int64(e.LocalHeaderOffset) + localFixedLen + int64(lh.nameLen) + int64(lh.extraLen)
	section := io.NewSectionReader(f.r, dataStart, int64(e.CompressedSize))

	er := &EntryReader{r: section, method: e.Method, name: e.Name, wantCRC: e.CRC32}

	if e.Flags&flagDataDescriptor != 0 {
		descOffset := dataStart + int64(e.CompressedSize)
		desc, err := readDataDescriptor(f.r, descOffset)
		if err != nil {
			return nil, errors.Wrapf(err, "zipfile: entry %q data descriptor", e.Name)
		}
		er.wantCRC = desc.crc32
	}

	if e.Method == MethodDeflate {
		er.inf = deflate.NewInflator(sizeFactor)
		if err := er.inf.Init(false, false); err != nil {
			return nil, err
		}
	}
	return er, nil
}

func (er *EntryReader) readFunc() deflate.ReadFunc {
	return func(p []byte) (int, error) {
		n, err := er.r.Read(p)
		if err != nil {
			if err == io.EOF {
				return n, nil
			}
			return n, err
		}
		return n, nil
	}
}

// Read decodes into p, accumulating the entry's running CRC-32. Once the
// entry is exhausted it verifies the CRC and returns io.EOF; mismatches
// surface as ErrChecksum.
func (er *EntryReader) Read(p []byte) (int, error) {
	if er.err != nil {
		return 0, er.err
	}
	if er.done {
		return 0, io.EOF
	}

	var n int
	var err error
	switch er.method {
	case MethodStore:
		n, err = er.r.Read(p)
		if err == io.EOF {
			er.done = true
			if er.digest != er.wantCRC {
				er.err = ErrChecksum
				return 0, er.err
			}
			return 0, io.EOF
		}
		if err != nil {
			er.err = err
			return 0, err
		}
	case MethodDeflate:
		n, err = er.inf.DecompressRead(er.readFunc(), p)
		if err != nil {
			er.err = err
			return 0, err
		}
		if n == 0 {
			er.done = true
			if er.digest != er.wantCRC {
				er.err = ErrChecksum
				return 0, er.err
			}
			return 0, io.EOF
		}
	}
	er.digest = crc32.Update(er.digest, crc32.IEEETable, p[:n])
	return n, nil
}

// Close releases the entry reader's engine state, if it allocated one.
func (er *EntryReader) Close() error {
	if er.inf != nil {
		return er.inf.Close()
	}
	return nil
}
