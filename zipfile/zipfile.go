// Package zipfile implements a read-only ZIP archive reader: end-of-
// central-directory tail-scan, central-directory enumeration, and
// per-entry STORE/DEFLATE decoding with CRC-32 verification.
package zipfile

import (
	"io"
	"time"

	"github.com/pkg/errors"
)

const (
	sigEOCD         = 0x06054b50
	sigCentralDir   = 0x02014b50
	sigLocalHeader  = 0x04034b50
	sigDataDesc     = 0x08074b50
	eocdFixedLen    = 22
	centralFixedLen = 46
	localFixedLen   = 30

	// MethodStore and MethodDeflate are the only two compression methods
	// this reader understands.
	MethodStore   = 0
	MethodDeflate = 8

	flagDataDescriptor = 1 << 3
)

var (
	// ErrNotAZip is returned when no EOCD signature could be found within
	// the trailing 64KiB+22 bytes of the archive.
	ErrNotAZip = errors.New("zipfile: end of central directory not found")
	// ErrBadSignature is returned when a record's signature doesn't match
	// what was expected at that offset.
	ErrBadSignature = errors.New("zipfile: bad record signature")
	// ErrUnsupportedMethod is returned for any compression method besides
	// STORE and DEFLATE.
	ErrUnsupportedMethod = errors.New("zipfile: unsupported compression method")
	// ErrChecksum is returned when an entry's decompressed bytes don't
	// match its stored (or data-descriptor) CRC-32.
	ErrChecksum = errors.New("zipfile: entry checksum mismatch")
	// ErrMultiDisk is returned for archives spanning more than one disk,
	// which this reader does not support.
	ErrMultiDisk = errors.New("zipfile: multi-disk archives are not supported")
)

// EndOfCentralDirectory holds the fixed fields of the EOCD record.
type EndOfCentralDirectory struct {
	DiskNumber         uint16
	CentralDirDisk     uint16
	EntriesOnThisDisk  uint16
	TotalEntries       uint16
	CentralDirSize     uint32
	CentralDirOffset   uint32
	Comment            []byte
	eocdOffsetInFile   int64
}

// Entry is one central-directory file header, plus its variable-length
// name/extra/comment fields.
type Entry struct {
	VersionMadeBy     uint16
	VersionNeeded     uint16
	Flags             uint16
	Method            uint16
	ModTimeDOS        uint16
	ModDateDOS        uint16
	CRC32             uint32
	CompressedSize    uint32
	UncompressedSize  uint32
	DiskStart         uint16
	InternalAttrs     uint16
	ExternalAttrs     uint32
	LocalHeaderOffset uint32
	Name              string
	Extra             []byte
	Comment           string
}

// ModTime converts the entry's MS-DOS date/time fields to a time.Time.
func (e *Entry) ModTime() time.Time {
	return dosToTime(e.ModDateDOS, e.ModTimeDOS)
}

func dosToTime(dosDate, dosTime uint16) time.Time {
	sec := (dosTime & 0x1f) * 2
	min := (dosTime >> 5) & 0x3f
	hr := (dosTime >> 11) & 0x1f
	day := dosDate & 0x1f
	month := (dosDate >> 5) & 0xf
	year := (dosDate >> 9) & 0x7f
	return time.Date(int(year)+1980, time.Month(month), int(day), int(hr), int(min), int(sec), 0, time.UTC)
}

// File is an opened ZIP archive. It is read-only and single-owner: one
// File must not be used concurrently from multiple goroutines.
type File struct {
	r    io.ReaderAt
	size int64

	EOCD    EndOfCentralDirectory
	Entries []Entry
}

// Open reads the EOCD and the full central directory from r, which must
// report the archive's total size as size.
func Open(r io.ReaderAt, size int64) (*File, error) {
	f := &File{r: r, size: size}
	if err := f.readEOCD(); err != nil {
		return nil, err
	}
	if err := f.readCentralDirectory(); err != nil {
		return nil, err
	}
	return f, nil
}
