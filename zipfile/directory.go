package zipfile

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	ioutilx "github.com/philipaconrad/flatekit/internal/ioutil"
)

const maxCommentLen = 0xffff

// readEOCD scans the trailing min(size, 22+0xFFFF) bytes of the archive
// forward for the first occurrence of the EOCD signature, and parses the
// fixed 22-byte record plus any trailing comment.
func (f *File) readEOCD() error {
	if f.size < eocdFixedLen {
		return ErrNotAZip
	}
	tailLen := int64(eocdFixedLen + maxCommentLen)
	if tailLen > f.size {
		tailLen = f.size
	}
	tailStart := f.size - tailLen
	tail := make([]byte, tailLen)
	if _, err := f.r.ReadAt(tail, tailStart); err != nil && err != io.EOF {
		return errors.Wrap(err, "zipfile: reading EOCD tail")
	}

	var sig [4]byte
	binary.LittleEndian.PutUint32(sig[:], sigEOCD)
	idx := bytes.Index(tail, sig[:])
	if idx < 0 {
		return ErrNotAZip
	}
	rec := tail[idx:]
	if len(rec) < eocdFixedLen {
		return ErrNotAZip
	}

	e := EndOfCentralDirectory{
		DiskNumber:        binary.LittleEndian.Uint16(rec[4:6]),
		CentralDirDisk:    binary.LittleEndian.Uint16(rec[6:8]),
		EntriesOnThisDisk: binary.LittleEndian.Uint16(rec[8:10]),
		TotalEntries:      binary.LittleEndian.Uint16(rec[10:12]),
		CentralDirSize:    binary.LittleEndian.Uint32(rec[12:16]),
		CentralDirOffset:  binary.LittleEndian.Uint32(rec[16:20]),
		eocdOffsetInFile:  tailStart + int64(idx),
	}
	commentLen := binary.LittleEndian.Uint16(rec[20:22])
	if commentLen > 0 {
		if len(rec) < eocdFixedLen+int(commentLen) {
			return errors.Wrap(ErrNotAZip, "zipfile: truncated archive comment")
		}
		e.Comment = append([]byte(nil), rec[eocdFixedLen:eocdFixedLen+int(commentLen)]...)
	}
	if e.DiskNumber != 0 || e.CentralDirDisk != 0 || e.EntriesOnThisDisk != e.TotalEntries {
		return ErrMultiDisk
	}
	f.EOCD = e
	return nil
}

// readCentralDirectory reads the whole central directory into memory in
// one shot and parses every fixed-length header plus its variable-length
// tail. Use NewDirectoryIterator for a streaming, one-entry-at-a-time form.
func (f *File) readCentralDirectory() error {
	buf := make([]byte, f.EOCD.CentralDirSize)
	if _, err := f.r.ReadAt(buf, int64(f.EOCD.CentralDirOffset)); err != nil && err != io.EOF {
		return errors.Wrap(err, "zipfile: reading central directory")
	}

	entries := make([]Entry, 0, f.EOCD.TotalEntries)
	off := 0
	for i := 0; i < int(f.EOCD.TotalEntries); i++ {
		e, n, err := parseCentralDirEntry(buf[off:])
		if err != nil {
			return errors.Wrapf(err, "zipfile: entry %d at central-dir offset %d", i, off)
		}
		entries = append(entries, e)
		off += n
	}
	f.Entries = entries
	return nil
}

func parseCentralDirEntry(buf []byte) (Entry, int, error) {
	if len(buf) < centralFixedLen {
		return Entry{}, 0, errors.New("zipfile: truncated central directory entry")
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != sigCentralDir {
		return Entry{}, 0, ErrBadSignature
	}
	e := Entry{
		VersionMadeBy:     binary.LittleEndian.Uint16(buf[4:6]),
		VersionNeeded:     binary.LittleEndian.Uint16(buf[6:8]),
		Flags:             binary.LittleEndian.Uint16(buf[8:10]),
		Method:            binary.LittleEndian.Uint16(buf[10:12]),
		ModTimeDOS:        binary.LittleEndian.Uint16(buf[12:14]),
		ModDateDOS:        binary.LittleEndian.Uint16(buf[14:16]),
		CRC32:             binary.LittleEndian.Uint32(buf[16:20]),
		CompressedSize:    binary.LittleEndian.Uint32(buf[20:24]),
		UncompressedSize:  binary.LittleEndian.Uint32(buf[24:28]),
		DiskStart:         binary.LittleEndian.Uint16(buf[34:36]),
		InternalAttrs:     binary.LittleEndian.Uint16(buf[36:38]),
		ExternalAttrs:     binary.LittleEndian.Uint32(buf[38:42]),
		LocalHeaderOffset: binary.LittleEndian.Uint32(buf[42:46]),
	}
	nameLen := int(binary.LittleEndian.Uint16(buf[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(buf[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(buf[32:34]))

	total := centralFixedLen + nameLen + extraLen + commentLen
	if len(buf) < total {
		return Entry{}, 0, errors.New("zipfile: truncated central directory entry tail")
	}
	pos := centralFixedLen
	e.Name = string(buf[pos : pos+nameLen])
	pos += nameLen
	if extraLen > 0 {
		e.Extra = append([]byte(nil), buf[pos:pos+extraLen]...)
	}
	pos += extraLen
	if commentLen > 0 {
		e.Comment = string(buf[pos : pos+commentLen])
	}
	return e, total, nil
}

// DirectoryIterator streams the central directory one entry at a time
// instead of reading it all into memory up front.
type DirectoryIterator struct {
	r       io.ReaderAt
	offset  int64
	remain  int
	entries int
}

// NewDirectoryIterator returns an iterator over f's central directory.
func NewDirectoryIterator(f *File) *DirectoryIterator {
	return &DirectoryIterator{
		r:       f.r,
		offset:  int64(f.EOCD.CentralDirOffset),
		remain:  int(f.EOCD.CentralDirSize),
		entries: int(f.EOCD.TotalEntries),
	}
}

// Next returns the next entry, or io.EOF once all entries (or the central
// directory's recorded byte span) have been consumed.
func (it *DirectoryIterator) Next() (Entry, error) {
	if it.entries == 0 || it.remain <= 0 {
		return Entry{}, io.EOF
	}
	header := make([]byte, centralFixedLen)
	n, err := ioutilx.ReadFullUpTo(io.NewSectionReader(it.r, it.offset, int64(it.remain)), header, 0, centralFixedLen)
	if err != nil {
		return Entry{}, errors.Wrap(err, "zipfile: reading central directory entry header")
	}
	if n < centralFixedLen {
		return Entry{}, errors.Wrap(io.ErrUnexpectedEOF, "zipfile: reading central directory entry header")
	}
	if binary.LittleEndian.Uint32(header[0:4]) != sigCentralDir {
		return Entry{}, ErrBadSignature
	}
	nameLen := int(binary.LittleEndian.Uint16(header[28:30]))
	extraLen := int(binary.LittleEndian.Uint16(header[30:32]))
	commentLen := int(binary.LittleEndian.Uint16(header[32:34]))
	tailLen := nameLen + extraLen + commentLen

	full := make([]byte, centralFixedLen+tailLen)
	if _, err := it.r.ReadAt(full, it.offset); err != nil && err != io.EOF {
		return Entry{}, errors.Wrap(err, "zipfile: reading central directory entry")
	}
	e, n, err := parseCentralDirEntry(full)
	if err != nil {
		return Entry{}, err
	}
	it.offset += int64(n)
	it.remain -= n
	it.entries--
	return e, nil
}
