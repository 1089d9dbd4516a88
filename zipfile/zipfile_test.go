package zipfile

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/philipaconrad/flatekit/deflate"
)

type zipBuilder struct {
	buf     bytes.Buffer
	central bytes.Buffer
	entries int
}

func rawDeflate(t *testing.T, plaintext []byte) []byte {
	t.Helper()
	def := deflate.NewDeflator(deflate.DefaultSizeFactor)
	require.NoError(t, def.Init(6, false, false))
	defer def.Close()
	var out bytes.Buffer
	require.NoError(t, def.CompressWrite(plaintext, true, func(p []byte) error {
		_, err := out.Write(p)
		return err
	}))
	return out.Bytes()
}

// addEntry writes a local header + body at the current offset, and stages
// the matching central directory record, mirroring how a real zip writer
// interleaves local headers with archive content.
func (b *zipBuilder) addEntry(name string, method uint16, plaintext, body []byte, flags uint16, withDescriptor bool) {
	localOffset := uint32(b.buf.Len())
	crc := crc32.ChecksumIEEE(plaintext)

	var crcField, compField, uncompField uint32
	if !withDescriptor {
		crcField, compField, uncompField = crc, uint32(len(body)), uint32(len(plaintext))
	}

	var local [30]byte
	binary.LittleEndian.PutUint32(local[0:4], sigLocalHeader)
	binary.LittleEndian.PutUint16(local[8:10], flags)
	binary.LittleEndian.PutUint16(local[10:12], method)
	binary.LittleEndian.PutUint32(local[14:18], crcField)
	binary.LittleEndian.PutUint32(local[18:22], compField)
	binary.LittleEndian.PutUint32(local[22:26], uncompField)
	binary.LittleEndian.PutUint16(local[26:28], uint16(len(name)))
	b.buf.Write(local[:])
	b.buf.WriteString(name)
	b.buf.Write(body)

	if withDescriptor {
		var desc [16]byte
		binary.LittleEndian.PutUint32(desc[0:4], sigDataDesc)
		binary.LittleEndian.PutUint32(desc[4:8], crc)
		binary.LittleEndian.PutUint32(desc[8:12], uint32(len(body)))
		binary.LittleEndian.PutUint32(desc[12:16], uint32(len(plaintext)))
		b.buf.Write(desc[:])
	}

	var cd [46]byte
	binary.LittleEndian.PutUint32(cd[0:4], sigCentralDir)
	binary.LittleEndian.PutUint16(cd[8:10], flags)
	binary.LittleEndian.PutUint16(cd[10:12], method)
	binary.LittleEndian.PutUint32(cd[16:20], crc)
	binary.LittleEndian.PutUint32(cd[20:24], uint32(len(body)))
	binary.LittleEndian.PutUint32(cd[24:28], uint32(len(plaintext)))
	binary.LittleEndian.PutUint16(cd[28:30], uint16(len(name)))
	binary.LittleEndian.PutUint32(cd[42:46], localOffset)
	b.central.Write(cd[:])
	b.central.WriteString(name)
	b.entries++
}

func (b *zipBuilder) finish() []byte {
	cdOffset := uint32(b.buf.Len())
	b.buf.Write(b.central.Bytes())

	var eocd [22]byte
	binary.LittleEndian.PutUint32(eocd[0:4], sigEOCD)
	binary.LittleEndian.PutUint16(eocd[8:10], uint16(b.entries))
	binary.LittleEndian.PutUint16(eocd[10:12], uint16(b.entries))
	binary.LittleEndian.PutUint32(eocd[12:16], uint32(b.central.Len()))
	binary.LittleEndian.PutUint32(eocd[16:20], cdOffset)
	b.buf.Write(eocd[:])
	return b.buf.Bytes()
}

type bytesReaderAt struct {
	b []byte
}

func (r bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return bytes.NewReader(r.b).ReadAt(p, off)
}

func TestOpenTwoEntryArchive(t *testing.T) {
	var b zipBuilder
	b.addEntry("a.txt", MethodStore, []byte("abc"), []byte("abc"), 0, false)

	bContent := bytes.Repeat([]byte("ABCDEFGH"), 12)
	bBody := rawDeflate(t, bContent)
	b.addEntry("b.txt", MethodDeflate, bContent, bBody, 0, false)

	archive := b.finish()
	f, err := Open(bytesReaderAt{archive}, int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, f.Entries, 2)
	require.Equal(t, "a.txt", f.Entries[0].Name)
	require.Equal(t, "b.txt", f.Entries[1].Name)

	for i, want := range [][]byte{[]byte("abc"), bContent} {
		er, err := f.Open(&f.Entries[i], deflate.DefaultSizeFactor)
		require.NoError(t, err)
		got, err := io.ReadAll(er)
		require.NoError(t, err)
		require.Equal(t, want, got)
		require.NoError(t, er.Close())
	}
}

func TestOpenEntryWithDataDescriptor(t *testing.T) {
	var b zipBuilder
	content := []byte("streamed entry content, size unknown up front")
	body := rawDeflate(t, content)
	b.addEntry("stream.bin", MethodDeflate, content, body, flagDataDescriptor, true)
	archive := b.finish()

	f, err := Open(bytesReaderAt{archive}, int64(len(archive)))
	require.NoError(t, err)
	require.Len(t, f.Entries, 1)
	require.NotZero(t, f.Entries[0].Flags&flagDataDescriptor)

	er, err := f.Open(&f.Entries[0], deflate.DefaultSizeFactor)
	require.NoError(t, err)
	got, err := io.ReadAll(er)
	require.NoError(t, err)
	require.Equal(t, content, got)
}

func TestOpenRejectsUnsupportedMethod(t *testing.T) {
	var b zipBuilder
	b.addEntry("weird.bin", 99, []byte("x"), []byte("x"), 0, false)
	archive := b.finish()

	f, err := Open(bytesReaderAt{archive}, int64(len(archive)))
	require.NoError(t, err)
	_, err = f.Open(&f.Entries[0], deflate.DefaultSizeFactor)
	require.ErrorIs(t, err, ErrUnsupportedMethod)
}

func TestDirectoryIteratorMatchesBatchForm(t *testing.T) {
	var b zipBuilder
	b.addEntry("a.txt", MethodStore, []byte("abc"), []byte("abc"), 0, false)
	b.addEntry("c.txt", MethodStore, []byte("xyz"), []byte("xyz"), 0, false)
	archive := b.finish()

	f, err := Open(bytesReaderAt{archive}, int64(len(archive)))
	require.NoError(t, err)

	it := NewDirectoryIterator(f)
	var streamed []Entry
	for {
		e, err := it.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		streamed = append(streamed, e)
	}
	require.Equal(t, f.Entries, streamed)
}

func TestOpenRejectsNonZip(t *testing.T) {
	garbage := []byte("this is not a zip archive at all")
	_, err := Open(bytesReaderAt{garbage}, int64(len(garbage)))
	require.ErrorIs(t, err, ErrNotAZip)
}
