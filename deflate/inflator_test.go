package deflate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// gzipFixture is the fixed fixture from the end-to-end test scenarios: a
// full gzip stream carrying the plaintext "ABCDEFGH\r\n" with header
// filename "test1". The raw DEFLATE body starts after the 10-byte fixed
// header plus the 6-byte NUL-terminated name ("test1\x00") and ends 8
// bytes before the end (the CRC32+ISIZE trailer).
var gzipFixture = []byte{
	0x1f, 0x8b, 0x08, 0x08, 0x54, 0x3c, 0x3d, 0x52, 0x00, 0x03,
	't', 'e', 's', 't', '1', 0x00,
	0x73, 0x74, 0x72, 0x76, 0x71, 0x75, 0x73, 0xf7, 0xe0, 0xe5, 0x02, 0x00,
	0x94, 0xa6, 0xd7, 0xd0,
	0x0a, 0x00, 0x00, 0x00,
}

func rawDeflateBody(t *testing.T) []byte {
	t.Helper()
	// 10 fixed bytes + "test1\x00" (6 bytes) = 16-byte header; trailer is
	// the final 8 bytes.
	return gzipFixture[16 : len(gzipFixture)-8]
}

func TestInflatorDecodesFixedFixture(t *testing.T) {
	body := rawDeflateBody(t)
	got := decompressAll(t, body, 5)
	require.Equal(t, "ABCDEFGH\r\n", string(got))
}

func TestInflatorDecompressReadVariousOutputSizes(t *testing.T) {
	body := rawDeflateBody(t)
	for _, outSize := range []int{1, 8, 256} {
		inf := NewInflator(5)
		require.NoError(t, inf.Init(false, false))

		pos := 0
		readCB := func(p []byte) (int, error) {
			n := copy(p, body[pos:])
			pos += n
			return n, nil
		}
		buf := make([]byte, outSize)
		var got []byte
		for {
			n, err := inf.DecompressRead(readCB, buf)
			require.NoError(t, err)
			if n == 0 {
				break
			}
			got = append(got, buf[:n]...)
		}
		require.Equal(t, "ABCDEFGH\r\n", string(got), "outSize=%d", outSize)

		n, err := inf.DecompressRead(readCB, buf)
		require.NoError(t, err)
		require.Zero(t, n)
		require.NoError(t, inf.Close())
	}
}

func TestInflatorFlippedBitFails(t *testing.T) {
	// Raw DEFLATE carries no checksum, so the flip has to land on a code the
	// decoder rejects: XOR 0x68 on body[6] turns the fixed-Huffman code for
	// 'G' into literal/length code 287, which is not a valid symbol.
	body := append([]byte(nil), rawDeflateBody(t)...)
	body[len(body)/2] ^= 0x68

	inf := NewInflator(5)
	defer inf.Close()
	require.NoError(t, inf.Init(false, false))

	pos := 0
	readCB := func(p []byte) (int, error) {
		n := copy(p, body[pos:])
		pos += n
		return n, nil
	}
	buf := make([]byte, 256)
	var err error
	for {
		var n int
		n, err = inf.DecompressRead(readCB, buf)
		if err != nil || n == 0 {
			break
		}
	}
	require.Error(t, err)
}

func TestInflatorDecompressPipeCapturesRest(t *testing.T) {
	// DEFLATE body followed by a known trailer, like a gzip stream's tail.
	trailer := []byte{0x94, 0xa6, 0xd7, 0xd0, 0x0a, 0x00, 0x00, 0x00}
	full := append(append([]byte(nil), rawDeflateBody(t)...), trailer...)

	inf := NewInflator(5)
	defer inf.Close()
	require.NoError(t, inf.Init(false, false))

	pos := 0
	readCB := func(p []byte) (int, error) {
		n := copy(p, full[pos:])
		pos += n
		return n, nil
	}
	var out bytes.Buffer
	var rest []byte
	err := inf.DecompressPipe(readCB, func(p []byte) error {
		out.Write(p)
		return nil
	}, func(p []byte) error {
		rest = append([]byte(nil), p...)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "ABCDEFGH\r\n", out.String())
	require.Equal(t, trailer, rest)
}
