package deflate

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func compressAll(t *testing.T, input []byte, level, sizeFactor int) []byte {
	t.Helper()
	d := NewDeflator(sizeFactor)
	defer d.Close()
	require.NoError(t, d.Init(level, false, false))

	var out bytes.Buffer
	require.NoError(t, d.CompressWrite(input, true, func(p []byte) error {
		_, err := out.Write(p)
		return err
	}))
	return out.Bytes()
}

func decompressAll(t *testing.T, compressed []byte, sizeFactor int) []byte {
	t.Helper()
	inf := NewInflator(sizeFactor)
	defer inf.Close()
	require.NoError(t, inf.Init(false, false))

	pos := 0
	readCB := func(p []byte) (int, error) {
		n := copy(p, compressed[pos:])
		pos += n
		return n, nil
	}

	var out bytes.Buffer
	buf := make([]byte, 37)
	for {
		n, err := inf.DecompressRead(readCB, buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		out.Write(buf[:n])
	}
	return out.Bytes()
}

func TestDeflatorInflatorRoundTripAcrossLevelsAndFactors(t *testing.T) {
	input := []byte(strings.Repeat("ABCDEFGH", 12))
	for level := 0; level <= 9; level++ {
		for _, f := range []int{5, 8, 10} {
			compressed := compressAll(t, input, level, f)
			got := decompressAll(t, compressed, f)
			require.Equal(t, input, got, "level=%d factor=%d", level, f)
		}
	}
}

func TestDeflatorInflatorRoundTripEmptyInput(t *testing.T) {
	compressed := compressAll(t, nil, 6, 5)
	got := decompressAll(t, compressed, 5)
	require.Empty(t, got)
}

func TestDeflatorCloseIsIdempotent(t *testing.T) {
	d := NewDeflator(5)
	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}

func TestDeflatorWriteAfterFinalizeFails(t *testing.T) {
	d := NewDeflator(5)
	defer d.Close()
	require.NoError(t, d.Init(6, false, false))
	require.NoError(t, d.CompressWrite([]byte("x"), true, func([]byte) error { return nil }))
	err := d.CompressWrite([]byte("y"), false, func([]byte) error { return nil })
	require.ErrorIs(t, err, ErrFinalized)
}

func TestInflatorDecompressReadReturnsZeroOnceAfterDone(t *testing.T) {
	compressed := compressAll(t, []byte("hello world"), 6, 5)
	inf := NewInflator(5)
	defer inf.Close()
	require.NoError(t, inf.Init(false, false))

	pos := 0
	readCB := func(p []byte) (int, error) {
		n := copy(p, compressed[pos:])
		pos += n
		return n, nil
	}
	buf := make([]byte, 256)
	var total []byte
	for {
		n, err := inf.DecompressRead(readCB, buf)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		total = append(total, buf[:n]...)
	}
	require.Equal(t, "hello world", string(total))

	n, err := inf.DecompressRead(readCB, buf)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCompressPipeRoundTrip(t *testing.T) {
	input := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog ", 50))
	d := NewDeflator(5)
	defer d.Close()
	require.NoError(t, d.Init(9, false, false))

	pos := 0
	readCB := func(p []byte) (int, error) {
		n := copy(p, input[pos:])
		pos += n
		return n, nil
	}
	var compressed bytes.Buffer
	require.NoError(t, d.CompressPipe(readCB, func(p []byte, _ bool) (bool, error) {
		_, err := compressed.Write(p)
		return false, err
	}))

	got := decompressAll(t, compressed.Bytes(), 5)
	require.Equal(t, input, got)
}
