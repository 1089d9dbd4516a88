//go:build cgo

package engine

/*
#cgo LDFLAGS: -lz
#include <zlib.h>
#include <stdlib.h>
#include <string.h>

// deflateInit2 and inflateInit2 are macros in zlib.h that splice in
// ZLIB_VERSION and sizeof(z_stream); cgo cannot expand function-like macros,
// so these thin wrappers do it on the C side, the same shape pigz's cgo
// shim uses for its own init helper.
static int flatekit_deflate_init(z_streamp strm, int level, int windowBits) {
	memset(strm, 0, sizeof(*strm));
	return deflateInit2(strm, level, Z_DEFLATED, windowBits, 8, Z_DEFAULT_STRATEGY);
}

static int flatekit_inflate_init(z_streamp strm, int windowBits) {
	memset(strm, 0, sizeof(*strm));
	return inflateInit2(strm, windowBits);
}
*/
import "C"

import (
	"runtime"
	"unsafe"

	"github.com/sirupsen/logrus"
)

// rawWindowBits selects raw DEFLATE framing (no zlib RFC1950 wrapper);
// zlibWindowBits selects the RFC1950-wrapped form.
const (
	rawWindowBits  = -15
	zlibWindowBits = 15
)

// Compressor wraps a zlib deflate stream. Its z_stream lives in C-allocated
// memory rather than as an embedded Go-struct field: Step writes Go slice
// pointers into next_in/next_out, and a Go pointer to a Go-resident struct
// containing other Go pointers is rejected by the cgo pointer-passing
// checks (cgocheck=1) the moment deflate() is called. Keeping the z_stream
// itself in C memory sidesteps the check entirely, the same approach
// bignacio-gozlib's pool_acquire_zstream_state takes. The zero value is not
// usable; construct with NewCompressor.
type Compressor struct {
	strm     *C.z_stream
	initOnce bool
}

// NewCompressor allocates a Compressor, including its C-resident z_stream.
// The returned value must be freed with Cleanup exactly once; Cleanup
// tolerates being called on a value that was never successfully
// initialized.
func NewCompressor() *Compressor {
	c := &Compressor{
		strm: (*C.z_stream)(C.calloc(1, C.size_t(unsafe.Sizeof(C.z_stream{})))),
	}
	runtime.SetFinalizer(c, func(c *Compressor) {
		if c.initOnce {
			logrus.Warn("engine: Compressor finalized without explicit Cleanup")
		}
		c.Cleanup()
	})
	return c
}

// Init (re-)initializes the compressor at the given level. addZlibHeader
// selects RFC1950 framing over raw DEFLATE; level is clamped to [0,9].
func (c *Compressor) Init(level int, addZlibHeader bool) CompressStatus {
	if c.strm == nil {
		return CompressBadParam
	}
	if c.initOnce {
		C.deflateEnd(c.strm)
	}
	wbits := C.int(rawWindowBits)
	if addZlibHeader {
		wbits = C.int(zlibWindowBits)
	}
	resolved := ClampLevel(level)
	rc := C.flatekit_deflate_init(c.strm, C.int(resolved), wbits)
	if rc != C.Z_OK {
		return CompressBadParam
	}
	c.initOnce = true
	logrus.WithFields(logrus.Fields{"level": resolved, "probeDepth": LevelSearchDepth(resolved)}).
		Debug("engine: compressor initialized")
	return CompressOkay
}

// Step runs one engine call. in/out must not be empty-capacity nil slices
// when non-zero length is implied by the caller; pointers derived from them
// are valid only for the duration of this call.
func (c *Compressor) Step(in []byte, out []byte, finish bool) (consumed, produced int, status CompressStatus) {
	if !c.initOnce {
		return 0, 0, CompressBadParam
	}
	if len(in) > 0 {
		c.strm.next_in = (*C.Bytef)(unsafe.Pointer(&in[0]))
	} else {
		c.strm.next_in = nil
	}
	c.strm.avail_in = C.uInt(len(in))
	if len(out) > 0 {
		c.strm.next_out = (*C.Bytef)(unsafe.Pointer(&out[0]))
	} else {
		c.strm.next_out = nil
	}
	c.strm.avail_out = C.uInt(len(out))

	flush := C.int(C.Z_NO_FLUSH)
	if finish {
		flush = C.Z_FINISH
	}
	rc := C.deflate(c.strm, flush)

	consumed = len(in) - int(c.strm.avail_in)
	produced = len(out) - int(c.strm.avail_out)

	switch rc {
	case C.Z_STREAM_END:
		return consumed, produced, CompressDone
	case C.Z_OK, C.Z_BUF_ERROR:
		return consumed, produced, CompressOkay
	case C.Z_STREAM_ERROR:
		return consumed, produced, CompressBadParam
	default:
		return consumed, produced, CompressPutBufFailed
	}
}

// Cleanup releases the engine state and frees the C-resident z_stream.
// Idempotent; safe to call more than once or on a Compressor that was
// never Init'd.
func (c *Compressor) Cleanup() {
	if c.strm == nil {
		return
	}
	if c.initOnce {
		C.deflateEnd(c.strm)
		c.initOnce = false
	}
	C.free(unsafe.Pointer(c.strm))
	c.strm = nil
}

// Decompressor wraps a zlib inflate stream. Like Compressor, its z_stream
// lives in C-allocated memory so that Step's Go-pointer writes into
// next_in/next_out never cross the cgo boundary nested inside a Go-resident
// struct.
type Decompressor struct {
	strm     *C.z_stream
	initOnce bool
}

// NewDecompressor allocates a Decompressor, including its C-resident
// z_stream. Must be freed with Cleanup.
func NewDecompressor() *Decompressor {
	d := &Decompressor{
		strm: (*C.z_stream)(C.calloc(1, C.size_t(unsafe.Sizeof(C.z_stream{})))),
	}
	runtime.SetFinalizer(d, func(d *Decompressor) {
		if d.initOnce {
			logrus.Warn("engine: Decompressor finalized without explicit Cleanup")
		}
		d.Cleanup()
	})
	return d
}

// Init (re-)initializes the decompressor. addZlibHeader mirrors the
// compressor's framing flag: false expects raw DEFLATE input.
func (d *Decompressor) Init(addZlibHeader bool) DecompressStatus {
	if d.strm == nil {
		return DecompressBadParam
	}
	if d.initOnce {
		C.inflateEnd(d.strm)
	}
	wbits := C.int(rawWindowBits)
	if addZlibHeader {
		wbits = C.int(zlibWindowBits)
	}
	rc := C.flatekit_inflate_init(d.strm, wbits)
	if rc != C.Z_OK {
		return DecompressBadParam
	}
	d.initOnce = true
	return DecompressNeedsMoreInput
}

// Step runs one engine call. flags carries MoreInputComing/RingOutput;
// RingOutput is accepted for interface fidelity with this spec's documented
// contract but does not change zlib's own behavior, since zlib tracks its
// 32 KiB window internally rather than re-reading it from the caller's
// output buffer.
func (d *Decompressor) Step(in []byte, out []byte, flags DecompressFlags) (consumed, produced int, status DecompressStatus) {
	if !d.initOnce {
		return 0, 0, DecompressBadParam
	}
	if len(in) > 0 {
		d.strm.next_in = (*C.Bytef)(unsafe.Pointer(&in[0]))
	} else {
		d.strm.next_in = nil
	}
	d.strm.avail_in = C.uInt(len(in))
	if len(out) > 0 {
		d.strm.next_out = (*C.Bytef)(unsafe.Pointer(&out[0]))
	} else {
		d.strm.next_out = nil
	}
	d.strm.avail_out = C.uInt(len(out))

	rc := C.inflate(d.strm, C.Z_NO_FLUSH)

	consumed = len(in) - int(d.strm.avail_in)
	produced = len(out) - int(d.strm.avail_out)

	switch rc {
	case C.Z_STREAM_END:
		return consumed, produced, DecompressDone
	case C.Z_OK, C.Z_BUF_ERROR:
		if produced > 0 && int(d.strm.avail_out) == 0 {
			return consumed, produced, DecompressHasMoreOutput
		}
		if int(d.strm.avail_in) == 0 && flags&MoreInputComing != 0 {
			return consumed, produced, DecompressNeedsMoreInput
		}
		if rc == C.Z_BUF_ERROR && produced == 0 && consumed == 0 {
			return consumed, produced, DecompressNeedsMoreInput
		}
		return consumed, produced, DecompressNeedsMoreInput
	case C.Z_DATA_ERROR:
		return consumed, produced, DecompressFailed
	case C.Z_STREAM_ERROR:
		return consumed, produced, DecompressBadParam
	case C.Z_NEED_DICT:
		return consumed, produced, DecompressAdler32Mismatch
	default:
		return consumed, produced, DecompressFailed
	}
}

// Cleanup releases the engine state and frees the C-resident z_stream.
// Idempotent.
func (d *Decompressor) Cleanup() {
	if d.strm == nil {
		return
	}
	if d.initOnce {
		C.inflateEnd(d.strm)
		d.initOnce = false
	}
	C.free(unsafe.Pointer(d.strm))
	d.strm = nil
}
