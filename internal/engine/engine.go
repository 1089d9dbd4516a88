// Package engine is the thin typed shim over the native DEFLATE engine.
//
// The opaque engine state this package wraps is zlib's z_stream, driven
// through cgo exactly the way the pack's libdeflate and pigz wrappers drive
// their own native libraries: a small set of init helpers absorb the
// version/struct-size macro arguments cgo cannot expand, and the real
// exported deflate/inflate/deflateEnd/inflateEnd symbols are called
// directly. Everything above this package treats the engine as opaque.
package engine

// CompressStatus is the typed result of a single Compressor.Step call.
type CompressStatus int

const (
	// CompressOkay means the call made progress; more work may remain.
	CompressOkay CompressStatus = iota
	// CompressDone means finish was requested, all input was consumed,
	// and all pending output was emitted.
	CompressDone
	// CompressBadParam means the engine rejected the call's parameters.
	CompressBadParam
	// CompressPutBufFailed means the engine could not place output into
	// the supplied buffer (e.g. lost allocation inside the native side).
	CompressPutBufFailed
)

func (s CompressStatus) String() string {
	switch s {
	case CompressOkay:
		return "OKAY"
	case CompressDone:
		return "DONE"
	case CompressBadParam:
		return "BAD_PARAM"
	case CompressPutBufFailed:
		return "PUT_BUF_FAILED"
	default:
		return "UNKNOWN"
	}
}

// DecompressStatus is the typed result of a single Decompressor.Step call.
type DecompressStatus int

const (
	// DecompressNeedsMoreInput means the engine consumed all available
	// input and needs more before it can make further progress.
	DecompressNeedsMoreInput DecompressStatus = iota
	// DecompressHasMoreOutput means the output buffer filled before the
	// engine exhausted its pending output.
	DecompressHasMoreOutput
	// DecompressDone means the DEFLATE stream has been fully decoded.
	DecompressDone
	// DecompressFailed means the compressed stream is malformed.
	DecompressFailed
	// DecompressAdler32Mismatch is reported when zlib returns Z_NEED_DICT
	// (a zlib-framed stream that names a preset dictionary by its Adler-32).
	// A failed Adler-32 check on zlib-framed data is reported as
	// DecompressFailed, and a trailer appended under add_adler32 is not
	// checked on decompression.
	DecompressAdler32Mismatch
	// DecompressBadParam means the engine rejected the call's parameters.
	DecompressBadParam
)

func (s DecompressStatus) String() string {
	switch s {
	case DecompressNeedsMoreInput:
		return "NEEDS_MORE_INPUT"
	case DecompressHasMoreOutput:
		return "HAS_MORE_OUTPUT"
	case DecompressDone:
		return "DONE"
	case DecompressFailed:
		return "FAILED"
	case DecompressAdler32Mismatch:
		return "ADLER32_MISMATCH"
	case DecompressBadParam:
		return "BAD_PARAM"
	default:
		return "UNKNOWN"
	}
}

// DecompressFlags selects decompress_step behavior.
type DecompressFlags uint32

const (
	// MoreInputComing tells the engine that a zero-length input slice
	// does not mean end of stream; the caller will refill and call again.
	MoreInputComing DecompressFlags = 1 << iota
	// RingOutput tells the engine that out is a power-of-two ring buffer
	// whose dictionary region must be preserved across calls, rather than
	// a one-shot non-wrapping buffer sized for the whole plaintext.
	RingOutput
)

// probeDepth is the level-to-search-depth table the reference native
// engine (miniz's tdefl) uses internally to budget its match finder. The
// zlib engine backing this implementation derives an equivalent tradeoff
// from its own level parameter directly rather than consulting this table,
// but LevelSearchDepth exposes it for init-time diagnostic logging so the
// mapping stays live documentation rather than a dead constant.
var probeDepth = [11]int{0, 1, 6, 32, 16, 32, 128, 256, 512, 768, 1500}

// LevelSearchDepth returns the reference engine's documented probe-depth
// budget for level, clamped into the supported range. It exists for
// logging/diagnostics only; it does not influence the zlib backing's own
// behavior.
func LevelSearchDepth(level int) int {
	return probeDepth[ClampLevel(level)]
}

// ClampLevel clamps a requested compression level into the supported
// [0,9] range, matching the native engine's own clamping behavior.
func ClampLevel(level int) int {
	if level < 0 {
		return 0
	}
	if level > 9 {
		return 9
	}
	return level
}
