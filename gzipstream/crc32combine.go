package gzipstream

import "hash/crc32"

// crc32Combine computes the CRC-32 of the concatenation of two byte
// sequences given only crc1 (the CRC of the first), crc2 (the CRC of the
// second), and len2 (the length of the second), without touching either
// sequence's bytes. It works by running crc1 forward over len2 zero bytes
// before XORing in crc2; this is the naive O(len2) version rather than the
// GF(2)-matrix O(log len2) one, which is fine at the blob sizes
// WriteCompressed is meant for.
func crc32Combine(crc1, crc2 uint32, len2 int64) uint32 {
	if len2 <= 0 {
		return crc1
	}
	zeroes := make([]byte, len2)
	crc1 = crc32.Update(0xffffffff^crc1, crc32.IEEETable, zeroes) ^ 0xffffffff
	return crc1 ^ crc2
}
