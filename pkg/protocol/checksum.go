package protocol

// Checksum computes the 8-bit additive two's-complement checksum the
// robot firmware expects. It covers the LEN byte through the last
// payload byte; the start marker and the checksum itself are excluded.
//
// Sum all bytes, invert, add one. Appending the checksum to its input
// therefore makes the whole run sum to zero.
func Checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return ^sum + 1
}
