package config

// ComputeChecksum returns the 8-bit two's-complement checksum of data:
// the byte that makes the modular sum of data plus the checksum zero.
func ComputeChecksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return -sum
}

// VerifyChecksum reports whether checksum matches data.
func VerifyChecksum(data []byte, checksum uint8) bool {
	return ComputeChecksum(data) == checksum
}
