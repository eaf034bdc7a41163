package vietqr

// crc16 computes CRC-16/CCITT-FALSE: 16-bit register initialised to
// 0xFFFF, polynomial 0x1021, no final XOR. This is the checksum variant
// EMVCo QR payloads require.
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
