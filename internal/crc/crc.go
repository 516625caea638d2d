package crc

import (
	"fmt"
	"strings"
)

// Compute returns the CRC-16 of body: polynomial 0xA001 (reflected 0x8005),
// initial value 0, one bit at a time.
func Compute(body []byte) uint16 {
	var crc uint16
	for _, b := range body {
		tmp := uint16(b)
		for i := 0; i < 8; i++ {
			tmp ^= crc & 1
			crc >>= 1
			if tmp&1 != 0 {
				crc ^= 0xA001
			}
			tmp >>= 1
		}
	}
	return crc
}

func Format(v uint16) string {
	return fmt.Sprintf("%04X", v)
}

func Verify(body []byte, declared string) bool {
	return Format(Compute(body)) == strings.ToUpper(strings.TrimSpace(declared))
}
