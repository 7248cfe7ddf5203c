package insts

// SizeReserved is returned by SizeOf for the >=192-bit encoding space.
const SizeReserved = 0

// SizeOf returns the width in bits of the instruction whose first 16-bit
// parcel is given, following the RISC-V base length encoding:
//
//	xnnnxxxxx1111111  (80+16*nnn)-bit, nnn != 111
//	xxxxxxxxx0111111  64-bit
//	xxxxxxxxxx011111  48-bit
//	xxxxxxxxxxxxxx11  32-bit (bits 4:2 != 111)
//	xxxxxxxxxxxxxxAA  16-bit (AA != 11)
func SizeOf(parcel uint16) int {
	switch {
	case parcel&0x7F == 0x7F:
		n := int(parcel>>12) & 0x7
		if n == 0x7 {
			return SizeReserved
		}
		return 80 + 16*n
	case parcel&0x7F == 0x3F:
		return 64
	case parcel&0x3F == 0x1F:
		return 48
	case parcel&0x3 == 0x3:
		return 32
	default:
		return 16
	}
}
