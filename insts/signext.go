package insts

// SignExtend reinterprets the low width bits of field as a two's-complement
// number: if the sign bit is set the value is field - 2^width. Bits above
// width are ignored.
func SignExtend(field uint32, width uint) int32 {
	if width == 0 || width >= 32 {
		return int32(field)
	}
	shift := 32 - width
	return int32(field<<shift) >> shift
}

// SignExtend12 interprets a 12-bit I/S immediate.
func SignExtend12(field uint32) int32 { return SignExtend(field, 12) }

// SignExtend13 interprets a 13-bit B immediate.
func SignExtend13(field uint32) int32 { return SignExtend(field, 13) }

// SignExtend20 interprets a 20-bit U immediate.
func SignExtend20(field uint32) int32 { return SignExtend(field, 20) }

// SignExtend21 interprets a 21-bit J immediate.
func SignExtend21(field uint32) int32 { return SignExtend(field, 21) }

// SignExtend32 interprets a full register value as signed.
func SignExtend32(field uint32) int32 { return int32(field) }
