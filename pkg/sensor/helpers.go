package sensor

// decode combines the low and high data register bytes of one axis. The
// device already sign-extends its 10-bit reading into the high byte.
func decode(low, high byte) int16 {
	return int16(uint16(high)<<8 | uint16(low))
}

// decodeSample expects the six data registers DATAX0..DATAZ1 in order.
func decodeSample(buf []byte) Sample {
	return Sample{
		X: decode(buf[0], buf[1]),
		Y: decode(buf[2], buf[3]),
		Z: decode(buf[4], buf[5]),
	}
}
