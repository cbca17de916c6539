package servo

// scale linearly interpolates value from [inMin, inMax] to [outMin, outMax],
// truncating toward zero. Intermediate math is done in 64 bits so pulse
// widths never overflow. Callers must not pass inMin == inMax.
func scale(inMin, inMax, outMin, outMax, value int) int {
	scaled := int64(value - inMin)
	scaled *= int64(outMax - outMin)
	scaled /= int64(inMax - inMin)
	return int(scaled) + outMin
}
