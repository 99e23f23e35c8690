package hardware

// NormalizeAxis maps a raw absolute axis value onto [-100, 100].
func NormalizeAxis(raw, min, max int32, invert bool) float64 {
	span := float64(max - min)
	if span == 0 {
		return 0
	}
	v := (float64(raw-min)/span)*200 - 100
	if v > 100 {
		v = 100
	} else if v < -100 {
		v = -100
	}
	if invert {
		return -v
	}
	return v
}
