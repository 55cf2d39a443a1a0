package scale

// ParseWeight extracts the numeric weight from the front of a scale line.
// The scale right-justifies the value, so leading blanks are skipped; an
// optional sign, integer digits and one fractional part are consumed, and
// parsing stops at the first byte that cannot extend the number (the unit
// suffix, stability flags and anything after are ignored). Lines with no
// leading numeric field parse as 0 with ok=false, which downstream treats
// like any other reading.
func ParseWeight(text string) (value float64, ok bool) {
	i := 0
	for i < len(text) && (text[i] == ' ' || text[i] == '\t') {
		i++
	}

	negative := false
	if i < len(text) && (text[i] == '+' || text[i] == '-') {
		negative = text[i] == '-'
		i++
	}

	// Accumulate all digits as one mantissa and divide the fractional
	// part back out at the end, so "0.25" comes out exactly 0.25.
	var mantissa float64
	digits := 0
	fracDigits := 0

	for i < len(text) && isDigit(text[i]) {
		mantissa = mantissa*10 + float64(text[i]-'0')
		digits++
		i++
	}
	if i < len(text) && text[i] == '.' {
		i++
		for i < len(text) && isDigit(text[i]) {
			mantissa = mantissa*10 + float64(text[i]-'0')
			digits++
			fracDigits++
			i++
		}
	}

	if digits == 0 {
		return 0, false
	}

	value = mantissa
	if fracDigits > 0 {
		divisor := 1.0
		for j := 0; j < fracDigits; j++ {
			divisor *= 10
		}
		value /= divisor
	}
	if negative {
		value = -value
	}
	return value, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
