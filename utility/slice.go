package utility

func Contains(array []string, s string) bool {
	for _, v := range array {
		if v == s {
			return true
		}
	}
	return false
}

// Unique drops repeated values, keeping the first occurrence.
func Unique(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// Intersect keeps the values of requested that are present in available, preserving order.
func Intersect(requested, available []string) []string {
	out := make([]string, 0, len(requested))
	for _, v := range requested {
		if Contains(available, v) && !Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
