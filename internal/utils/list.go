package utils

func IsStringInSlice(s string, slice []string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}

// AppendUnique appends values not already present, preserving the order of first appearance.
func AppendUnique(slice []string, values ...string) []string {
	seen := make(map[string]struct{}, len(slice)+len(values))
	for _, v := range slice {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, exists := seen[v]; exists {
			continue
		}
		seen[v] = struct{}{}
		slice = append(slice, v)
	}
	return slice
}
