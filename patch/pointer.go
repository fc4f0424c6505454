package patch

import "strings"

// FieldPath returns the JSON pointer of a field in the filled document.
func FieldPath(fieldID string) string {
	return "/" + escapeJSONPointer(fieldID)
}

// FieldIDFromPath reverses FieldPath. Nested pointers are rejected.
func FieldIDFromPath(path string) (string, bool) {
	if !strings.HasPrefix(path, "/") {
		return "", false
	}
	token := path[1:]
	if token == "" || strings.Contains(token, "/") {
		return "", false
	}
	return unescapeJSONPointer(token), true
}

func escapeJSONPointer(token string) string {
	token = strings.ReplaceAll(token, "~", "~0")
	return strings.ReplaceAll(token, "/", "~1")
}

func unescapeJSONPointer(token string) string {
	token = strings.ReplaceAll(token, "~1", "/")
	return strings.ReplaceAll(token, "~0", "~")
}
