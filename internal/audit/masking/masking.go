package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = map[string]struct{}{
	"phone_number":  {},
	"customer_name": {},
}

// MaskValue redacts a value while keeping the last four characters.
func MaskValue(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskSensitive returns a copy of input with customer contact fields masked
// at any depth.
func MaskSensitive(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := sensitiveKeys[key]; ok {
			if s, isString := value.(string); isString {
				out[key] = MaskValue(s)
				continue
			}
		}
		out[key] = maskNested(value)
	}
	return out
}

func maskNested(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		return MaskSensitive(cast)
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskNested(item))
		}
		return out
	default:
		return value
	}
}
