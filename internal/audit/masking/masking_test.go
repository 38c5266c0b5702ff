package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "", MaskValue("  "))
	assert.Equal(t, "****", MaskValue("123"))
	assert.Equal(t, "****5678", MaskValue("0812-345-5678"))
}

func TestMaskSensitiveNested(t *testing.T) {
	out := MaskSensitive(map[string]any{
		"title":        "Wedding",
		"phone_number": "081234567890",
		"header": map[string]any{
			"customer_name": "Siti Rahma",
		},
		"lines": []any{map[string]any{"phone_number": "5551234"}},
	})

	assert.Equal(t, "Wedding", out["title"])
	assert.Equal(t, "****7890", out["phone_number"])
	assert.Equal(t, "****ahma", out["header"].(map[string]any)["customer_name"])
	assert.Equal(t, "****1234", out["lines"].([]any)[0].(map[string]any)["phone_number"])
}
