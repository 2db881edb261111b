package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpolate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		payload  map[string]any
		want     string
	}{
		{
			name:     "substitutes known placeholders",
			template: "Upgrade {{pkg}} to {{ver}}",
			payload:  map[string]any{"pkg": "lodash", "ver": "4.18.0"},
			want:     "Upgrade lodash to 4.18.0",
		},
		{
			name:     "unknown placeholder left verbatim",
			template: "Value is {{missing}}",
			payload:  map[string]any{"present": "x"},
			want:     "Value is {{missing}}",
		},
		{
			name:     "numeric values are coerced",
			template: "PR {{number}} scored {{score}}",
			payload:  map[string]any{"number": float64(42), "score": 3.5},
			want:     "PR 42 scored 3.5",
		},
		{
			name:     "boolean values are coerced",
			template: "merged={{merged}}",
			payload:  map[string]any{"merged": true},
			want:     "merged=true",
		},
		{
			name:     "whitespace inside braces is tolerated",
			template: "Hello {{ name }}",
			payload:  map[string]any{"name": "world"},
			want:     "Hello world",
		},
		{
			name:     "nil payload leaves template untouched",
			template: "Hello {{name}}",
			payload:  nil,
			want:     "Hello {{name}}",
		},
		{
			name:     "no placeholders",
			template: "plain text",
			payload:  map[string]any{"name": "unused"},
			want:     "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Interpolate(tt.template, tt.payload))
		})
	}
}
