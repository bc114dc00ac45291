package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"orthogonal", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"opposite", []float64{1, 0}, []float64{-1, 0}, -1.0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0.0},
		{"length mismatch", []float64{1, 2}, []float64{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestParseEmbedding(t *testing.T) {
	assert.Equal(t, []float64{0.1, 0.2}, ParseEmbedding(`[0.1,0.2]`))
	assert.Nil(t, ParseEmbedding(""))
	assert.Nil(t, ParseEmbedding("[]"))
	assert.Nil(t, ParseEmbedding("not json"))
	assert.Nil(t, ParseEmbedding(`{"a":1}`))
}
