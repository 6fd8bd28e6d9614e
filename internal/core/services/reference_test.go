package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"model-deployer/internal/core/domain"
)

// query first, then neighbors in decreasing cosine similarity: 4, 1, 2, 3
const testVectorsCSV = `100,1,0
1,0.9,0.1
2,0.5,0.5
3,0,1
4,0.99,0.01
`

func TestLoadVectors(t *testing.T) {
	set, err := LoadVectors(strings.NewReader("7.0,1,2,3\n8, 4, 5, 6\n"))
	require.NoError(t, err)

	assert.Equal(t, 3, set.Dim)
	assert.Equal(t, []int{7, 8}, set.Labels)
	assert.Equal(t, []float32{4, 5, 6}, set.Vectors[1])
}

func TestLoadVectors_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty", input: "", wantErr: domain.ErrEmptyDataset},
		{name: "ragged rows", input: "1,1,2\n2,1\n", wantErr: domain.ErrDimensionMismatch},
		{name: "label only", input: "1\n", wantErr: domain.ErrDimensionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadVectors(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := LoadVectors(strings.NewReader("1,abc\n"))
	assert.Error(t, err)
}

func TestVectorSet_Rank(t *testing.T) {
	set, err := LoadVectors(strings.NewReader(testVectorsCSV))
	require.NoError(t, err)

	ranking, err := set.Rank(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 2}, ranking)

	all, err := set.Rank(0, 10)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 2, 3}, all)
}

func TestVectorSet_Rank_SkipsZeroMagnitude(t *testing.T) {
	set, err := LoadVectors(strings.NewReader("1,1,0\n2,0,0\n3,0,1\n"))
	require.NoError(t, err)

	ranking, err := set.Rank(0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, ranking)

	_, err = set.Rank(1, 2)
	assert.ErrorIs(t, err, domain.ErrEmptyDataset)

	_, err = set.Rank(5, 2)
	assert.Error(t, err)
}

func TestCSVLine(t *testing.T) {
	assert.Equal(t, "1,0.5,-2.25", string(CSVLine([]float32{1, 0.5, -2.25})))
}

func TestParseKNNLabels(t *testing.T) {
	labels, err := ParseKNNLabels([]byte(`{"predictions":[{"predicted_label":2.0,"labels":[2.0,1.0,4.0,100.0],"distances":[0.5,0.1,0.01,0]}]}`))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1, 4, 100}, labels)

	_, err = ParseKNNLabels([]byte(`{"predictions":[]}`))
	assert.ErrorIs(t, err, domain.ErrEmptyPredictions)

	_, err = ParseKNNLabels([]byte(`not json`))
	assert.Error(t, err)
}

func TestEndpointRanking(t *testing.T) {
	assert.Equal(t, []int{4, 1, 2}, EndpointRanking([]int{2, 1, 4, 100}))
	assert.Empty(t, EndpointRanking([]int{100}))
	assert.Nil(t, EndpointRanking(nil))
}

func TestCompareRankings(t *testing.T) {
	assert.NoError(t, CompareRankings([]int{4, 1, 2}, []int{4, 1, 2}))
	assert.ErrorIs(t, CompareRankings([]int{1, 4, 2}, []int{4, 1, 2}), domain.ErrPredictionMismatch)
	assert.ErrorIs(t, CompareRankings([]int{4, 1}, []int{4, 1, 2}), domain.ErrPredictionMismatch)
}
