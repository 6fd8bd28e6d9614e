package services

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/viant/vec/search"

	"model-deployer/internal/core/domain"
)

// VectorSet holds a labelled embedding dataset in the layout the managed KNN
// estimator trains on: one row per vector, label first, then the features.
type VectorSet struct {
	Labels  []int
	Vectors [][]float32
	Dim     int
}

// LoadVectors parses a label_size=1 CSV dataset
func LoadVectors(r io.Reader) (*VectorSet, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	set := &VectorSet{}
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read vectors line %d: %w", line, err)
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("vectors line %d: %w", line, domain.ErrDimensionMismatch)
		}

		label, err := parseLabel(record[0])
		if err != nil {
			return nil, fmt.Errorf("vectors line %d: parse label: %w", line, err)
		}
		vec := make([]float32, len(record)-1)
		for i, field := range record[1:] {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 32)
			if err != nil {
				return nil, fmt.Errorf("vectors line %d: parse feature %d: %w", line, i, err)
			}
			vec[i] = float32(v)
		}

		if set.Dim == 0 {
			set.Dim = len(vec)
		} else if len(vec) != set.Dim {
			return nil, fmt.Errorf("vectors line %d has %d features, want %d: %w",
				line, len(vec), set.Dim, domain.ErrDimensionMismatch)
		}
		set.Labels = append(set.Labels, label)
		set.Vectors = append(set.Vectors, vec)
	}

	if len(set.Vectors) == 0 {
		return nil, domain.ErrEmptyDataset
	}
	return set, nil
}

func parseLabel(s string) (int, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	return int(math.Round(v)), nil
}

// Rank returns the labels of the n rows most cosine-similar to row query,
// most similar first. The query row itself and zero-magnitude rows are
// never returned.
func (vs *VectorSet) Rank(query, n int) ([]int, error) {
	if query < 0 || query >= len(vs.Vectors) {
		return nil, fmt.Errorf("query row %d out of range", query)
	}
	q := search.Float32s(vs.Vectors[query])
	if q.Magnitude() == 0 {
		return nil, fmt.Errorf("query row %d has zero magnitude: %w", query, domain.ErrEmptyDataset)
	}

	type scored struct {
		row  int
		dist float32
	}
	candidates := make([]scored, 0, len(vs.Vectors)-1)
	for row, vec := range vs.Vectors {
		if row == query {
			continue
		}
		if search.Float32s(vec).Magnitude() == 0 {
			continue
		}
		candidates = append(candidates, scored{row: row, dist: q.CosineDistance(vec)})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].dist < candidates[b].dist
	})

	if n > len(candidates) {
		n = len(candidates)
	}
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		labels[i] = vs.Labels[candidates[i].row]
	}
	return labels, nil
}

// CSVLine renders a vector the way the endpoint's CSV deserializer expects it
func CSVLine(vec []float32) []byte {
	fields := make([]string, len(vec))
	for i, v := range vec {
		fields[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return []byte(strings.Join(fields, ","))
}

type knnResponse struct {
	Predictions []struct {
		Labels []float64 `json:"labels"`
	} `json:"predictions"`
}

// ParseKNNLabels extracts the verbose neighbor labels of the first prediction.
// The endpoint lists them from farthest to nearest.
func ParseKNNLabels(body []byte) ([]int, error) {
	var resp knnResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode knn response: %w", err)
	}
	if len(resp.Predictions) == 0 || len(resp.Predictions[0].Labels) == 0 {
		return nil, domain.ErrEmptyPredictions
	}
	labels := make([]int, len(resp.Predictions[0].Labels))
	for i, l := range resp.Predictions[0].Labels {
		labels[i] = int(math.Round(l))
	}
	return labels, nil
}

// EndpointRanking turns farthest-first endpoint labels into a nearest-first
// ranking without the query itself.
func EndpointRanking(labels []int) []int {
	if len(labels) == 0 {
		return nil
	}
	ranking := make([]int, 0, len(labels)-1)
	for i := len(labels) - 2; i >= 0; i-- {
		ranking = append(ranking, labels[i])
	}
	return ranking
}

// CompareRankings requires exact equality of the two rankings
func CompareRankings(endpoint, reference []int) error {
	if len(endpoint) != len(reference) {
		return fmt.Errorf("%w: endpoint %v, reference %v", domain.ErrPredictionMismatch, endpoint, reference)
	}
	for i := range endpoint {
		if endpoint[i] != reference[i] {
			return fmt.Errorf("%w: endpoint %v, reference %v", domain.ErrPredictionMismatch, endpoint, reference)
		}
	}
	return nil
}
