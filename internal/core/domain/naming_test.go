package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEndpointNamer_Formats(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)
	n := NewEndpointNamer(func() time.Time { return fixed })

	assert.Equal(t, "intent-1700000000123-endpoint", n.Classifier())
	assert.Equal(t, "rec-knn-1700000000124-endpoint", n.KNN())
}

func TestEndpointNamer_StrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(5000)
	n := NewEndpointNamer(func() time.Time { return fixed })

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name := n.Classifier()
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
	}
	assert.Equal(t, "intent-5100-endpoint", n.Classifier())
}

func TestEndpointNamer_ClockGoesBackwards(t *testing.T) {
	now := time.UnixMilli(10_000)
	n := NewEndpointNamer(func() time.Time { return now })

	assert.Equal(t, "intent-10000-endpoint", n.Classifier())
	now = time.UnixMilli(9_000)
	assert.Equal(t, "intent-10001-endpoint", n.Classifier())
	now = time.UnixMilli(20_000)
	assert.Equal(t, "intent-20000-endpoint", n.Classifier())
}

func TestEndpointNamer_DefaultClock(t *testing.T) {
	n := NewEndpointNamer(nil)
	before := time.Now().UnixMilli()
	name := n.KNN()

	var ms int64
	_, err := fmt.Sscanf(name, "rec-knn-%d-endpoint", &ms)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, ms, before)
}

func TestArchiveNaming_Deterministic(t *testing.T) {
	assert.Equal(t, "intent-model-run42", ModelDirName("run42"))
	assert.Equal(t, "intent-model-run42/1", NamedModelRoot("run42"))
	assert.Equal(t, "model-run42.tar.gz", ArchiveName("run42"))
	assert.Equal(t, ArchiveName("run42"), ArchiveName("run42"))
}
