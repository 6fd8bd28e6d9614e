package domain

import (
	"fmt"
	"path"
	"sync"
	"time"
)

const (
	classifierEndpointFormat = "intent-%d-endpoint"
	knnEndpointFormat        = "rec-knn-%d-endpoint"
	modelDirFormat           = "intent-model-%s"
	archiveFormat            = "model-%s.tar.gz"

	// ServingVersion is the TF Serving version directory. SageMaker looks
	// for it under the model name, KServe directly under the model mount.
	ServingVersion = "1"
)

// EndpointNamer derives endpoint names from wall-clock milliseconds.
// Names handed out by one namer are strictly increasing even when the clock
// has not moved between calls.
type EndpointNamer struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewEndpointNamer creates a namer. A nil clock means time.Now.
func NewEndpointNamer(now func() time.Time) *EndpointNamer {
	if now == nil {
		now = time.Now
	}
	return &EndpointNamer{now: now}
}

func (n *EndpointNamer) next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	ms := n.now().UnixMilli()
	if ms <= n.last {
		ms = n.last + 1
	}
	n.last = ms
	return ms
}

// Classifier returns a fresh classifier endpoint name
func (n *EndpointNamer) Classifier() string {
	return fmt.Sprintf(classifierEndpointFormat, n.next())
}

// KNN returns a fresh KNN endpoint name
func (n *EndpointNamer) KNN() string {
	return fmt.Sprintf(knnEndpointFormat, n.next())
}

// ModelDirName is the top-level directory inside the classifier archive
func ModelDirName(runID string) string {
	return fmt.Sprintf(modelDirFormat, runID)
}

// NamedModelRoot is the archive root for containers that expect
// {model name}/{version} at the top of the artifact
func NamedModelRoot(runID string) string {
	return path.Join(ModelDirName(runID), ServingVersion)
}

// ArchiveName is the file name of the classifier archive for a run
func ArchiveName(runID string) string {
	return fmt.Sprintf(archiveFormat, runID)
}
