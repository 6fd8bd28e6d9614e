package ports

import (
	"context"
)

// ModelSpec describes a model to register and serve behind one endpoint.
// The hosting platform reuses Name for every resource it creates.
type ModelSpec struct {
	Name          string
	Image         string
	ModelDataURL  string
	Role          string
	InstanceType  string
	InstanceCount int32
	Framework     string // model format hint for runtimes that need one, e.g. "tensorflow"
	Labels        map[string]string
}

// Endpoint represents a served model once it accepts traffic
type Endpoint struct {
	Name       string
	ExternalID string // platform ARN or K8s resource UID
	URL        string // inference URL, when the platform exposes one
}

// InvokeRequest is a single raw inference call
type InvokeRequest struct {
	ContentType string
	Accept      string
	Body        []byte
}

// HostingPlatform defines the contract for managed model serving
type HostingPlatform interface {
	// Name identifies the platform in deployment records, e.g. "sagemaker"
	Name() string

	// ArchiveRoot is the directory classifier archive entries are placed
	// under so the serving container finds the SavedModel version directory
	ArchiveRoot(runID string) string

	// Deploy registers the model, creates its endpoint and blocks until the
	// endpoint is in service
	Deploy(ctx context.Context, spec ModelSpec) (*Endpoint, error)

	// Invoke sends one inference request and returns the raw response body
	Invoke(ctx context.Context, endpointName string, req InvokeRequest) ([]byte, error)
}

// TrainingSpec describes a managed training job for a built-in algorithm
type TrainingSpec struct {
	JobName         string
	Image           string
	Role            string
	InstanceType    string
	InstanceCount   int32
	VolumeSizeGB    int32
	HyperParameters map[string]string
	TrainDataURL    string
	ContentType     string
	OutputPath      string
}

// TrainingResult is the outcome of a finished training job
type TrainingResult struct {
	JobName      string
	Status       string
	ModelDataURL string
}

// Trainer defines the contract for managed model fitting
type Trainer interface {
	// Train starts the job and blocks until it completes. A job that stops
	// in any state other than completed is an error.
	Train(ctx context.Context, spec TrainingSpec) (*TrainingResult, error)
}
