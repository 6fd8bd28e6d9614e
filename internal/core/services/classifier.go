package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeGzip    = "application/gzip"
	classifierFormat   = "tensorflow"
	smokeTestInputSize = 20
)

// ClassifierOptions carries the externally configured hosting parameters
type ClassifierOptions struct {
	Image         string
	Role          string
	InstanceType  string
	StoragePrefix string
	WorkDir       string
	Preflight     func() error // reports missing settings before any work starts
}

// ClassifierService packages a trained classifier, serves it and runs one
// smoke-test inference against the new endpoint.
type ClassifierService struct {
	store    output.ObjectStore
	platform output.HostingPlatform
	namer    *domain.EndpointNamer
	opts     ClassifierOptions
	rec      recorder
}

func NewClassifierService(
	store output.ObjectStore,
	platform output.HostingPlatform,
	namer *domain.EndpointNamer,
	repo output.DeploymentRepository,
	metrics output.DeploymentMetrics,
	opts ClassifierOptions,
) *ClassifierService {
	return &ClassifierService{
		store:    store,
		platform: platform,
		namer:    namer,
		opts:     opts,
		rec:      recorder{repo: repo, metrics: metrics},
	}
}

type ClassifierRequest struct {
	RunID    string
	ModelDir string
	Labels   map[string]string
}

// Deploy runs the classifier pipeline. The returned deployment is non-nil
// whenever a run was started, including failed runs.
func (s *ClassifierService) Deploy(ctx context.Context, req ClassifierRequest) (*domain.Deployment, error) {
	if err := preflight(s.opts.Preflight); err != nil {
		return nil, err
	}
	runID := req.RunID
	if runID == "" {
		runID = domain.NewRunID()
	}

	d, err := domain.NewDeployment(domain.KindClassifier, runID, s.platform.Name())
	if err != nil {
		return nil, err
	}
	for k, v := range req.Labels {
		d.Labels[k] = v
	}

	start := time.Now()
	s.rec.begin(ctx, d)
	err = s.run(ctx, d, req.ModelDir)
	s.rec.finish(ctx, d, start, err)
	return d, err
}

func (s *ClassifierService) run(ctx context.Context, d *domain.Deployment, modelDir string) error {
	// 1. Package and upload
	stepStart := time.Now()
	url, err := s.upload(ctx, d.RunID, modelDir)
	if err != nil {
		return err
	}
	s.rec.step(d.Kind, "upload", stepStart)
	d.SetModelData(url)
	log.WithField("model_data_url", url).Info("model archive uploaded")

	// 2. Name the endpoint
	d.SetEndpoint(s.namer.Classifier())
	log.WithField("endpoint_name", d.EndpointName).Info("endpoint name assigned")
	s.rec.save(ctx, d)

	// 3. Serve
	stepStart = time.Now()
	if _, err := s.platform.Deploy(ctx, output.ModelSpec{
		Name:          d.EndpointName,
		Image:         s.opts.Image,
		ModelDataURL:  url,
		Role:          s.opts.Role,
		InstanceType:  s.opts.InstanceType,
		InstanceCount: 1,
		Framework:     classifierFormat,
		Labels:        d.Labels,
	}); err != nil {
		return fmt.Errorf("deploy classifier endpoint: %w", err)
	}
	s.rec.step(d.Kind, "deploy", stepStart)
	d.MarkDeployed()
	s.rec.save(ctx, d)

	// 4. Smoke test
	body, err := json.Marshal(classifierPayload{Instances: [][]int{SmokeTestInstance()}})
	if err != nil {
		return fmt.Errorf("encode test input: %w", err)
	}
	resp, err := s.platform.Invoke(ctx, d.EndpointName, output.InvokeRequest{
		ContentType: contentTypeJSON,
		Accept:      contentTypeJSON,
		Body:        body,
	})
	if err != nil {
		return fmt.Errorf("invoke classifier endpoint: %w", err)
	}
	if err := VerifyClassifierResponse(resp); err != nil {
		return err
	}

	d.MarkVerified()
	return nil
}

func (s *ClassifierService) upload(ctx context.Context, runID, modelDir string) (string, error) {
	workDir, err := os.MkdirTemp(s.opts.WorkDir, "model-archive-")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	archivePath, err := BuildArchive(modelDir, runID, s.platform.ArchiveRoot(runID), workDir)
	if err != nil {
		return "", err
	}

	key := domain.JoinKey(s.opts.StoragePrefix, domain.ArchiveName(runID))
	url, err := s.store.PutFile(ctx, key, archivePath, contentTypeGzip)
	if err != nil {
		return "", fmt.Errorf("upload model archive: %w", err)
	}
	return url, nil
}

type classifierPayload struct {
	Instances [][]int `json:"instances"`
}

// SmokeTestInstance is the fixed token sequence sent to a fresh classifier
// endpoint: 1..5 followed by zero padding.
func SmokeTestInstance() []int {
	in := make([]int, smokeTestInputSize)
	for i := 0; i < 5; i++ {
		in[i] = i + 1
	}
	return in
}

// VerifyClassifierResponse requires a non-empty predictions array
func VerifyClassifierResponse(body []byte) error {
	var resp struct {
		Predictions []json.RawMessage `json:"predictions"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("decode classifier response: %w", err)
	}
	if len(resp.Predictions) == 0 {
		return domain.ErrEmptyPredictions
	}
	return nil
}
