package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
)

const (
	DefaultK          = 10
	DefaultFeatureDim = 48
	DefaultSampleSize = 65536

	contentTypeCSV     = "text/csv"
	trainContentType   = "text/csv; label_size=1"
	knnAccept          = "application/json; verbose=true"
	knnIndexMetric     = "COSINE"
	knnPredictorType   = "classifier"
	referenceQueryRow  = 0
	trainingJobSuffix  = "-training"
	endpointNameSuffix = "-endpoint"
)

// KNNOptions carries the externally configured training and hosting parameters
type KNNOptions struct {
	TrainingImage    string
	TrainingInstance string
	VolumeSizeGB     int32
	Role             string
	InstanceType     string
	Preflight        func() error // reports missing settings before any remote call
}

// KNNService fits the managed nearest-neighbor estimator over a vector
// dataset, serves it and checks one query against a local exact ranking.
type KNNService struct {
	store    output.ObjectStore
	trainer  output.Trainer
	platform output.HostingPlatform
	namer    *domain.EndpointNamer
	opts     KNNOptions
	rec      recorder
}

func NewKNNService(
	store output.ObjectStore,
	trainer output.Trainer,
	platform output.HostingPlatform,
	namer *domain.EndpointNamer,
	repo output.DeploymentRepository,
	metrics output.DeploymentMetrics,
	opts KNNOptions,
) *KNNService {
	return &KNNService{
		store:    store,
		trainer:  trainer,
		platform: platform,
		namer:    namer,
		opts:     opts,
		rec:      recorder{repo: repo, metrics: metrics},
	}
}

type KNNRequest struct {
	VectorsURL string
	K          int
	FeatureDim int
	SampleSize int
	Labels     map[string]string
}

func (r *KNNRequest) applyDefaults() {
	if r.K == 0 {
		r.K = DefaultK
	}
	if r.FeatureDim == 0 {
		r.FeatureDim = DefaultFeatureDim
	}
	if r.SampleSize == 0 {
		r.SampleSize = DefaultSampleSize
	}
}

// Hyperparameters renders the estimator settings the way the training API takes them
func (r KNNRequest) Hyperparameters() map[string]string {
	return map[string]string{
		"k":              strconv.Itoa(r.K),
		"index_metric":   knnIndexMetric,
		"feature_dim":    strconv.Itoa(r.FeatureDim),
		"sample_size":    strconv.Itoa(r.SampleSize),
		"predictor_type": knnPredictorType,
	}
}

// Deploy runs the KNN pipeline and returns the deployment naming the endpoint
func (s *KNNService) Deploy(ctx context.Context, req KNNRequest) (*domain.Deployment, error) {
	if s.trainer == nil {
		return nil, domain.ErrTrainingUnsupported
	}
	if err := preflight(s.opts.Preflight); err != nil {
		return nil, err
	}
	req.applyDefaults()
	if req.K < 2 || req.FeatureDim <= 0 || req.SampleSize <= 0 {
		return nil, domain.ErrInvalidHyperparameter
	}
	vectors, err := domain.ParseObjectURL(req.VectorsURL)
	if err != nil {
		return nil, err
	}

	d, err := domain.NewDeployment(domain.KindKNN, domain.NewRunID(), s.platform.Name())
	if err != nil {
		return nil, err
	}
	for k, v := range req.Labels {
		d.Labels[k] = v
	}
	d.SetEndpoint(s.namer.KNN())
	log.WithField("endpoint_name", d.EndpointName).Info("endpoint name assigned")

	start := time.Now()
	s.rec.begin(ctx, d)
	err = s.run(ctx, d, req, vectors)
	s.rec.finish(ctx, d, start, err)
	return d, err
}

func (s *KNNService) run(ctx context.Context, d *domain.Deployment, req KNNRequest, vectors domain.ObjectURL) error {
	// 1. Fit
	stepStart := time.Now()
	result, err := s.trainer.Train(ctx, output.TrainingSpec{
		JobName:         TrainingJobName(d.EndpointName),
		Image:           s.opts.TrainingImage,
		Role:            s.opts.Role,
		InstanceType:    s.opts.TrainingInstance,
		InstanceCount:   1,
		VolumeSizeGB:    s.opts.VolumeSizeGB,
		HyperParameters: req.Hyperparameters(),
		TrainDataURL:    vectors.String(),
		ContentType:     trainContentType,
		OutputPath:      vectors.Parent().String(),
	})
	if err != nil {
		return fmt.Errorf("train knn model: %w", err)
	}
	s.rec.step(d.Kind, "train", stepStart)
	d.SetTrainingJob(result.JobName)
	d.SetModelData(result.ModelDataURL)
	s.rec.save(ctx, d)

	// 2. Serve
	stepStart = time.Now()
	if _, err := s.platform.Deploy(ctx, output.ModelSpec{
		Name:          d.EndpointName,
		Image:         s.opts.TrainingImage,
		ModelDataURL:  result.ModelDataURL,
		Role:          s.opts.Role,
		InstanceType:  s.opts.InstanceType,
		InstanceCount: 1,
		Labels:        d.Labels,
	}); err != nil {
		return fmt.Errorf("deploy knn endpoint: %w", err)
	}
	s.rec.step(d.Kind, "deploy", stepStart)
	d.MarkDeployed()
	s.rec.save(ctx, d)

	// 3. Local reference for the first key
	set, err := s.loadVectors(ctx, vectors)
	if err != nil {
		return err
	}
	if set.Dim != req.FeatureDim {
		return fmt.Errorf("dataset has %d features, estimator expects %d: %w",
			set.Dim, req.FeatureDim, domain.ErrDimensionMismatch)
	}
	reference, err := set.Rank(referenceQueryRow, req.K-1)
	if err != nil {
		return fmt.Errorf("rank reference neighbors: %w", err)
	}

	// 4. Same query against the endpoint
	resp, err := s.platform.Invoke(ctx, d.EndpointName, output.InvokeRequest{
		ContentType: contentTypeCSV,
		Accept:      knnAccept,
		Body:        CSVLine(set.Vectors[referenceQueryRow]),
	})
	if err != nil {
		return fmt.Errorf("invoke knn endpoint: %w", err)
	}
	labels, err := ParseKNNLabels(resp)
	if err != nil {
		return err
	}
	ranking := EndpointRanking(labels)

	log.WithFields(log.Fields{
		"endpoint":  ranking,
		"reference": reference,
	}).Info("knn rankings")

	if err := CompareRankings(ranking, reference); err != nil {
		return err
	}
	d.MarkVerified()
	return nil
}

func (s *KNNService) loadVectors(ctx context.Context, vectors domain.ObjectURL) (*VectorSet, error) {
	rc, err := s.store.Get(ctx, vectors.Bucket, vectors.Key)
	if err != nil {
		return nil, fmt.Errorf("download vectors: %w", err)
	}
	defer rc.Close()

	set, err := LoadVectors(rc)
	if err != nil {
		return nil, fmt.Errorf("load vectors: %w", err)
	}
	return set, nil
}

// TrainingJobName derives the training job name from the endpoint name
func TrainingJobName(endpointName string) string {
	return strings.TrimSuffix(endpointName, endpointNameSuffix) + trainingJobSuffix
}
