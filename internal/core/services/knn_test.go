package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"model-deployer/internal/core/domain"
	"model-deployer/internal/core/ports/output"
	"model-deployer/internal/testutil"
)

var knnOpts = KNNOptions{
	TrainingImage:    "174872318107.dkr.ecr.us-west-2.amazonaws.com/knn:1",
	TrainingInstance: "ml.m5.large",
	VolumeSizeGB:     30,
	Role:             "arn:aws:iam::123:role/sm",
	InstanceType:     "ml.m5.xlarge",
}

type knnFixture struct {
	store    *testutil.MockObjectStore
	trainer  *testutil.MockTrainer
	platform *testutil.MockHostingPlatform
	svc      *KNNService
}

func newKNNFixture() *knnFixture {
	f := &knnFixture{
		store:    new(testutil.MockObjectStore),
		trainer:  new(testutil.MockTrainer),
		platform: new(testutil.MockHostingPlatform),
	}
	f.platform.On("Name").Return("sagemaker")
	f.svc = NewKNNService(f.store, f.trainer, f.platform, fixedNamer(), nil, nil, knnOpts)
	return f
}

func (f *knnFixture) expectTrainAndDeploy() {
	f.trainer.On("Train", mock.Anything, mock.Anything).Return(&ports.TrainingResult{
		JobName:      "rec-knn-1000-training",
		Status:       "Completed",
		ModelDataURL: "s3://data/rec/rec-knn-1000-training/output/model.tar.gz",
	}, nil)
	f.platform.On("Deploy", mock.Anything, mock.Anything).Return(&ports.Endpoint{Name: "rec-knn-1000-endpoint"}, nil)
	f.store.On("Get", mock.Anything, "data", "rec/vectors.csv").
		Return(io.NopCloser(strings.NewReader(testVectorsCSV)), nil)
}

func TestKNNService_Deploy(t *testing.T) {
	f := newKNNFixture()
	f.trainer.On("Train", mock.Anything, mock.MatchedBy(func(spec ports.TrainingSpec) bool {
		return spec.JobName == "rec-knn-1000-training" &&
			spec.Image == knnOpts.TrainingImage &&
			spec.InstanceType == "ml.m5.large" &&
			spec.InstanceCount == 1 &&
			spec.TrainDataURL == "s3://data/rec/vectors.csv" &&
			spec.OutputPath == "s3://data/rec" &&
			spec.ContentType == "text/csv; label_size=1" &&
			spec.HyperParameters["k"] == "4" &&
			spec.HyperParameters["feature_dim"] == "2" &&
			spec.HyperParameters["index_metric"] == "COSINE" &&
			spec.HyperParameters["predictor_type"] == "classifier"
	})).Return(&ports.TrainingResult{
		JobName:      "rec-knn-1000-training",
		Status:       "Completed",
		ModelDataURL: "s3://data/rec/rec-knn-1000-training/output/model.tar.gz",
	}, nil)
	f.platform.On("Deploy", mock.Anything, mock.MatchedBy(func(spec ports.ModelSpec) bool {
		return spec.Name == "rec-knn-1000-endpoint" &&
			spec.ModelDataURL == "s3://data/rec/rec-knn-1000-training/output/model.tar.gz" &&
			spec.InstanceType == "ml.m5.xlarge"
	})).Return(&ports.Endpoint{Name: "rec-knn-1000-endpoint"}, nil)
	f.store.On("Get", mock.Anything, "data", "rec/vectors.csv").
		Return(io.NopCloser(strings.NewReader(testVectorsCSV)), nil)
	f.platform.On("Invoke", mock.Anything, "rec-knn-1000-endpoint", ports.InvokeRequest{
		ContentType: "text/csv",
		Accept:      "application/json; verbose=true",
		Body:        []byte("1,0"),
	}).Return([]byte(`{"predictions":[{"labels":[2.0,1.0,4.0,100.0]}]}`), nil)

	d, err := f.svc.Deploy(context.Background(), KNNRequest{
		VectorsURL: "s3://data/rec/vectors.csv",
		K:          4,
		FeatureDim: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusVerified, d.Status)
	assert.Equal(t, domain.KindKNN, d.Kind)
	assert.Equal(t, "rec-knn-1000-endpoint", d.EndpointName)
	assert.Equal(t, "rec-knn-1000-training", d.TrainingJobName)

	f.trainer.AssertExpectations(t)
	f.platform.AssertExpectations(t)
	f.store.AssertExpectations(t)
}

func TestKNNService_Deploy_RankingMismatch(t *testing.T) {
	f := newKNNFixture()
	f.expectTrainAndDeploy()
	f.platform.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Return([]byte(`{"predictions":[{"labels":[2,4,1,100]}]}`), nil)

	d, err := f.svc.Deploy(context.Background(), KNNRequest{VectorsURL: "s3://data/rec/vectors.csv", K: 4, FeatureDim: 2})
	assert.ErrorIs(t, err, domain.ErrPredictionMismatch)
	assert.Equal(t, domain.StatusFailed, d.Status)
}

func TestKNNService_Deploy_DimensionMismatch(t *testing.T) {
	f := newKNNFixture()
	f.expectTrainAndDeploy()

	_, err := f.svc.Deploy(context.Background(), KNNRequest{VectorsURL: "s3://data/rec/vectors.csv", K: 4})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	f.platform.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestKNNService_Deploy_TrainingFailed(t *testing.T) {
	f := newKNNFixture()
	f.trainer.On("Train", mock.Anything, mock.Anything).Return(nil, domain.ErrTrainingFailed)

	d, err := f.svc.Deploy(context.Background(), KNNRequest{VectorsURL: "s3://data/rec/vectors.csv"})
	assert.ErrorIs(t, err, domain.ErrTrainingFailed)
	assert.Equal(t, domain.StatusFailed, d.Status)
	f.platform.AssertNotCalled(t, "Deploy", mock.Anything, mock.Anything)
}

func TestKNNService_Deploy_DownloadError(t *testing.T) {
	f := newKNNFixture()
	f.trainer.On("Train", mock.Anything, mock.Anything).Return(&ports.TrainingResult{JobName: "j"}, nil)
	f.platform.On("Deploy", mock.Anything, mock.Anything).Return(&ports.Endpoint{}, nil)
	f.store.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	d, err := f.svc.Deploy(context.Background(), KNNRequest{VectorsURL: "s3://data/rec/vectors.csv"})
	assert.ErrorContains(t, err, "access denied")
	assert.Equal(t, domain.StatusFailed, d.Status)
}

func TestKNNService_Deploy_Validation(t *testing.T) {
	f := newKNNFixture()

	_, err := f.svc.Deploy(context.Background(), KNNRequest{VectorsURL: "https://data/x.csv"})
	assert.ErrorIs(t, err, domain.ErrInvalidObjectURL)

	_, err = f.svc.Deploy(context.Background(), KNNRequest{VectorsURL: "s3://data/x.csv", K: 1})
	assert.ErrorIs(t, err, domain.ErrInvalidHyperparameter)

	_, err = f.svc.Deploy(context.Background(), KNNRequest{VectorsURL: "s3://data/x.csv", FeatureDim: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidHyperparameter)

	f.trainer.AssertNotCalled(t, "Train", mock.Anything, mock.Anything)
}

func TestKNNService_Deploy_NoTrainer(t *testing.T) {
	platform := new(testutil.MockHostingPlatform)
	svc := NewKNNService(new(testutil.MockObjectStore), nil, platform, fixedNamer(), nil, nil, knnOpts)

	d, err := svc.Deploy(context.Background(), KNNRequest{VectorsURL: "s3://data/x.csv"})
	assert.ErrorIs(t, err, domain.ErrTrainingUnsupported)
	assert.Nil(t, d)
}

func TestKNNService_Deploy_NotConfigured(t *testing.T) {
	f := newKNNFixture()
	opts := knnOpts
	opts.Preflight = func() error { return errors.New("missing required settings: KNN_IMAGE") }
	svc := NewKNNService(f.store, f.trainer, f.platform, fixedNamer(), nil, nil, opts)

	d, err := svc.Deploy(context.Background(), KNNRequest{VectorsURL: "s3://data/x.csv"})
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
	assert.Nil(t, d)
	f.store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything, mock.Anything)
	f.trainer.AssertNotCalled(t, "Train", mock.Anything, mock.Anything)
}

func TestKNNRequest_Defaults(t *testing.T) {
	req := KNNRequest{}
	req.applyDefaults()

	assert.Equal(t, map[string]string{
		"k":              "10",
		"index_metric":   "COSINE",
		"feature_dim":    "48",
		"sample_size":    "65536",
		"predictor_type": "classifier",
	}, req.Hyperparameters())
}

func TestTrainingJobName(t *testing.T) {
	assert.Equal(t, "rec-knn-42-training", TrainingJobName("rec-knn-42-endpoint"))
	assert.Equal(t, "custom-training", TrainingJobName("custom"))
}
