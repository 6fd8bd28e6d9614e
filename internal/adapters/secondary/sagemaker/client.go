package sagemaker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
	log "github.com/sirupsen/logrus"

	"model-deployer/internal/config"
	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
)

const (
	platformName      = "sagemaker"
	variantName       = "AllTraffic"
	trainChannel      = "train"
	maxTrainingRunSec = 24 * 60 * 60
	maxPollDelay      = 2 * time.Minute
)

// API is the part of the SageMaker control plane this adapter drives
type API interface {
	CreateModel(ctx context.Context, params *sagemaker.CreateModelInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateModelOutput, error)
	CreateEndpointConfig(ctx context.Context, params *sagemaker.CreateEndpointConfigInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointConfigOutput, error)
	CreateEndpoint(ctx context.Context, params *sagemaker.CreateEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateEndpointOutput, error)
	DescribeEndpoint(ctx context.Context, params *sagemaker.DescribeEndpointInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeEndpointOutput, error)
	CreateTrainingJob(ctx context.Context, params *sagemaker.CreateTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateTrainingJobOutput, error)
	DescribeTrainingJob(ctx context.Context, params *sagemaker.DescribeTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.DescribeTrainingJobOutput, error)
}

// RuntimeAPI is the part of the SageMaker runtime this adapter drives
type RuntimeAPI interface {
	InvokeEndpoint(ctx context.Context, params *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

type Client struct {
	api             API
	runtime         RuntimeAPI
	deployTimeout   time.Duration
	trainingTimeout time.Duration
	pollInterval    time.Duration
}

// NewSageMakerClient creates a client from the default AWS credential chain
func NewSageMakerClient(ctx context.Context, cfg *config.SageMakerConfig) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithAPI(sagemaker.NewFromConfig(awsCfg), sagemakerruntime.NewFromConfig(awsCfg), cfg), nil
}

// NewWithAPI wires already constructed SDK clients
func NewWithAPI(api API, runtime RuntimeAPI, cfg *config.SageMakerConfig) *Client {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 30 * time.Second
	}
	deployTimeout := cfg.DeployTimeout
	if deployTimeout <= 0 {
		deployTimeout = 60 * time.Minute
	}
	trainingTimeout := cfg.TrainingTimeout
	if trainingTimeout <= 0 {
		trainingTimeout = 120 * time.Minute
	}
	return &Client{
		api:             api,
		runtime:         runtime,
		deployTimeout:   deployTimeout,
		trainingTimeout: trainingTimeout,
		pollInterval:    poll,
	}
}

func (c *Client) Name() string {
	return platformName
}

// ArchiveRoot nests the SavedModel under its model name; the TF Serving
// container looks for {name}/{version} below /opt/ml/model.
func (c *Client) ArchiveRoot(runID string) string {
	return domain.NamedModelRoot(runID)
}

// Deploy creates model, endpoint config and endpoint under spec.Name and
// waits for the endpoint to reach InService.
func (c *Client) Deploy(ctx context.Context, spec output.ModelSpec) (*output.Endpoint, error) {
	tags := toTags(spec.Labels)

	_, err := c.api.CreateModel(ctx, &sagemaker.CreateModelInput{
		ModelName:        aws.String(spec.Name),
		ExecutionRoleArn: aws.String(spec.Role),
		PrimaryContainer: &types.ContainerDefinition{
			Image:        aws.String(spec.Image),
			ModelDataUrl: aws.String(spec.ModelDataURL),
		},
		Tags: tags,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create sagemaker model: %w", domain.ErrPlatform, err)
	}

	count := spec.InstanceCount
	if count <= 0 {
		count = 1
	}
	_, err = c.api.CreateEndpointConfig(ctx, &sagemaker.CreateEndpointConfigInput{
		EndpointConfigName: aws.String(spec.Name),
		ProductionVariants: []types.ProductionVariant{
			{
				VariantName:          aws.String(variantName),
				ModelName:            aws.String(spec.Name),
				InitialInstanceCount: aws.Int32(count),
				InstanceType:         types.ProductionVariantInstanceType(spec.InstanceType),
				InitialVariantWeight: aws.Float32(1),
			},
		},
		Tags: tags,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create sagemaker endpoint config: %w", domain.ErrPlatform, err)
	}

	created, err := c.api.CreateEndpoint(ctx, &sagemaker.CreateEndpointInput{
		EndpointName:       aws.String(spec.Name),
		EndpointConfigName: aws.String(spec.Name),
		Tags:               tags,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create sagemaker endpoint: %w", domain.ErrPlatform, err)
	}

	log.WithField("endpoint_name", spec.Name).Info("waiting for sagemaker endpoint")

	waiter := sagemaker.NewEndpointInServiceWaiter(c.api, func(o *sagemaker.EndpointInServiceWaiterOptions) {
		o.MinDelay = c.pollInterval
		o.MaxDelay = maxDelay(c.pollInterval)
	})
	described, err := waiter.WaitForOutput(ctx, &sagemaker.DescribeEndpointInput{
		EndpointName: aws.String(spec.Name),
	}, c.deployTimeout)
	if err != nil {
		return nil, c.endpointFailure(ctx, spec.Name, err)
	}

	arn := aws.ToString(created.EndpointArn)
	if described != nil && described.EndpointArn != nil {
		arn = aws.ToString(described.EndpointArn)
	}
	return &output.Endpoint{Name: spec.Name, ExternalID: arn}, nil
}

// endpointFailure explains a failed wait with the endpoint's own failure reason when there is one
func (c *Client) endpointFailure(ctx context.Context, name string, waitErr error) error {
	out, err := c.api.DescribeEndpoint(context.WithoutCancel(ctx), &sagemaker.DescribeEndpointInput{
		EndpointName: aws.String(name),
	})
	if err != nil || out.EndpointStatus != types.EndpointStatusFailed {
		return fmt.Errorf("wait for sagemaker endpoint: %w", errors.Join(domain.ErrEndpointNotReady, waitErr))
	}
	return fmt.Errorf("%w: %s", domain.ErrEndpointNotReady, aws.ToString(out.FailureReason))
}

// Train starts a training job for a built-in algorithm image and waits for it
func (c *Client) Train(ctx context.Context, spec output.TrainingSpec) (*output.TrainingResult, error) {
	count := spec.InstanceCount
	if count <= 0 {
		count = 1
	}
	volume := spec.VolumeSizeGB
	if volume <= 0 {
		volume = 30
	}

	_, err := c.api.CreateTrainingJob(ctx, &sagemaker.CreateTrainingJobInput{
		TrainingJobName: aws.String(spec.JobName),
		AlgorithmSpecification: &types.AlgorithmSpecification{
			TrainingImage:     aws.String(spec.Image),
			TrainingInputMode: types.TrainingInputModeFile,
		},
		RoleArn:         aws.String(spec.Role),
		HyperParameters: spec.HyperParameters,
		InputDataConfig: []types.Channel{
			{
				ChannelName: aws.String(trainChannel),
				ContentType: aws.String(spec.ContentType),
				DataSource: &types.DataSource{
					S3DataSource: &types.S3DataSource{
						S3DataType:             types.S3DataTypeS3Prefix,
						S3Uri:                  aws.String(spec.TrainDataURL),
						S3DataDistributionType: types.S3DataDistributionFullyReplicated,
					},
				},
			},
		},
		OutputDataConfig: &types.OutputDataConfig{
			S3OutputPath: aws.String(spec.OutputPath),
		},
		ResourceConfig: &types.ResourceConfig{
			InstanceCount:  aws.Int32(count),
			InstanceType:   types.TrainingInstanceType(spec.InstanceType),
			VolumeSizeInGB: aws.Int32(volume),
		},
		StoppingCondition: &types.StoppingCondition{
			MaxRuntimeInSeconds: aws.Int32(maxTrainingRunSec),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create sagemaker training job: %w", domain.ErrPlatform, err)
	}

	log.WithField("training_job", spec.JobName).Info("waiting for sagemaker training job")

	waiter := sagemaker.NewTrainingJobCompletedOrStoppedWaiter(c.api, func(o *sagemaker.TrainingJobCompletedOrStoppedWaiterOptions) {
		o.MinDelay = c.pollInterval
		o.MaxDelay = maxDelay(c.pollInterval)
	})
	out, err := waiter.WaitForOutput(ctx, &sagemaker.DescribeTrainingJobInput{
		TrainingJobName: aws.String(spec.JobName),
	}, c.trainingTimeout)
	if err != nil {
		// A Failed job ends the waiter with an error; describe it once more
		// for the reason.
		out, err = c.api.DescribeTrainingJob(context.WithoutCancel(ctx), &sagemaker.DescribeTrainingJobInput{
			TrainingJobName: aws.String(spec.JobName),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: describe sagemaker training job: %w", domain.ErrPlatform, err)
		}
	}

	if out.TrainingJobStatus != types.TrainingJobStatusCompleted {
		return nil, fmt.Errorf("%w: job %s is %s: %s", domain.ErrTrainingFailed,
			spec.JobName, out.TrainingJobStatus, aws.ToString(out.FailureReason))
	}
	if out.ModelArtifacts == nil || out.ModelArtifacts.S3ModelArtifacts == nil {
		return nil, fmt.Errorf("%w: job %s produced no model artifacts", domain.ErrTrainingFailed, spec.JobName)
	}

	return &output.TrainingResult{
		JobName:      spec.JobName,
		Status:       string(out.TrainingJobStatus),
		ModelDataURL: aws.ToString(out.ModelArtifacts.S3ModelArtifacts),
	}, nil
}

// Invoke sends one request to a deployed endpoint
func (c *Client) Invoke(ctx context.Context, endpointName string, req output.InvokeRequest) ([]byte, error) {
	in := &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpointName),
		Body:         req.Body,
		ContentType:  aws.String(req.ContentType),
	}
	if req.Accept != "" {
		in.Accept = aws.String(req.Accept)
	}

	out, err := c.runtime.InvokeEndpoint(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%w: invoke sagemaker endpoint %s: %w", domain.ErrPlatform, endpointName, err)
	}
	return out.Body, nil
}

func toTags(labels map[string]string) []types.Tag {
	if len(labels) == 0 {
		return nil
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]types.Tag, 0, len(keys))
	for _, k := range keys {
		tags = append(tags, types.Tag{Key: aws.String(k), Value: aws.String(labels[k])})
	}
	return tags
}

func maxDelay(poll time.Duration) time.Duration {
	if poll > maxPollDelay {
		return poll
	}
	return maxPollDelay
}

// Ensure interface compliance
var (
	_ output.HostingPlatform = (*Client)(nil)
	_ output.Trainer         = (*Client)(nil)
)
