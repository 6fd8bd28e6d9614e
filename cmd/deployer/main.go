package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"model-deployer/internal/app"
	"model-deployer/internal/config"
	"model-deployer/internal/core/domain"
	"model-deployer/internal/core/services"
	"model-deployer/internal/logging"
)

const usage = `usage: deployer <command> [flags]

commands:
  classifier  archive a SavedModel directory, deploy it and run a smoke inference
  knn         train a KNN index on a vector dataset, deploy it and verify its ranking
`

var (
	errUsage = errors.New("invalid usage")
	errHelp  = errors.New("help requested")
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errHelp) {
			return
		}
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		log.WithError(err).Error("deployment failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "classifier":
		return runClassifier(ctx, args[1:], out)
	case "knn":
		return runKNN(ctx, args[1:], out)
	case "-h", "--help", "help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(fs *pflag.FlagSet) *map[string]string {
	fs.String("platform", "", "hosting platform (sagemaker or kserve)")
	fs.String("log-level", "", "log level")
	fs.String("bucket", "", "object storage bucket for artifacts")
	fs.String("prefix", "", "object key prefix for artifacts")
	return fs.StringToString("label", nil, "label to attach to the deployment (key=value, repeatable)")
}

func runClassifier(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("classifier", pflag.ContinueOnError)
	modelDir := fs.String("model-dir", "", "exported SavedModel directory")
	runID := fs.String("run-id", "", "run identifier used to name the artifact (generated when empty)")
	labels := commonFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *modelDir == "" {
		return fmt.Errorf("%w: --model-dir is required", errUsage)
	}

	cfg, err := setup(fs)
	if err != nil {
		return err
	}
	if err := cfg.RequireClassifier(); err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.Classifier.Deploy(ctx, services.ClassifierRequest{
		RunID:    *runID,
		ModelDir: *modelDir,
		Labels:   *labels,
	})
	if err != nil {
		return err
	}

	printDeployment(out, d)
	return nil
}

func runKNN(ctx context.Context, args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("knn", pflag.ContinueOnError)
	vectors := fs.String("vectors", "", "s3:// URL of the training vectors CSV")
	k := fs.Int("k", services.DefaultK, "number of neighbors")
	featureDim := fs.Int("feature-dim", services.DefaultFeatureDim, "vector dimension")
	sampleSize := fs.Int("sample-size", services.DefaultSampleSize, "number of vectors sampled for the index")
	labels := commonFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *vectors == "" {
		return fmt.Errorf("%w: --vectors is required", errUsage)
	}

	cfg, err := setup(fs)
	if err != nil {
		return err
	}
	if err := cfg.RequireKNN(); err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.KNN.Deploy(ctx, services.KNNRequest{
		VectorsURL: *vectors,
		K:          *k,
		FeatureDim: *featureDim,
		SampleSize: *sampleSize,
		Labels:     *labels,
	})
	if err != nil {
		return err
	}

	printDeployment(out, d)
	return nil
}

// parseFlags reports -h as errHelp, which main treats as success; pflag has already printed the flag help.
func parseFlags(fs *pflag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return errHelp
	}
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	return nil
}

func setup(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.LoadWithFlags(fs)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logging.Init(&cfg.Logger)
	return cfg, nil
}

func printDeployment(out io.Writer, d *domain.Deployment) {
	fmt.Fprintf(out, "deployment:  %s\n", d.ID)
	fmt.Fprintf(out, "endpoint:    %s\n", d.EndpointName)
	if d.ModelDataURL != "" {
		fmt.Fprintf(out, "model data:  %s\n", d.ModelDataURL)
	}
	if d.TrainingJobName != "" {
		fmt.Fprintf(out, "training:    %s\n", d.TrainingJobName)
	}
	fmt.Fprintf(out, "status:      %s\n", d.Status)
}
