package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	PlatformSageMaker = "sagemaker"
	PlatformKServe    = "kserve"
)

type Config struct {
	Server     ServerConfig
	Logger     LoggerConfig
	Deploy     DeployConfig
	SageMaker  SageMakerConfig
	Storage    StorageConfig
	Kubernetes KubernetesConfig
	Database   DatabaseConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type LoggerConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
}

// DeployConfig holds the hosting parameters that are configured outside the code
type DeployConfig struct {
	Platform         string
	Image            string // DOCKER_IMAGE
	Role             string // IAM_SAGEMAKER_ROLE
	InstanceType     string // SAGEMAKER_INSTANCE
	KNNImage         string
	TrainingInstance string
	VolumeSizeGB     int
	WorkDir          string
}

type SageMakerConfig struct {
	Region          string
	DeployTimeout   time.Duration
	TrainingTimeout time.Duration
	PollInterval    time.Duration
}

type StorageConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	Prefix    string
	UseSSL    bool
	AccessKey string
	SecretKey string
}

type KubernetesConfig struct {
	InCluster      bool
	KubeConfigPath string
	DefaultNS      string
	ServiceAccount string
	ReadyTimeout   time.Duration
	PollInterval   time.Duration
}

type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders a libpq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// flagKeys maps command-line flags onto the settings they override.
var flagKeys = map[string]string{
	"platform":  "HOSTING_PLATFORM",
	"log-level": "LOGGER_LEVEL",
	"bucket":    "STORAGE_BUCKET",
	"prefix":    "STORAGE_PREFIX",
}

func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with explicitly set flags taking precedence over the environment.
func LoadWithFlags(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")
	v.SetDefault("LOGGER_FILE", "")
	v.SetDefault("LOGGER_MAX_SIZE_MB", 100)
	v.SetDefault("LOGGER_MAX_BACKUPS", 3)

	v.SetDefault("HOSTING_PLATFORM", PlatformSageMaker)
	v.SetDefault("KNN_IMAGE", "174872318107.dkr.ecr.us-west-2.amazonaws.com/knn:1")
	v.SetDefault("KNN_TRAINING_INSTANCE", "ml.m5.large")
	v.SetDefault("KNN_VOLUME_GB", 30)
	v.SetDefault("ARTIFACT_WORK_DIR", "")

	v.SetDefault("AWS_REGION", "us-west-2")
	v.SetDefault("DEPLOY_WAIT_TIMEOUT", "60m")
	v.SetDefault("TRAINING_WAIT_TIMEOUT", "120m")
	v.SetDefault("SAGEMAKER_POLL_INTERVAL", "30s")

	v.SetDefault("STORAGE_ENDPOINT", "s3.amazonaws.com")
	v.SetDefault("STORAGE_USE_SSL", true)

	v.SetDefault("KUBERNETES_IN_CLUSTER", false)
	v.SetDefault("KUBERNETES_DEFAULT_NAMESPACE", "model-serving")
	v.SetDefault("KUBERNETES_READY_TIMEOUT", "15m")
	v.SetDefault("KUBERNETES_POLL_INTERVAL", "10s")

	v.SetDefault("DATABASE_ENABLED", false)
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_NAME", "model_deployer")
	v.SetDefault("DATABASE_SSL_MODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")

	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("METRICS_NAMESPACE", "model_deployer")

	// Env
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	platform := strings.ToLower(v.GetString("HOSTING_PLATFORM"))
	if platform != PlatformSageMaker && platform != PlatformKServe {
		return nil, fmt.Errorf("unsupported HOSTING_PLATFORM %q", platform)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Logger: LoggerConfig{
			Level:      v.GetString("LOGGER_LEVEL"),
			Format:     v.GetString("LOGGER_FORMAT"),
			File:       v.GetString("LOGGER_FILE"),
			MaxSizeMB:  v.GetInt("LOGGER_MAX_SIZE_MB"),
			MaxBackups: v.GetInt("LOGGER_MAX_BACKUPS"),
		},
		Deploy: DeployConfig{
			Platform:         platform,
			Image:            v.GetString("DOCKER_IMAGE"),
			Role:             v.GetString("IAM_SAGEMAKER_ROLE"),
			InstanceType:     v.GetString("SAGEMAKER_INSTANCE"),
			KNNImage:         v.GetString("KNN_IMAGE"),
			TrainingInstance: v.GetString("KNN_TRAINING_INSTANCE"),
			VolumeSizeGB:     v.GetInt("KNN_VOLUME_GB"),
			WorkDir:          v.GetString("ARTIFACT_WORK_DIR"),
		},
		SageMaker: SageMakerConfig{
			Region:          v.GetString("AWS_REGION"),
			DeployTimeout:   durationOr(v, "DEPLOY_WAIT_TIMEOUT", 60*time.Minute),
			TrainingTimeout: durationOr(v, "TRAINING_WAIT_TIMEOUT", 120*time.Minute),
			PollInterval:    durationOr(v, "SAGEMAKER_POLL_INTERVAL", 30*time.Second),
		},
		Storage: StorageConfig{
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			Region:    v.GetString("STORAGE_REGION"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
		},
		Kubernetes: KubernetesConfig{
			InCluster:      v.GetBool("KUBERNETES_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBERNETES_KUBECONFIG"),
			DefaultNS:      v.GetString("KUBERNETES_DEFAULT_NAMESPACE"),
			ServiceAccount: v.GetString("KUBERNETES_SERVICE_ACCOUNT"),
			ReadyTimeout:   durationOr(v, "KUBERNETES_READY_TIMEOUT", 15*time.Minute),
			PollInterval:   durationOr(v, "KUBERNETES_POLL_INTERVAL", 10*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:         v.GetBool("DATABASE_ENABLED"),
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSL_MODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: durationOr(v, "DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled:   v.GetBool("METRICS_ENABLED"),
			Namespace: v.GetString("METRICS_NAMESPACE"),
		},
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = cfg.SageMaker.Region
	}

	return cfg, nil
}

func durationOr(v *viper.Viper, key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

// RequireClassifier reports the settings a classifier deployment cannot run without.
// KServe takes the serving image and capacity from the cluster, so only the
// artifact bucket is needed there.
func (c *Config) RequireClassifier() error {
	if c.Deploy.Platform == PlatformKServe {
		return requireSet(map[string]string{
			"STORAGE_BUCKET": c.Storage.Bucket,
		})
	}
	return requireSet(map[string]string{
		"DOCKER_IMAGE":       c.Deploy.Image,
		"IAM_SAGEMAKER_ROLE": c.Deploy.Role,
		"SAGEMAKER_INSTANCE": c.Deploy.InstanceType,
		"STORAGE_BUCKET":     c.Storage.Bucket,
	})
}

// RequireKNN reports the settings a KNN deployment cannot run without
func (c *Config) RequireKNN() error {
	return requireSet(map[string]string{
		"IAM_SAGEMAKER_ROLE": c.Deploy.Role,
		"SAGEMAKER_INSTANCE": c.Deploy.InstanceType,
		"KNN_IMAGE":          c.Deploy.KNNImage,
	})
}

func requireSet(values map[string]string) error {
	var missing []string
	for key, val := range values {
		if val == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
}
