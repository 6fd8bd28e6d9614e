package kserve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"model-deployer/internal/config"
	"model-deployer/internal/core/domain"
	output "model-deployer/internal/core/ports/output"
)

const (
	platformName = "kserve"
	labelPrefix  = "model-deployer.io/"
)

var inferenceServiceGVR = schema.GroupVersionResource{
	Group:    "serving.kserve.io",
	Version:  "v1beta1",
	Resource: "inferenceservices",
}

// status of a KServe InferenceService
type status struct {
	URL   string
	Ready bool
	Error string
}

type kserveClient struct {
	client         dynamic.Interface
	http           *http.Client
	namespace      string
	serviceAccount string
	readyTimeout   time.Duration
	pollInterval   time.Duration
}

// NewKServeClient creates a KServe hosting adapter
func NewKServeClient(cfg *config.KubernetesConfig) (output.HostingPlatform, error) {
	var restCfg *rest.Config
	var err error

	if cfg.InCluster {
		restCfg, err = rest.InClusterConfig()
	} else if cfg.KubeConfigPath != "" {
		restCfg, err = clientcmd.BuildConfigFromFlags("", cfg.KubeConfigPath)
	} else {
		// Try default kubeconfig location
		home, _ := os.UserHomeDir()
		kubeconfig := filepath.Join(home, ".kube", "config")
		restCfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
	}
	if err != nil {
		return nil, fmt.Errorf("build k8s config: %w", err)
	}

	client, err := dynamic.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create dynamic client: %w", err)
	}

	return newKServeClient(client, &http.Client{Timeout: 60 * time.Second}, cfg), nil
}

func newKServeClient(client dynamic.Interface, httpClient *http.Client, cfg *config.KubernetesConfig) *kserveClient {
	namespace := cfg.DefaultNS
	if namespace == "" {
		namespace = "model-serving"
	}
	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &kserveClient{
		client:         client,
		http:           httpClient,
		namespace:      namespace,
		serviceAccount: cfg.ServiceAccount,
		readyTimeout:   timeout,
		pollInterval:   interval,
	}
}

func (c *kserveClient) Name() string {
	return platformName
}

// ArchiveRoot puts the version directory at the top of the archive. The
// storage initializer unpacks it into /mnt/models, which TF Serving uses as
// its model base path.
func (c *kserveClient) ArchiveRoot(string) string {
	return domain.ServingVersion
}

// Deploy creates the InferenceService and polls until KServe reports it Ready
func (c *kserveClient) Deploy(ctx context.Context, spec output.ModelSpec) (*output.Endpoint, error) {
	obj := c.buildInferenceServiceCR(spec)

	created, err := c.client.Resource(inferenceServiceGVR).
		Namespace(c.namespace).
		Create(ctx, obj, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: create kserve inferenceservice: %w", domain.ErrPlatform, err)
	}

	log.WithFields(log.Fields{
		"endpoint_name": spec.Name,
		"namespace":     c.namespace,
	}).Info("waiting for kserve inferenceservice")

	var last *status
	err = wait.PollUntilContextTimeout(ctx, c.pollInterval, c.readyTimeout, true, func(ctx context.Context) (bool, error) {
		st, err := c.getStatus(ctx, spec.Name)
		if err != nil {
			return false, err
		}
		last = st
		return st.Ready, nil
	})
	if err != nil {
		// Ready=False is reported while revisions roll out, so the message
		// only matters once the deadline has passed.
		if last != nil && last.Error != "" {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrEndpointNotReady, last.Error, err)
		}
		return nil, fmt.Errorf("wait for kserve inferenceservice: %w", errors.Join(domain.ErrEndpointNotReady, err))
	}

	return &output.Endpoint{
		Name:       spec.Name,
		ExternalID: string(created.GetUID()),
		URL:        last.URL,
	}, nil
}

// Invoke posts to the V1 predict route of the InferenceService
func (c *kserveClient) Invoke(ctx context.Context, endpointName string, req output.InvokeRequest) ([]byte, error) {
	st, err := c.getStatus(ctx, endpointName)
	if err != nil {
		return nil, err
	}
	if !st.Ready || st.URL == "" {
		return nil, fmt.Errorf("invoke %s: %w", endpointName, domain.ErrEndpointNotReady)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predict", strings.TrimSuffix(st.URL, "/"), endpointName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	httpReq.Header.Set("Content-Type", req.ContentType)
	if req.Accept != "" {
		httpReq.Header.Set("Accept", req.Accept)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: predict %s: %w", domain.ErrPlatform, endpointName, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read predict response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: predict %s: status %d: %s", domain.ErrPlatform, endpointName, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *kserveClient) getStatus(ctx context.Context, name string) (*status, error) {
	obj, err := c.client.Resource(inferenceServiceGVR).
		Namespace(c.namespace).
		Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get kserve inferenceservice: %w", domain.ErrPlatform, err)
	}

	return parseStatus(obj), nil
}

func (c *kserveClient) buildInferenceServiceCR(spec output.ModelSpec) *unstructured.Unstructured {
	labels := map[string]interface{}{
		labelPrefix + "endpoint-name": spec.Name,
	}
	for k, v := range spec.Labels {
		labels[k] = v
	}

	modelSpec := map[string]interface{}{
		"storageUri": spec.ModelDataURL,
	}
	if spec.Framework != "" {
		modelSpec["modelFormat"] = map[string]interface{}{
			"name": spec.Framework,
		}
	}

	predictor := map[string]interface{}{
		"model": modelSpec,
	}
	if spec.InstanceCount > 0 {
		predictor["minReplicas"] = int64(spec.InstanceCount)
	}
	if c.serviceAccount != "" {
		predictor["serviceAccountName"] = c.serviceAccount
	}

	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "serving.kserve.io/v1beta1",
			"kind":       "InferenceService",
			"metadata": map[string]interface{}{
				"name":   spec.Name,
				"labels": labels,
			},
			"spec": map[string]interface{}{
				"predictor": predictor,
			},
		},
	}
}

func parseStatus(obj *unstructured.Unstructured) *status {
	st := &status{}

	statusMap, found, _ := unstructured.NestedMap(obj.Object, "status")
	if !found {
		return st
	}

	st.URL, _, _ = unstructured.NestedString(statusMap, "url")

	// Check conditions for ready state
	conditions, found, _ := unstructured.NestedSlice(statusMap, "conditions")
	if found {
		for _, cond := range conditions {
			condMap, ok := cond.(map[string]interface{})
			if !ok {
				continue
			}
			condType, _ := condMap["type"].(string)
			condStatus, _ := condMap["status"].(string)

			if condType == "Ready" {
				st.Ready = condStatus == "True"
				if condStatus == "False" {
					if msg, ok := condMap["message"].(string); ok {
						st.Error = msg
					}
				}
				break
			}
		}
	}

	return st
}

// Ensure interface compliance
var _ output.HostingPlatform = (*kserveClient)(nil)
