package ingress

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/MrSnakeDoc/roomrouter/internal/logger"
)

const serviceAccountToken = "/var/run/secrets/kubernetes.io/serviceaccount/token"

// IsRunningInKubernetes reports whether the process runs in a pod.
func IsRunningInKubernetes() bool {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	_, err := os.Stat(serviceAccountToken)
	return err == nil
}

// FileRegistrar publishes the pod's manifests as {dir}/{podId}.yaml for an
// applier to pick up, and removes the file on shutdown.
type FileRegistrar struct {
	dir       string
	opts      Options
	logger    logger.Logger
	inCluster func() bool
}

// NewFileRegistrar creates a registrar writing into dir.
func NewFileRegistrar(dir string, opts Options, log logger.Logger) *FileRegistrar {
	return &FileRegistrar{
		dir:       dir,
		opts:      opts,
		logger:    log,
		inCluster: IsRunningInKubernetes,
	}
}

// Path is the manifest file for this pod.
func (r *FileRegistrar) Path() string {
	return filepath.Join(r.dir, r.opts.PodID+".yaml")
}

func (r *FileRegistrar) enabled(action string) bool {
	if r.opts.PodID == "" {
		r.logger.Warn("HOSTNAME not set, skipping ingress " + action)
		return false
	}
	if !r.inCluster() {
		r.logger.Info("not running in kubernetes, skipping ingress "+action,
			logger.String("pod", r.opts.PodID))
		return false
	}
	return true
}

// Register writes the rendered manifests atomically.
func (r *FileRegistrar) Register(ctx context.Context) error {
	if !r.enabled("registration") {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Render(r.opts)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create manifest dir: %w", err)
	}

	tmp, err := os.CreateTemp(r.dir, "."+r.opts.PodID+"-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create manifest file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write manifests: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write manifests: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.Path()); err != nil {
		return fmt.Errorf("failed to publish manifests: %w", err)
	}

	r.logger.Info("ingress manifests published",
		logger.String("path", r.Path()),
		logger.String("virtual_service", VirtualServiceName(r.opts.PodID)),
		logger.String("service_entry", ServiceEntryName(r.opts.PodID)))
	return nil
}

// Deregister removes the manifest file. A missing file is not an error.
func (r *FileRegistrar) Deregister(ctx context.Context) error {
	if !r.enabled("deregistration") {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if data, err := os.ReadFile(r.Path()); err == nil {
		if headers, err := Parse(data); err == nil {
			for _, h := range headers {
				r.logger.Info("withdrawing ingress object",
					logger.String("kind", h.Kind),
					logger.String("name", h.Metadata.Name))
			}
		}
	}

	if err := os.Remove(r.Path()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.logger.Warn("ingress manifests already removed", logger.String("path", r.Path()))
			return nil
		}
		return fmt.Errorf("failed to remove manifests: %w", err)
	}
	return nil
}
