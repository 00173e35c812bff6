package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"vision-gateway/config"
	"vision-gateway/internal/appdirs"
	"vision-gateway/internal/artifact"
	"vision-gateway/internal/backend"
	"vision-gateway/internal/backend/florence"
	"vision-gateway/internal/backend/rexomni"
	"vision-gateway/internal/backend/vlm"
	"vision-gateway/internal/catalog"
	"vision-gateway/internal/jobstore"
	"vision-gateway/internal/metrics"
	"vision-gateway/internal/modelrouter"
	"vision-gateway/internal/notify"
	"vision-gateway/internal/storage"
	"vision-gateway/internal/taskrunner"
	"vision-gateway/internal/types"
	"vision-gateway/log"
)

const janitorInterval = time.Minute

// NewGateway wires the job engine from config.Conf. A nil meter provider
// falls back to the global one.
func NewGateway(mp metric.MeterProvider) (*Gateway, error) {
	conf := config.Conf

	cat, err := catalog.New()
	if err != nil {
		return nil, err
	}
	registry := NewRegistry(cat, conf.Backends)

	artifacts, err := newArtifactStore(conf.Artifact)
	if err != nil {
		return nil, err
	}

	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	recorder, err := metrics.NewRecorder(mp)
	if err != nil {
		return nil, err
	}

	var notifier notify.Notifier = notify.Nop{}
	if conf.Notify.RedisAddr != "" {
		notifier = notify.NewRedisNotifier(notify.RedisConfig{
			Addr:     conf.Notify.RedisAddr,
			Password: conf.Notify.RedisPassword,
			DB:       conf.Notify.RedisDb,
			ListKey:  conf.Notify.ListKey,
		})
		log.GetLogger().Info("[Gateway] redis notifications enabled", zap.String("addr", conf.Notify.RedisAddr))
	}

	opts := []taskrunner.Option{
		taskrunner.WithNotifier(notifier),
		taskrunner.WithMetrics(recorder),
	}
	if conf.History.Enabled {
		opts = append(opts, taskrunner.WithArchiver(storage.HistoryArchiver{}))
	}

	router := modelrouter.New(cat, registry)
	store := jobstore.New()
	runner := taskrunner.New(store, router, artifacts, taskrunner.Config{
		MaxInFlight: conf.App.MaxInFlight,
		JobTimeout:  time.Duration(conf.App.JobTimeoutSeconds) * time.Second,
	}, opts...)

	if conf.App.JobTtlMinutes > 0 {
		runner.StartJanitor(time.Duration(conf.App.JobTtlMinutes)*time.Minute, janitorInterval)
	}

	log.GetLogger().Info("[Gateway] initialised",
		zap.Int("max_in_flight", conf.App.MaxInFlight),
		zap.String("artifact_backend", conf.Artifact.Backend),
		zap.Any("backends", registry.Configured()))

	return &Gateway{
		Catalog:        cat,
		Registry:       registry,
		Router:         router,
		Store:          store,
		Runner:         runner,
		Artifacts:      artifacts,
		HistoryEnabled: conf.History.Enabled,
		HistoryLimit:   conf.History.Limit,
		notifier:       notifier,
	}, nil
}

// NewRegistry registers a factory for every backend with enough
// configuration to reach it. Adapters are built on first use.
func NewRegistry(cat *catalog.Catalog, conf config.Backends) *backend.Registry {
	registry := backend.NewRegistry(cat)

	if conf.Florence.BaseUrl != "" {
		registry.Register(types.BackendFlorence, florence.Factory(sidecarConfig(conf.Florence)))
	}
	if conf.Rexomni.BaseUrl != "" {
		registry.Register(types.BackendRexOmni, rexomni.Factory(sidecarConfig(conf.Rexomni)))
	}
	if conf.Vlm.BaseUrl != "" || conf.Vlm.ApiKey != "" {
		registry.Register(types.BackendVLM, vlm.Factory(vlm.Config{
			BaseURL:       conf.Vlm.BaseUrl,
			APIKey:        conf.Vlm.ApiKey,
			Model:         conf.Vlm.Model,
			Proxy:         conf.Vlm.Proxy,
			MaxConcurrent: conf.Vlm.MaxConcurrent,
		}))
	}
	return registry
}

func sidecarConfig(s config.Sidecar) backend.SidecarConfig {
	return backend.SidecarConfig{
		BaseURL:       s.BaseUrl,
		Timeout:       time.Duration(s.TimeoutSeconds) * time.Second,
		MaxConcurrent: s.MaxConcurrent,
	}
}

func newArtifactStore(conf config.Artifact) (artifact.Store, error) {
	switch conf.Backend {
	case config.ArtifactBackendMemory:
		return artifact.NewMemoryStore(), nil
	case config.ArtifactBackendOss:
		return artifact.NewOSSStore(artifact.OSSConfig{
			Endpoint:        conf.Oss.Endpoint,
			Region:          conf.Oss.Region,
			Bucket:          conf.Oss.Bucket,
			AccessKeyID:     conf.Oss.AccessKeyId,
			AccessKeySecret: conf.Oss.AccessKeySecret,
			Prefix:          conf.Oss.Prefix,
		})
	default:
		root := conf.Dir
		if root == "" {
			var err error
			if root, err = appdirs.ResolveArtifactRoot(); err != nil {
				return nil, err
			}
		}
		return artifact.NewFileStore(root)
	}
}

// Close stops the runner, cancelling running jobs, and releases the
// notifier once every job has finished. If ctx expires first Close returns
// and the notifier is released in the background after the last job.
func (g *Gateway) Close(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.Runner.Close()
		close(done)
	}()
	select {
	case <-done:
		g.closeNotifier()
	case <-ctx.Done():
		log.GetLogger().Warn("[Gateway] shutdown timed out with jobs in flight", zap.Int("in_flight", g.Runner.InFlight()))
		go func() {
			<-done
			g.closeNotifier()
		}()
	}
}

func (g *Gateway) closeNotifier() {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Close(); err != nil {
		log.GetLogger().Warn("[Gateway] notifier close failed", zap.Error(err))
	}
}
