package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carlaviz/startpositions/internal/catalog"
	"github.com/carlaviz/startpositions/internal/config"
	"github.com/carlaviz/startpositions/internal/geo"
	"github.com/carlaviz/startpositions/internal/influx"
	"github.com/carlaviz/startpositions/internal/metrics/pushgateway"
	"github.com/carlaviz/startpositions/internal/publish"
	"github.com/carlaviz/startpositions/internal/snapshot"
	"github.com/carlaviz/startpositions/internal/viewer"
	"github.com/rs/zerolog"
)

// geojsonSink writes the drawn markers of each report as a FeatureCollection.
type geojsonSink struct {
	path string
	proj *geo.Projector
}

func (s *geojsonSink) Name() string { return "geojson" }

func (s *geojsonSink) Record(_ context.Context, r *viewer.Report) error {
	return geo.WriteGeoJSON(s.path, r.MapName, r.Markers, s.proj)
}

type closer interface {
	Close() error
}

// sinkSet holds the enabled report sinks and whatever must be closed at exit.
type sinkSet struct {
	sinks   []viewer.Sink
	closers []closer
}

func (s *sinkSet) add(sink viewer.Sink) {
	s.sinks = append(s.sinks, sink)
	if c, ok := sink.(closer); ok {
		s.closers = append(s.closers, c)
	}
}

func (s *sinkSet) close(logger *slog.Logger) {
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			logger.Warn("Failed to close sink", "error", err)
		}
	}
}

// createSinks builds every sink enabled in the config. A sink that cannot
// start is logged and skipped; the viewer works without any of them.
func createSinks(ctx context.Context, logger *slog.Logger, zlog zerolog.Logger) *sinkSet {
	set := &sinkSet{}

	if cfg := config.GetCatalogConfig(); cfg.Enabled {
		cat, err := catalog.Open(catalog.Config{
			Driver: cfg.Driver,
			Path:   cfg.Path,
			DSN:    config.PostgresDSN(),
		}, zlog)
		if err != nil {
			logger.Warn("Catalog disabled", "error", err)
		} else {
			logger.Info("Catalog initialized", "driver", cfg.Driver)
			set.add(cat)
		}
	}

	if cfg := config.GetInfluxConfig(); cfg.Enabled {
		m := influx.NewManager(influx.Config{
			URL:        cfg.URL,
			Token:      cfg.Token,
			Org:        cfg.Org,
			Bucket:     cfg.Bucket,
			BackupPath: cfg.BackupPath,
		}, zlog)
		if err := m.Connect(ctx); err != nil {
			logger.Warn("InfluxDB disabled", "error", err)
			_ = m.Close()
		} else {
			logger.Info("InfluxDB initialized", "url", cfg.URL, "valid", m.IsValid)
			set.add(m)
		}
	}

	if cfg := config.GetPublishConfig(); cfg.Enabled {
		logger.Info("Live publisher initialized", "url", cfg.URL)
		set.add(publish.New(publish.Config{URL: cfg.URL, Secret: cfg.Secret}, logger))
	}

	if cfg := config.GetSnapshotConfig(); cfg.Enabled {
		store, err := snapshot.NewStore(ctx, snapshot.Config{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			UseSSL:    cfg.UseSSL,
			Prefix:    cfg.Prefix,
		}, zlog)
		if err != nil {
			logger.Warn("Snapshot upload disabled", "error", err)
		} else {
			logger.Info("Snapshot upload initialized", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
			set.add(store)
		}
	}

	if cfg := config.GetPrometheusConfig(); cfg.Enabled {
		logger.Info("Pushgateway initialized", "url", cfg.PushURL, "job", cfg.Job)
		set.add(pushgateway.NewPusher(cfg.PushURL, cfg.Job))
	}

	if cfg := config.GetExportConfig(); cfg.GeoJSONPath != "" {
		logger.Info("GeoJSON export enabled", "path", cfg.GeoJSONPath)
		set.add(&geojsonSink{
			path: cfg.GeoJSONPath,
			proj: geo.NewProjector(geo.Origin{Lon: cfg.OriginLon, Lat: cfg.OriginLat}),
		})
	}

	return set
}

func (s *sinkSet) String() string {
	names := make([]string, len(s.sinks))
	for i, sink := range s.sinks {
		names[i] = sink.Name()
	}
	return fmt.Sprint(names)
}
