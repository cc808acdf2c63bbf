/*
Package metrics provides Prometheus instrumentation for streamkit.

Components accept an optional *Registry in their Config; when set, stream
and pipe activity is recorded against it. The default registry registers
against prometheus.DefaultRegisterer:

	rs := streams.NewReadableWithConfig(source, streams.Config[int]{
		Name:    "ingest",
		Metrics: metrics.DefaultRegistry,
	})

For isolated registries (tests, multi-tenant processes), build one from any
registerer:

	reg := prometheus.NewRegistry()
	registry := metrics.NewRegistry(reg)
*/
package metrics
