/*
Package httpserver exposes the media pipeline over HTTP.

The server serves the processing API on one listener and Prometheus
metrics on another, with liveness, readiness, and drain endpoints for
load-balancer integration.

# Endpoints

Processing:

	POST /api/files/process                   process one multipart upload
	POST /api/files/batch                     process many uploads with bounded concurrency
	POST /api/archives?format=zip             build an archive from uploads
	GET  /api/processes/{process_id}          processing status
	POST /api/processes/{process_id}/cancel   cooperative cancellation
	GET  /api/objects/{key}                   download a stored object
	GET  /api/storage/health                  per-provider storage health

Operational:

	GET /livez
	GET /readyz
	GET /drain
	GET /undrain
	GET /metrics (on the metrics listener)

# Lifecycle

The server runs in the background and shuts down gracefully, draining
in-flight connections within the configured window:

	server, err := httpserver.New(cfg, handler, registry)
	if err != nil {
	    return err
	}
	server.RunInBackground()
	defer server.Shutdown()
*/
package httpserver
