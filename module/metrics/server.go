package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	metricsprom "github.com/slok/go-http-metrics/metrics/prometheus"
	"github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

const metricsEndpoint = "/metrics"

// Server is the http server that will be serving the /metrics request for prometheus
type Server struct {
	server *http.Server
	log    zerolog.Logger
	addr   net.Addr
}

// NewServer creates a new server that will start on the specified port, and responds
// to only the `/metrics` endpoint with the metrics of the given registry. Requests to
// the endpoint are themselves instrumented in the same registry. Port 0 picks a free port.
func NewServer(log zerolog.Logger, port uint, registry *prometheus.Registry) *Server {
	addr := ":" + strconv.Itoa(int(port))

	recorder := metricsprom.NewRecorder(metricsprom.Config{
		Prefix:   namespaceSimulation,
		Registry: registry,
	})
	mdlw := middleware.New(middleware.Config{Recorder: recorder})

	mux := http.NewServeMux()
	mux.Handle(metricsEndpoint, std.Handler(metricsEndpoint, mdlw, promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:    log.With().Str("component", "metrics_server").Logger(),
	}
}

// Ready returns a channel that will close once the server is listening, or once
// binding the address failed. Addr is valid after the channel closed.
func (m *Server) Ready() <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		ln, err := net.Listen("tcp", m.server.Addr)
		if err != nil {
			m.log.Err(err).Str("address", m.server.Addr).Msg("could not start metrics server")
			close(ready)
			return
		}
		m.addr = ln.Addr()
		m.log.Info().Str("address", m.addr.String()).Str("endpoint", metricsEndpoint).Msg("metrics server started")
		close(ready)

		err = m.server.Serve(ln)
		// http.ErrServerClosed is returned when Close or Shutdown is called
		// we don't consider this an error, so print this with debug level instead
		if errors.Is(err, http.ErrServerClosed) {
			m.log.Debug().Err(err).Msg("metrics server shutdown")
		} else if err != nil {
			m.log.Err(err).Msg("error shutting down metrics server")
		}
	}()
	return ready
}

// Addr returns the address the server listens on, or nil if it is not listening.
func (m *Server) Addr() net.Addr {
	return m.addr
}

// Done returns a channel that will close when shutdown is complete.
func (m *Server) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = m.server.Shutdown(ctx)
		cancel()
		close(done)
	}()
	return done
}
