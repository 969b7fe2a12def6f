// Package observability exports PONK traffic counters to Prometheus.
package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/madmappersoftware/Ponk/internal/util"
)

const namespace = "ponk"

var registerOnce sync.Once

func counterFunc(subsystem, name, help string, v *atomic.Int64) prometheus.CounterFunc {
	return prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		func() float64 { return float64(v.Load()) },
	)
}

// RegisterMetrics registers the traffic counters with the default registry.
// The counters read util.Stats on scrape, so nothing has to be recorded twice.
func RegisterMetrics() {
	registerOnce.Do(func() {
		s := util.Stats
		prometheus.MustRegister(
			counterFunc("frames", "sent_total", "Frames handed to the transport.", &s.FramesSent),
			counterFunc("frames", "received_total", "Frames reassembled, verified and decoded.", &s.FramesRecv),
			counterFunc("frames", "discarded_total", "Frames superseded, timed out, corrupted or undecodable.", &s.FramesDiscarded),
			counterFunc("chunks", "sent_total", "Datagrams written to the transport.", &s.ChunksSent),
			counterFunc("chunks", "received_total", "Datagrams read from the transport.", &s.ChunksRecv),
			counterFunc("chunks", "dropped_total", "Datagrams rejected before reassembly.", &s.ChunksDropped),
			counterFunc("bytes", "sent_total", "Datagram bytes written to the transport.", &s.BytesSent),
			counterFunc("bytes", "received_total", "Datagram bytes read from the transport.", &s.BytesRecv),
		)
	})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string) error {
	RegisterMetrics()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, listener)
}

func serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	util.LogInfo("metrics on http://%s/metrics", listener.Addr())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
