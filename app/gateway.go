package app

import (
	"context"

	"github.com/limitgate/limitgate/domain/proxy"
	"github.com/limitgate/limitgate/domain/usage"
	"github.com/limitgate/limitgate/ports"
)

// GatewayService forwards requests upstream and records request logs.
type GatewayService struct {
	upstream ports.Upstream
	recorder ports.UsageRecorder
	clock    ports.Clock
	idGen    ports.IDGenerator
}

// GatewayDeps contains dependencies for GatewayService.
type GatewayDeps struct {
	Upstream ports.Upstream
	Recorder ports.UsageRecorder
	Clock    ports.Clock
	IDGen    ports.IDGenerator
}

// NewGatewayService creates a new gateway service.
func NewGatewayService(deps GatewayDeps) *GatewayService {
	return &GatewayService{
		upstream: deps.Upstream,
		recorder: deps.Recorder,
		clock:    deps.Clock,
		idGen:    deps.IDGen,
	}
}

// Forward sends the request upstream. Every attempt is logged, including
// upstream failures; a failed forward is recorded as a 502.
func (s *GatewayService) Forward(ctx context.Context, clientID string, req proxy.Request) (proxy.Response, *proxy.ErrorResponse) {
	resp, err := s.upstream.Forward(ctx, req)
	if err != nil {
		s.record(clientID, req, proxy.ErrUpstreamError.Status, 0, 0)
		return proxy.Response{}, &proxy.ErrUpstreamError
	}

	s.record(clientID, req, resp.Status, resp.LatencyMs, int64(len(resp.Body)))
	return resp, nil
}

// HealthCheck reports whether the upstream is reachable.
func (s *GatewayService) HealthCheck(ctx context.Context) error {
	return s.upstream.HealthCheck(ctx)
}

func (s *GatewayService) record(clientID string, req proxy.Request, status int, latencyMs, responseBytes int64) {
	event := usage.NewEvent(
		s.idGen.New(),
		clientID,
		req.Method,
		req.Path,
		status,
		latencyMs,
		int64(len(req.Body)),
		responseBytes,
		req.RemoteIP,
		req.UserAgent,
		s.clock.Now(),
	)
	s.recorder.Record(event)
}
