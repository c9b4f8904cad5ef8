// Package server hosts the constellation simulation. It owns the single
// Simulation aggregate, advances it on a fixed frame cadence, fans the
// resulting frames out to WebSocket clients, publishes lifecycle events,
// and exposes Prometheus metrics. All simulation access happens on the
// frame loop goroutine; client input reaches it only through the hub's
// staged command queue.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"constellation/internal/config"
	"constellation/internal/events"
	"constellation/internal/netsim"
	"constellation/internal/protocol"
)

// Server owns the simulation and its serving surfaces
type Server struct {
	cfg    *config.Config
	log    *logrus.Logger
	events events.Publisher

	sim     *netsim.Simulation
	hub     *Hub
	metrics *Metrics

	httpServer *http.Server

	// Frame-loop state, touched only from the loop goroutine
	reducedMotion bool
	lastTopology  uint64
	lastStats     netsim.Stats

	started bool
	quit    chan struct{}
	done    chan struct{}
}

// New builds the server and its simulation. A zero configured seed
// rolls one from the clock so every start shows a fresh constellation.
func New(cfg *config.Config, log *logrus.Logger, pub events.Publisher) (*Server, error) {
	meta, err := protocol.NewMetadataManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata manager: %w", err)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	sim := netsim.Build(netsim.BuildConfig{
		NodeCount: cfg.NodeCount,
		Width:     cfg.CanvasWidth,
		Height:    cfg.CanvasHeight,
		Seed:      seed,
	})

	s := &Server{
		cfg:           cfg,
		log:           log,
		events:        pub,
		sim:           sim,
		hub:           NewHub(log, meta),
		metrics:       NewMetrics(),
		reducedMotion: cfg.ReducedMotion,
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	s.refreshInit()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.HandleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	s.httpServer = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	return s, nil
}

// Start brings up the HTTP listener and the frame loop
func (s *Server) Start(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"addr":     s.cfg.ListenAddr,
		"nodes":    s.sim.NodeCount(),
		"interval": s.cfg.FrameInterval,
	}).Info("Starting constellation host")

	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server failed")
		}
	}()

	s.started = true
	go s.run(ctx)
	return nil
}

// Stop shuts down the frame loop, the clients, the listener, and the
// metrics registration, in that order.
func (s *Server) Stop() error {
	if s.started {
		close(s.quit)
		<-s.done
	}

	s.hub.Close()

	var err error
	if s.httpServer != nil {
		if e := s.httpServer.Shutdown(context.Background()); e != nil {
			err = fmt.Errorf("failed to stop http server: %w", e)
		}
	}

	s.metrics.Close()
	return err
}

// run drives the simulation at the configured frame cadence. Wall-clock
// deltas are clamped so a suspended host resumes with one bounded step
// instead of a catch-up burst.
func (s *Server) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now
			if delta > s.cfg.MaxTickDelta {
				delta = s.cfg.MaxTickDelta
			}
			s.step(float64(delta) / float64(time.Millisecond))
		}
	}
}

// step advances the simulation one frame and fans the result out.
func (s *Server) step(deltaMs float64) {
	for _, cmd := range s.hub.DrainCommands() {
		s.applyCommand(cmd)
	}

	start := time.Now()
	s.sim.Tick(deltaMs, netsim.TickConfig{
		ReducedMotion:            s.reducedMotion,
		MaxVisibleDiscoveryEdges: s.cfg.MaxDiscoveryEdges,
		NetworkSpeedMultiplier:   s.cfg.NetworkSpeed,
		PacketSpeedMultiplier:    s.cfg.PacketSpeed,
	})
	s.metrics.TickDuration.Observe(time.Since(start).Seconds())

	for _, sig := range s.sim.DrainSignals() {
		s.handleSignal(sig)
	}

	snap := s.sim.Snapshot()
	s.observeSnapshot(snap)

	msg, err := protocol.NewFrameMessage(buildFrame(snap))
	if err != nil {
		s.log.WithError(err).Error("Failed to build frame")
		return
	}
	data, err := msg.Encode()
	if err != nil {
		s.log.WithError(err).Error("Failed to encode frame")
		return
	}
	s.hub.Broadcast(data)
	s.metrics.FramesBroadcast.Inc()
}

// applyCommand validates and applies one staged client command. Client
// input is untrusted, so anything out of range is dropped with a log
// line instead of reaching the simulation's assertions.
func (s *Server) applyCommand(cmd protocol.Command) {
	switch cmd.Name {
	case protocol.CommandToggleNode:
		if cmd.Node < 0 || cmd.Node >= s.sim.NodeCount() {
			s.log.WithField("node", cmd.Node).Warn("Dropping toggle for unknown node")
			return
		}
		s.sim.ToggleNode(cmd.Node)

	case protocol.CommandRequestSend:
		from, to := netsim.EndpointID(cmd.From), netsim.EndpointID(cmd.To)
		if from == to || !validEndpoint(from) || !validEndpoint(to) {
			s.log.WithFields(logrus.Fields{"from": cmd.From, "to": cmd.To}).Warn("Dropping send with invalid endpoints")
			return
		}
		deadline := cmd.DeadlineMs
		if deadline <= 0 {
			deadline = float64(s.cfg.SendDeadline / time.Millisecond)
		}
		s.sim.RequestSend(from, to, deadline)

	case protocol.CommandReducedMotion:
		s.reducedMotion = cmd.Enabled

	case protocol.CommandResize:
		if cmd.Width <= 0 || cmd.Height <= 0 {
			s.log.WithFields(logrus.Fields{"width": cmd.Width, "height": cmd.Height}).Warn("Dropping resize with invalid extents")
			return
		}
		s.sim.Resize(cmd.Width, cmd.Height)
		s.refreshInit()

	default:
		s.log.WithField("command", cmd.Name).Warn("Dropping unknown command")
	}
}

func validEndpoint(id netsim.EndpointID) bool {
	return id == netsim.EndpointA || id == netsim.EndpointB
}

// handleSignal publishes the event a simulation signal maps to.
func (s *Server) handleSignal(sig netsim.Signal) {
	ev := events.Event{At: sig.At, Node: sig.Node, Endpoint: sig.Endpoint}
	switch sig.Kind {
	case netsim.SignalDelivered:
		ev.Kind = events.KindSendDelivered
	case netsim.SignalDeliveryFailed:
		ev.Kind = events.KindSendFailed
	case netsim.SignalConverged:
		ev.Kind = events.KindConverged
	case netsim.SignalDesynced:
		ev.Kind = events.KindDesynced
	case netsim.SignalPhaseChanged:
		ev.Kind = events.KindPhaseChanged
		ev.Detail = sig.Phase.String()
	case netsim.SignalNodeToggled:
		ev.Kind = events.KindNodeToggled
	default:
		return
	}
	s.publish(ev)
}

func (s *Server) publish(ev events.Event) {
	if err := s.events.Publish(ev); err != nil {
		s.log.WithError(err).WithField("kind", ev.Kind).Warn("Event publish failed")
	}
}

// observeSnapshot refreshes the gauges and rolls the simulation's
// cumulative counters forward into their Prometheus counterparts. It
// also detects topology changes, which have no dedicated signal because
// several toggles can land in one tick.
func (s *Server) observeSnapshot(snap netsim.Snapshot) {
	s.metrics.ConnectedClients.Set(float64(s.hub.ClientCount()))
	s.metrics.PacketsInFlight.Set(float64(len(snap.Packets)))
	s.metrics.PendingSends.Set(float64(snap.PendingSends))
	s.metrics.Phase.Set(float64(snap.Phase))
	if snap.Converged {
		s.metrics.Converged.Set(1)
	} else {
		s.metrics.Converged.Set(0)
	}

	prev := s.lastStats
	for k := range snap.Stats.Delivered {
		kind := netsim.PacketKind(k).String()
		if d := snap.Stats.Delivered[k] - prev.Delivered[k]; d > 0 {
			s.metrics.PacketsDelivered.WithLabelValues(kind).Add(float64(d))
		}
		if d := snap.Stats.Dropped[k] - prev.Dropped[k]; d > 0 {
			s.metrics.PacketsDropped.WithLabelValues(kind).Add(float64(d))
		}
	}
	if d := snap.Stats.Rerouted - prev.Rerouted; d > 0 {
		s.metrics.PacketsRerouted.Add(float64(d))
	}
	if d := snap.Stats.Delivered[netsim.PacketApp] - prev.Delivered[netsim.PacketApp]; d > 0 {
		s.metrics.SendsDelivered.Add(float64(d))
	}
	failed := (snap.Stats.Dropped[netsim.PacketApp] - prev.Dropped[netsim.PacketApp]) +
		(snap.Stats.ExpiredSends - prev.ExpiredSends)
	if failed > 0 {
		s.metrics.SendsFailed.Add(float64(failed))
	}
	s.lastStats = snap.Stats

	if snap.TopologyVersion != s.lastTopology {
		s.lastTopology = snap.TopologyVersion
		s.publish(events.Event{
			Kind:     events.KindTopologyChanged,
			At:       snap.ClockMs,
			Node:     -1,
			Endpoint: -1,
			Detail:   fmt.Sprintf("version=%d", snap.TopologyVersion),
		})
	}
}

// refreshInit rebuilds the scene description handed to newly connecting
// clients. Called at startup and whenever a resize moves the nodes.
func (s *Server) refreshInit() {
	msg, err := protocol.NewInitMessage(buildInit(s.sim.Snapshot()))
	if err != nil {
		s.log.WithError(err).Error("Failed to build init message")
		return
	}
	data, err := msg.Encode()
	if err != nil {
		s.log.WithError(err).Error("Failed to encode init message")
		return
	}
	s.hub.SetInit(data)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
