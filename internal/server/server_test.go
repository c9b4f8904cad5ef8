package server

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"constellation/internal/config"
	"constellation/internal/events"
	"constellation/internal/netsim"
	"constellation/internal/protocol"
)

func testConfig() *config.Config {
	return &config.Config{
		Host:              "127.0.0.1",
		Port:              9090,
		ListenAddr:        "127.0.0.1:9090",
		FrameInterval:     33 * time.Millisecond,
		MaxTickDelta:      250 * time.Millisecond,
		NodeCount:         10,
		CanvasWidth:       800,
		CanvasHeight:      600,
		Seed:              7,
		NetworkSpeed:      1,
		PacketSpeed:       1,
		MaxDiscoveryEdges: 24,
		SendDeadline:      6 * time.Second,
		SubjectPrefix:     "constellation.events",
		LogLevel:          "info",
	}
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// capturePublisher records published events for assertions
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *capturePublisher) Publish(ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

func (p *capturePublisher) detailsFor(kind string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if ev.Kind == kind {
			out = append(out, ev.Detail)
		}
	}
	return out
}

func newTestServer(t *testing.T) (*Server, *capturePublisher) {
	t.Helper()
	pub := &capturePublisher{}
	srv, err := New(testConfig(), testLogger(), pub)
	require.NoError(t, err)
	t.Cleanup(srv.metrics.Close)
	return srv, pub
}

func TestToggleCommandFlipsNode(t *testing.T) {
	srv, pub := newTestServer(t)

	srv.hub.Stage(protocol.Command{Name: protocol.CommandToggleNode, Node: 0})
	srv.step(16)

	snap := srv.sim.Snapshot()
	assert.Equal(t, netsim.StatusOffline, snap.Nodes[0].Status)
	assert.Contains(t, pub.kinds(), events.KindNodeToggled)
	assert.Contains(t, pub.kinds(), events.KindTopologyChanged)
}

func TestInvalidCommandsDropped(t *testing.T) {
	testCases := []struct {
		name string
		cmd  protocol.Command
	}{
		{name: "toggle out of range", cmd: protocol.Command{Name: protocol.CommandToggleNode, Node: 99}},
		{name: "toggle negative", cmd: protocol.Command{Name: protocol.CommandToggleNode, Node: -1}},
		{name: "send to same endpoint", cmd: protocol.Command{Name: protocol.CommandRequestSend, From: 0, To: 0}},
		{name: "send to unknown endpoint", cmd: protocol.Command{Name: protocol.CommandRequestSend, From: 0, To: 5}},
		{name: "resize to zero width", cmd: protocol.Command{Name: protocol.CommandResize, Width: 0, Height: 400}},
		{name: "unknown command", cmd: protocol.Command{Name: "reboot"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := newTestServer(t)
			srv.hub.Stage(tc.cmd)
			require.NotPanics(t, func() { srv.step(16) })

			snap := srv.sim.Snapshot()
			assert.Equal(t, uint64(0), snap.TopologyVersion)
			assert.Zero(t, snap.PendingSends)
			assert.Equal(t, 800.0, snap.Width)
		})
	}
}

func TestSendCommandQueuesRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	srv.hub.Stage(protocol.Command{Name: protocol.CommandRequestSend, From: 0, To: 1})
	srv.step(16)

	// Still discovering, so the send waits in the queue
	assert.Equal(t, 1, srv.sim.Snapshot().PendingSends)
}

func TestReducedMotionCommandTogglesFlag(t *testing.T) {
	srv, _ := newTestServer(t)
	require.False(t, srv.reducedMotion)

	srv.hub.Stage(protocol.Command{Name: protocol.CommandReducedMotion, Enabled: true})
	srv.step(16)
	assert.True(t, srv.reducedMotion)
	assert.Empty(t, srv.sim.Snapshot().Packets)

	srv.hub.Stage(protocol.Command{Name: protocol.CommandReducedMotion})
	srv.step(16)
	assert.False(t, srv.reducedMotion)
}

func TestResizeCommandMovesSceneAndInit(t *testing.T) {
	srv, _ := newTestServer(t)
	before := srv.hub.initMessage()
	require.NotNil(t, before)

	srv.hub.Stage(protocol.Command{Name: protocol.CommandResize, Width: 1920, Height: 1080})
	srv.step(16)

	assert.Equal(t, 1920.0, srv.sim.Snapshot().Width)

	after := srv.hub.initMessage()
	require.NotEqual(t, string(before), string(after))

	var msg protocol.Message
	require.NoError(t, json.Unmarshal(after, &msg))
	var init protocol.Init
	require.NoError(t, msg.DecodePayload(&init))
	assert.Equal(t, 1920.0, init.Width)
	assert.Equal(t, 1080.0, init.Height)
}

func TestLifecycleEventsPublished(t *testing.T) {
	srv, pub := newTestServer(t)

	// Run past discovery, ramping, and the stable settle window
	for i := 0; i < 550; i++ {
		srv.step(16)
	}

	kinds := pub.kinds()
	assert.Contains(t, kinds, events.KindPhaseChanged)
	assert.Contains(t, kinds, events.KindConverged)

	details := pub.detailsFor(events.KindPhaseChanged)
	assert.Contains(t, details, "ramping")
	assert.Contains(t, details, "stable")
}

func TestStepObservesMetrics(t *testing.T) {
	srv, _ := newTestServer(t)

	srv.step(16)

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.metrics.FramesBroadcast))
	assert.Equal(t, 0.0, testutil.ToFloat64(srv.metrics.ConnectedClients))
	assert.Equal(t, 0.0, testutil.ToFloat64(srv.metrics.Converged))
	assert.Equal(t, float64(netsim.PhaseDiscovering), testutil.ToFloat64(srv.metrics.Phase))
}

func TestDeliveryMetricsRollForward(t *testing.T) {
	srv, pub := newTestServer(t)

	// Reach the stable phase, then run a full send round trip
	for i := 0; i < 300; i++ {
		srv.step(16)
	}
	srv.hub.Stage(protocol.Command{Name: protocol.CommandRequestSend, From: 0, To: 1})
	for i := 0; i < 300; i++ {
		srv.step(16)
	}

	assert.GreaterOrEqual(t, testutil.ToFloat64(srv.metrics.SendsDelivered), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(srv.metrics.PacketsDelivered.WithLabelValues("app")), 1.0)
	assert.Contains(t, pub.kinds(), events.KindSendDelivered)
}

func TestStartStop(t *testing.T) {
	cfg := testConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	srv, err := New(cfg, testLogger(), &capturePublisher{})
	require.NoError(t, err)

	require.NoError(t, srv.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, srv.Stop())
}
