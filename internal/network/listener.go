package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/lumen-motion/avatar.track/internal/monitoring"
)

// FrameSink receives decoded scalar arrays from a transport. The sink owns
// validation of the frame layout.
type FrameSink interface {
	SubmitRaw(values []float64, ts time.Time) error
}

// RawRejecter is optionally implemented by sinks that count frames a
// transport dropped before decode (unparseable wire bytes).
type RawRejecter interface {
	RejectRaw()
}

// StatsLogger periodically reports ingestion statistics.
type StatsLogger interface {
	LogStats()
}

// noopStats is the safe default when no stats collector is provided.
type noopStats struct{}

func (noopStats) LogStats() {}

// UDPListenerConfig configures the datagram listener.
type UDPListenerConfig struct {
	Address     string
	RcvBuf      int
	LogInterval time.Duration
	Sink        FrameSink
	Stats       StatsLogger
}

// UDPListener receives landmark datagrams and feeds the sink. One datagram
// is one frame; partial or oversized datagrams are dropped, never buffered.
type UDPListener struct {
	address     string
	rcvBuf      int
	logInterval time.Duration
	sink        FrameSink
	stats       StatsLogger

	mu   sync.Mutex
	conn *net.UDPConn
}

// NewUDPListener builds a listener; Start does the actual binding.
func NewUDPListener(config UDPListenerConfig) *UDPListener {
	stats := config.Stats
	if stats == nil {
		stats = noopStats{}
	}
	logInterval := config.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}
	return &UDPListener{
		address:     config.Address,
		rcvBuf:      config.RcvBuf,
		logInterval: logInterval,
		sink:        config.Sink,
		stats:       stats,
	}
}

// Addr returns the bound address once Start has bound the socket, or nil.
func (l *UDPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Start binds the socket and blocks receiving datagrams until the context is
// cancelled.
func (l *UDPListener) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.address)
	if err != nil {
		return fmt.Errorf("resolve UDP address %s: %w", l.address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", l.address, err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	defer conn.Close()

	if l.rcvBuf > 0 {
		if err := conn.SetReadBuffer(l.rcvBuf); err != nil {
			monitoring.Opsf("failed to set UDP receive buffer to %d: %v", l.rcvBuf, err)
		}
	}
	monitoring.Opsf("UDP frame listener started on %s", conn.LocalAddr())

	go l.startStatsLogging(ctx)

	buffer := make([]byte, 2048)
	for {
		select {
		case <-ctx.Done():
			monitoring.Opsf("UDP frame listener stopping")
			return ctx.Err()
		default:
			// Short deadline so context cancellation is noticed promptly.
			conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

			n, src, err := conn.ReadFromUDP(buffer)
			if err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				monitoring.Opsf("UDP read error: %v", err)
				continue
			}

			if err := l.handleDatagram(buffer[:n]); err != nil {
				monitoring.Diagf("dropping datagram from %v: %v", src, err)
			}
		}
	}
}

func (l *UDPListener) handleDatagram(b []byte) error {
	values, err := ParseDatagram(b)
	if err != nil {
		if rej, ok := l.sink.(RawRejecter); ok {
			rej.RejectRaw()
		}
		return err
	}
	return l.sink.SubmitRaw(values, time.Now())
}

func (l *UDPListener) startStatsLogging(ctx context.Context) {
	ticker := time.NewTicker(l.logInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.stats.LogStats()
		}
	}
}
