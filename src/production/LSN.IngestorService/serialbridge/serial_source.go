// Package serialbridge reads newline-delimited JSON readings from a LoRa
// gateway attached over a serial port.
package serialbridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
	config "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Config"
	lsningestor "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.IngestorService/ingestor"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
)

const maxLineBytes = 64 * 1024

// Opener opens the gateway port
type Opener func() (io.ReadCloser, error)

// Source keeps a serial connection open and forwards every JSON line.
// The port is reopened after a read error or EOF.
type Source struct {
	open      Opener
	sink      lsningestor.Submitter
	reconnect time.Duration
	now       func() time.Time
	logger    *logger.Logger

	mu   sync.Mutex
	port io.ReadCloser

	connected atomic.Bool
	lines     atomic.Int64
	skipped   atomic.Int64
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// Option configures a Source
type Option func(*Source)

// WithOpener replaces the serial port, mainly for tests
func WithOpener(open Opener) Option {
	return func(s *Source) { s.open = open }
}

// WithReconnectDelay sets the pause between reopen attempts
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Source) { s.reconnect = d }
}

func NewSource(cfg *config.IngestorConfig, sink lsningestor.Submitter, log *logger.Logger, opts ...Option) *Source {
	sc := cfg.Serial
	s := &Source{
		open: func() (io.ReadCloser, error) {
			return serial.OpenPort(&serial.Config{Name: sc.Port, Baud: sc.Baud, ReadTimeout: sc.ReadTimeout})
		},
		sink:      sink,
		reconnect: time.Second,
		now:       time.Now,
		logger:    log.WithComponent("serial_source").WithField("port", sc.Port),
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Source) Name() string { return "serial" }

func (s *Source) IsConnected() bool { return s.connected.Load() }

// Counts returns lines forwarded and lines skipped as gateway noise
func (s *Source) Counts() (forwarded, skipped int64) {
	return s.lines.Load(), s.skipped.Load()
}

// Start launches the read loop. A port that cannot be opened yet is retried.
func (s *Source) Start() error {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return nil
}

// Stop closes the port and waits for the read loop to exit
func (s *Source) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.mu.Lock()
	if s.port != nil {
		s.port.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Source) loop() {
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		port, err := s.open()
		if err != nil {
			s.logger.Logger.Debug().Err(err).Msg("Serial port not available")
		} else {
			s.mu.Lock()
			s.port = port
			s.mu.Unlock()

			s.connected.Store(true)
			s.logger.Info("Monitoring serial gateway")
			err = s.ReadLines(port)
			s.connected.Store(false)
			port.Close()

			s.mu.Lock()
			s.port = nil
			s.mu.Unlock()

			if err != nil {
				s.logger.Logger.Warn().Err(err).Msg("Serial gateway disconnected")
			} else {
				s.logger.Warn("Serial port EOF")
			}
		}

		select {
		case <-s.stop:
			return
		case <-time.After(s.reconnect):
		}
	}
}

// ReadLines forwards each JSON line from r until EOF
func (s *Source) ReadLines(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)
	for scanner.Scan() {
		s.handleLine(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("serial read: %w", err)
	}
	return nil
}

func (s *Source) handleLine(line []byte) {
	payload, ok := ParseLine(line)
	if !ok {
		s.skipped.Add(1)
		if len(line) > 0 {
			s.logger.Logger.Debug().Str("line", string(line)).Msg("Skipping gateway output")
		}
		return
	}

	s.lines.Add(1)
	env := lsningestor.Envelope{
		Source:     s.Name(),
		NodeID:     lsningestor.NodeIDOf(payload),
		Payload:    payload,
		ReceivedAt: s.now().UTC(),
	}
	if err := s.sink.Submit(env); err != nil {
		s.logger.WithNode(env.NodeID).WithError(err).Warn("Reading not queued")
	}
}

// ParseLine decodes one gateway line. Blank lines and debug output are
// reported as not ok.
func ParseLine(line []byte) (map[string]interface{}, bool) {
	payload, err := lsningestor.DecodePayload(line)
	if err != nil {
		return nil, false
	}
	return payload, true
}
