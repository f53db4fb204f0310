// Package mqtt publishes firmware status events to an MQTT broker.
//
// Session runs the MQTT protocol over any connection. On the board the
// connection is an lneto TCP conn (see ConnectAndPublish); the host simulator
// passes a net.Conn.
package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	mqtt "github.com/soypat/natiu-mqtt"
)

var (
	ErrNotConnected   = errors.New("mqtt: not connected")
	ErrConnectTimeout = errors.New("mqtt: connect timed out")
)

var pubFlags, _ = mqtt.NewPublishFlags(mqtt.QoS0, false, false)

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Session is a single broker connection. It is not safe for concurrent use.
type Session struct {
	ID       string
	Topic    string
	Username string // optional
	Password string // optional, requires Username
	Timeout  time.Duration
	Logger   *slog.Logger
	// PollInterval is the wait between reads while waiting for CONNACK.
	PollInterval time.Duration

	client   *mqtt.Client
	conn     io.ReadWriteCloser
	packetID uint16
}

// Connect sends CONNECT on conn and waits for the broker's CONNACK.
func (s *Session) Connect(conn io.ReadWriteCloser) error {
	logger := s.logger()
	s.conn = conn
	s.client = mqtt.NewClient(mqtt.ClientConfig{
		Decoder: mqtt.DecoderNoAlloc{UserBuffer: make([]byte, 1024)},
		OnPub: func(pubHead mqtt.Header, varPub mqtt.VariablesPublish, r io.Reader) error {
			logger.Info("mqtt:received message", slog.String("topic", string(varPub.TopicName)))
			return nil
		},
	})

	var varconn mqtt.VariablesConnect
	varconn.SetDefaultMQTT([]byte(s.ID))
	if s.Username != "" {
		varconn.Username = []byte(s.Username)
		if s.Password != "" {
			varconn.Password = []byte(s.Password)
		}
	}

	s.setDeadline()
	logger.Info("mqtt:start-connecting", slog.String("id", s.ID))
	if err := s.client.StartConnect(conn, &varconn); err != nil {
		return errors.New("mqtt start connect:" + err.Error())
	}

	poll := s.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	retries := int(s.timeout() / poll)
	if retries < 1 {
		retries = 1
	}
	for retries > 0 && !s.client.IsConnected() {
		if err := s.client.HandleNext(); err != nil {
			logger.Error("mqtt:handle-next-failed", slog.String("err", err.Error()))
		}
		if s.client.IsConnected() {
			break
		}
		time.Sleep(poll)
		retries--
	}
	if !s.client.IsConnected() {
		if err := s.client.Err(); err != nil {
			return errors.New("mqtt connect:" + err.Error())
		}
		return ErrConnectTimeout
	}
	logger.Info("mqtt:connected")
	return nil
}

// Connected reports whether the session holds a live connection.
func (s *Session) Connected() bool {
	return s.client != nil && s.client.IsConnected()
}

// Publish sends payload to Topic at QoS0.
func (s *Session) Publish(payload []byte) error {
	if !s.Connected() {
		return ErrNotConnected
	}
	s.packetID++
	s.setDeadline()
	err := s.client.PublishPayload(pubFlags, mqtt.VariablesPublish{
		TopicName:        []byte(s.Topic),
		PacketIdentifier: s.packetID,
	}, payload)
	if err != nil {
		return errors.New("mqtt publish:" + err.Error())
	}
	s.logger().Debug("mqtt:published", slog.Int("bytes", len(payload)))
	return nil
}

// PublishLoop publishes every payload from events until ctx is done, events
// is closed, or a publish fails.
func (s *Session) PublishLoop(ctx context.Context, events <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.Publish(payload); err != nil {
				return err
			}
		}
	}
}

// Close closes the underlying connection.
func (s *Session) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	s.client = nil
	return err
}

func (s *Session) setDeadline() {
	if d, ok := s.conn.(deadliner); ok {
		d.SetDeadline(time.Now().Add(s.timeout()))
	}
}

func (s *Session) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 5 * time.Second
	}
	return s.Timeout
}

func (s *Session) logger() *slog.Logger {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return s.Logger
}
