package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/ghalamif/sensorlog/internal/ports"
)

// MQTTSource reads device lines relayed by a gateway onto an MQTT topic. Each
// message payload holds one or more newline-separated lines.
type MQTTSource struct {
	cfg    MQTTConfig
	decode ports.DecodePolicy
	logf   func(format string, args ...any)

	client mqtt.Client
	msgs   chan []byte
	closed chan struct{}
	once   sync.Once

	// lost is closed once when the broker connection drops; lostErr is set
	// before the close.
	lost     chan struct{}
	lostErr  error
	lostOnce sync.Once
	lines    messageLines
}

func NewMQTTSource(cfg MQTTConfig, decode ports.DecodePolicy, logf func(string, ...any)) *MQTTSource {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	return &MQTTSource{
		cfg:    cfg,
		decode: decode,
		logf:   logf,
		msgs:   make(chan []byte, 64),
		closed: make(chan struct{}),
		lost:   make(chan struct{}),
	}
}

func (s *MQTTSource) Name() string { return "mqtt:" + s.cfg.Topic }

func (s *MQTTSource) Open(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opts := mqtt.NewClientOptions().
		AddBroker(s.cfg.Broker).
		SetClientID(s.cfg.ClientID).
		SetOrderMatters(true).
		SetCleanSession(false).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetAutoReconnect(false).
		SetConnectTimeout(s.cfg.ConnectTimeout)

	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
	}
	if s.cfg.Password != "" {
		opts.SetPassword(s.cfg.Password)
	}

	// A resumed session may deliver queued messages before Subscribe returns.
	opts.SetDefaultPublishHandler(s.handle)
	// The connection is not retried; a drop ends the run through ReadLine.
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.logf("mqtt connection lost: %v", err)
		s.markLost(err)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		client.Disconnect(0)
		return fmt.Errorf("%w: mqtt connect %s: timeout after %s", ports.ErrSourceUnavailable, s.cfg.Broker, s.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: mqtt connect %s: %v", ports.ErrSourceUnavailable, s.cfg.Broker, err)
	}
	if err := s.subscribe(client); err != nil {
		client.Disconnect(0)
		return err
	}
	s.client = client
	return nil
}

type subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// subscribe blocks until the broker acknowledges the topic. A source that
// connected but never subscribed would wait for lines forever.
func (s *MQTTSource) subscribe(c subscriber) error {
	token := c.Subscribe(s.cfg.Topic, s.cfg.QoS, s.handle)
	if !token.WaitTimeout(s.cfg.ConnectTimeout) {
		return fmt.Errorf("%w: mqtt subscribe %s: timeout after %s", ports.ErrSourceUnavailable, s.cfg.Topic, s.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: mqtt subscribe %s: %v", ports.ErrSourceUnavailable, s.cfg.Topic, err)
	}
	if st, ok := token.(*mqtt.SubscribeToken); ok {
		for topic, code := range st.Result() {
			if code == 0x80 {
				return fmt.Errorf("%w: mqtt subscribe %s: refused by broker", ports.ErrSourceUnavailable, topic)
			}
		}
	}
	return nil
}

// handle runs on the paho router goroutine and blocks until the driver takes
// the payload, so no line is dropped between broker and driver.
func (s *MQTTSource) handle(_ mqtt.Client, msg mqtt.Message) {
	select {
	case s.msgs <- msg.Payload():
	case <-s.closed:
	}
}

func (s *MQTTSource) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	if line, ok := s.lines.pop(); ok {
		return Decode(line, s.decode), nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", ports.ErrNoLine
	case payload := <-s.msgs:
		return s.take(payload), nil
	case <-s.lost:
		select {
		case payload := <-s.msgs:
			return s.take(payload), nil
		default:
		}
		return "", fmt.Errorf("%w: mqtt connection lost: %v", ports.ErrSourceFailed, s.lostErr)
	}
}

func (s *MQTTSource) take(payload []byte) string {
	s.lines.push(payload)
	line, _ := s.lines.pop()
	return Decode(line, s.decode)
}

func (s *MQTTSource) markLost(err error) {
	s.lostOnce.Do(func() {
		s.lostErr = err
		close(s.lost)
	})
}

func (s *MQTTSource) Close() error {
	s.once.Do(func() { close(s.closed) })
	if s.client != nil {
		s.client.Disconnect(250)
		s.client = nil
	}
	return nil
}

var _ ports.LineSource = (*MQTTSource)(nil)
