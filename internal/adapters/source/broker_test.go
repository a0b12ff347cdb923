package source

import (
	"context"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/segmentio/kafka-go"

	"github.com/ghalamif/sensorlog/internal/ports"
)

func TestMQTTSourceReadLine(t *testing.T) {
	s := NewMQTTSource(MQTTConfig{Topic: "esp/central"}, ports.DecodeDrop, nil)
	defer s.Close()

	if _, err := s.ReadLine(context.Background(), 5*time.Millisecond); !errors.Is(err, ports.ErrNoLine) {
		t.Fatalf("expected ErrNoLine, got %v", err)
	}

	s.msgs <- []byte("Sent JSON: {\"id\":1}\nSend Status: Success\n")
	for _, want := range []string{`Sent JSON: {"id":1}`, "Send Status: Success"} {
		line, err := s.ReadLine(context.Background(), time.Second)
		if err != nil || line != want {
			t.Fatalf("expected %q, got %q err=%v", want, line, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.ReadLine(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if s.Name() != "mqtt:esp/central" {
		t.Fatalf("unexpected name %q", s.Name())
	}
}

func TestMQTTSourceConnectionLostIsFatal(t *testing.T) {
	s := NewMQTTSource(MQTTConfig{Topic: "esp/central"}, ports.DecodeDrop, nil)
	defer s.Close()

	s.msgs <- []byte("Received Temperature: 20.00")
	s.markLost(errors.New("EOF"))

	line, err := s.ReadLine(context.Background(), time.Second)
	if err != nil || line != "Received Temperature: 20.00" {
		t.Fatalf("expected pending line before the failure, got %q err=%v", line, err)
	}
	if _, err := s.ReadLine(context.Background(), time.Second); !errors.Is(err, ports.ErrSourceFailed) {
		t.Fatalf("expected ErrSourceFailed after connection loss, got %v", err)
	}
}

type fakeToken struct {
	done bool
	err  error
}

func (f *fakeToken) Wait() bool { return f.done }
func (f *fakeToken) WaitTimeout(time.Duration) bool { return f.done }
func (f *fakeToken) Error() error { return f.err }
func (f *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	if f.done {
		close(ch)
	}
	return ch
}

type fakeSubscriber struct {
	token *fakeToken
	topic string
	qos   byte
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, _ mqtt.MessageHandler) mqtt.Token {
	f.topic, f.qos = topic, qos
	return f.token
}

func TestMQTTSourceSubscribeFailureIsUnavailable(t *testing.T) {
	s := NewMQTTSource(MQTTConfig{Topic: "esp/central", QoS: 1, ConnectTimeout: 10 * time.Millisecond}, ports.DecodeDrop, nil)
	defer s.Close()

	ok := &fakeSubscriber{token: &fakeToken{done: true}}
	if err := s.subscribe(ok); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if ok.topic != "esp/central" || ok.qos != 1 {
		t.Fatalf("unexpected subscription %q qos=%d", ok.topic, ok.qos)
	}

	cases := map[string]*fakeToken{
		"error":   {done: true, err: errors.New("not authorized")},
		"timeout": {done: false},
	}
	for name, tok := range cases {
		err := s.subscribe(&fakeSubscriber{token: tok})
		if !errors.Is(err, ports.ErrSourceUnavailable) {
			t.Fatalf("%s: expected ErrSourceUnavailable, got %v", name, err)
		}
	}
}

type fakeKafkaReader struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeKafkaReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) > 0 {
		m := f.msgs[0]
		f.msgs = f.msgs[1:]
		return m, nil
	}
	if f.err != nil {
		return kafka.Message{}, f.err
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeKafkaReader) Close() error { f.closed = true; return nil }

func TestKafkaSourceReadLine(t *testing.T) {
	reader := &fakeKafkaReader{msgs: []kafka.Message{
		{Value: []byte("I (1) CENTRAL_NODE: Received Temperature: 21.50 °C")},
		{Value: []byte("a\nb")},
	}}
	s := NewKafkaSource(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "device-lines"}, ports.DecodeDrop)
	s.reader = reader

	for _, want := range []string{"I (1) CENTRAL_NODE: Received Temperature: 21.50 °C", "a", "b"} {
		line, err := s.ReadLine(context.Background(), time.Second)
		if err != nil || line != want {
			t.Fatalf("expected %q, got %q err=%v", want, line, err)
		}
	}

	if _, err := s.ReadLine(context.Background(), 5*time.Millisecond); !errors.Is(err, ports.ErrNoLine) {
		t.Fatalf("expected ErrNoLine on idle topic, got %v", err)
	}

	reader.err = errors.New("broker gone")
	if _, err := s.ReadLine(context.Background(), time.Second); !errors.Is(err, ports.ErrSourceFailed) {
		t.Fatalf("expected ErrSourceFailed, got %v", err)
	}

	if err := s.Close(); err != nil || !reader.closed {
		t.Fatalf("expected reader closed, err=%v", err)
	}
}
