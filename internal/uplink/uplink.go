// Package uplink forwards spooled samples to an MQTT broker.
package uplink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/airquality.report/internal/queue"
)

// Publisher delivers one payload to a topic and reports whether the
// broker accepted it.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// Spool is the part of the queue the forwarder drains.
type Spool interface {
	List() ([]string, error)
	Read(name string) ([]byte, error)
	Remove(name string) error
}

// Forwarder publishes queued samples oldest first. A file is removed only
// after its publish is confirmed; the first failure stops the drain so
// ordering is preserved for the next attempt.
type Forwarder struct {
	pub   Publisher
	spool Spool
	topic string
}

func NewForwarder(pub Publisher, spool Spool, topic string) *Forwarder {
	return &Forwarder{pub: pub, spool: spool, topic: topic}
}

// Drain publishes every queued file and returns how many were sent.
func (f *Forwarder) Drain(ctx context.Context) (int, error) {
	names, err := f.spool.List()
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		payload, err := f.spool.Read(name)
		if err != nil {
			return sent, fmt.Errorf("read %s: %w", name, err)
		}
		if err := f.pub.Publish(ctx, f.topic, payload); err != nil {
			return sent, fmt.Errorf("publish %s: %w", name, err)
		}
		if err := f.spool.Remove(name); err != nil {
			return sent, fmt.Errorf("remove %s: %w", name, err)
		}
		sent++
	}
	if sent > 0 {
		log.Printf("Uplink sent %d queued samples to %s", sent, f.topic)
	}
	return sent, nil
}

// RawSpool adapts a queue.Spool to hand out file contents unparsed.
type RawSpool struct{ *queue.Spool }

func (r RawSpool) Read(name string) ([]byte, error) { return r.Spool.ReadRaw(name) }

var ErrPublishTimeout = errors.New("mqtt publish timed out")

// MQTTPublisher publishes with QoS 1 over a paho client.
type MQTTPublisher struct {
	client  mqtt.Client
	timeout time.Duration
}

// DialMQTT connects to broker (for example tcp://localhost:1883).
func DialMQTT(broker, clientID string) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Printf("MQTT connection lost: %v", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Printf("MQTT broker %s not reachable yet, retrying in background", broker)
	} else if token.Error() != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, token.Error())
	}
	return &MQTTPublisher{client: client, timeout: 10 * time.Second}, nil
}

func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		return errors.New("mqtt not connected")
	}
	token := p.client.Publish(topic, 1, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return ErrPublishTimeout
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
