// Package mqttbridge feeds telemetry published over MQTT into the ingest
// pipeline. Topics follow agrisense/<farmId>/<layer>/ingest.
package mqttbridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/heptiolabs/healthcheck"

	"github.com/agrisense/agrisense-backend/internal/domain/farm"
	"github.com/agrisense/agrisense-backend/internal/graphcache"
	"github.com/agrisense/agrisense-backend/internal/ingest"
	"github.com/agrisense/agrisense-backend/internal/observability"
	apperr "github.com/agrisense/agrisense-backend/internal/pkg/errors"
	"github.com/agrisense/agrisense-backend/internal/platform/ctxutil"
	"github.com/agrisense/agrisense-backend/internal/platform/envutil"
	"github.com/agrisense/agrisense-backend/internal/platform/logger"
)

const (
	DefaultTopic   = "agrisense/+/+/ingest"
	handleTimeout  = 30 * time.Second
	connectTimeout = 10 * time.Second
)

type Config struct {
	BrokerURL string
	ClientID  string
	Topic     string
	QoS       byte
	Username  string
	Password  string
}

func (c Config) Enabled() bool { return c.BrokerURL != "" }

func LoadConfig() Config {
	qos := envutil.Int("MQTT_QOS", 1)
	if qos < 0 || qos > 2 {
		qos = 1
	}
	return Config{
		BrokerURL: envutil.String("MQTT_BROKER_URL", ""),
		ClientID:  envutil.String("MQTT_CLIENT_ID", "agrisense-backend-"+uuid.NewString()[:8]),
		Topic:     envutil.String("MQTT_TOPIC", DefaultTopic),
		QoS:       byte(qos),
		Username:  envutil.String("MQTT_USERNAME", ""),
		Password:  envutil.String("MQTT_PASSWORD", ""),
	}
}

type Ingester interface {
	Ingest(ctx context.Context, farmID uuid.UUID, layer farm.Layer, recs []ingest.Record) (*ingest.Receipt, error)
}

type Bridge struct {
	log     *logger.Logger
	cfg     Config
	ingest  Ingester
	metrics *observability.Metrics
	client  mqtt.Client
}

func New(baseLog *logger.Logger, cfg Config, ing Ingester, metrics *observability.Metrics) *Bridge {
	return &Bridge{
		log:     baseLog.With("component", "MQTTBridge"),
		cfg:     cfg,
		ingest:  ing,
		metrics: metrics,
	}
}

// Start connects and subscribes. Subscriptions are renewed in the connect
// handler so they survive a reconnect with a clean session.
func (b *Bridge) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.cfg.BrokerURL)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(b.onConnect)
	opts.SetConnectionLostHandler(b.onConnectionLost)

	b.client = mqtt.NewClient(opts)
	token := b.client.Connect()
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("mqtt connect %s: %w", b.cfg.BrokerURL, err)
		}
	case <-ctx.Done():
		b.client.Disconnect(0)
		return ctx.Err()
	}
	go func() {
		<-ctx.Done()
		b.Stop()
	}()
	return nil
}

func (b *Bridge) Stop() {
	if b.client != nil && b.client.IsConnectionOpen() {
		b.client.Disconnect(1000)
	}
	b.metrics.MQTTConnected(false)
}

// Check reports readiness based on the broker connection.
func (b *Bridge) Check() healthcheck.Check {
	return func() error {
		if b.client != nil && b.client.IsConnected() {
			return nil
		}
		return fmt.Errorf("mqtt not connected")
	}
}

func (b *Bridge) onConnect(c mqtt.Client) {
	b.log.Info("connected to mqtt broker", "broker", b.cfg.BrokerURL, "mqtt_client_id", b.cfg.ClientID)
	b.metrics.MQTTConnected(true)
	token := c.Subscribe(b.cfg.Topic, b.cfg.QoS, b.onMessage)
	go func() {
		if token.Wait() && token.Error() != nil {
			b.log.Error("mqtt subscribe failed", "topic", b.cfg.Topic, "error", token.Error())
			return
		}
		b.log.Info("mqtt subscribed", "topic", b.cfg.Topic, "qos", b.cfg.QoS)
	}()
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	b.log.Warn("mqtt connection lost", "error", err)
	b.metrics.MQTTConnected(false)
}

func (b *Bridge) onMessage(_ mqtt.Client, msg mqtt.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	if err := b.Handle(ctx, msg.Topic(), msg.Payload()); err != nil {
		b.log.Warn("mqtt message rejected", "topic", msg.Topic(), "error", err)
	}
}

// Handle ingests one message under its own graph scope.
func (b *Bridge) Handle(ctx context.Context, topic string, payload []byte) error {
	b.metrics.MQTTMessage("received")
	receipt, err := b.handle(ctx, topic, payload)
	if err != nil {
		b.metrics.MQTTMessage("failed")
		return err
	}
	b.metrics.MQTTMessage("processed")
	b.log.Debug("mqtt batch ingested", "farm_id", receipt.FarmID, "layer", receipt.Layer, "inserted", receipt.InsertedCount, "status", receipt.Status)
	return nil
}

func (b *Bridge) handle(ctx context.Context, topic string, payload []byte) (*ingest.Receipt, error) {
	farmID, layer, err := ParseTopic(topic)
	if err != nil {
		return nil, err
	}
	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{
		TraceID: uuid.NewString(),
		FarmID:  farmID.String(),
		Origin:  ctxutil.OriginMQTT,
	})
	raw, err := recordsPayload(payload)
	if err != nil {
		return nil, err
	}
	recs, err := ingest.DecodeRecords(layer, raw)
	if err != nil {
		return nil, err
	}
	return b.ingest.Ingest(graphcache.WithScope(ctx), farmID, layer, recs)
}

// ParseTopic extracts the farm id and layer from agrisense/<farmId>/<layer>/ingest.
func ParseTopic(topic string) (uuid.UUID, farm.Layer, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != "agrisense" || parts[3] != "ingest" {
		return uuid.Nil, "", apperr.Invalid("unexpected topic %q", topic)
	}
	farmID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, "", apperr.Invalid("topic farm id %q is not a uuid", parts[1])
	}
	return farmID, farm.Layer(parts[2]), nil
}

// recordsPayload accepts either a bare JSON array or {"records": [...]}.
func recordsPayload(payload []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, apperr.Invalid("empty payload")
	}
	if trimmed[0] == '[' {
		return json.RawMessage(trimmed), nil
	}
	var env struct {
		Records json.RawMessage `json:"records"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, apperr.Invalid("payload is not json: %v", err)
	}
	if len(env.Records) == 0 || string(env.Records) == "null" {
		return nil, apperr.Invalid("payload has no records")
	}
	return env.Records, nil
}
