package lsningestor

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Config"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
)

// Submitter accepts envelopes for delivery
type Submitter interface {
	Submit(env Envelope) error
}

// MQTTSource subscribes to gateway topics and hands each reading to a Submitter
type MQTTSource struct {
	cfg        config.MQTTConfig
	brokerURL  string
	sink       Submitter
	mqttClient mqtt.Client
	now        func() time.Time
	logger     *logger.Logger
}

func NewMQTTSource(cfg *config.IngestorConfig, sink Submitter, log *logger.Logger) *MQTTSource {
	return &MQTTSource{
		cfg:       cfg.MQTT,
		brokerURL: cfg.GetMQTTBrokerURL(),
		sink:      sink,
		now:       time.Now,
		logger:    log.WithComponent("mqtt_source"),
	}
}

func (s *MQTTSource) Name() string { return "mqtt" }

// SubscriptionTopic is the topic filter passed to the broker
func (s *MQTTSource) SubscriptionTopic() string {
	if s.cfg.SharedGroup != "" {
		return fmt.Sprintf("$share/%s/%s", s.cfg.SharedGroup, s.cfg.Topic)
	}
	return s.cfg.Topic
}

func (s *MQTTSource) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(s.brokerURL).
		SetClientID(s.cfg.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(s.cfg.KeepAlive).
		SetPingTimeout(s.cfg.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if s.cfg.BrokerUser != "" {
		opts.SetUsername(s.cfg.BrokerUser)
		opts.SetPassword(s.cfg.BrokerPass)
	}

	if s.cfg.UseTLS {
		tlsCfg, err := tlsConfig(s.cfg.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		s.logger.Logger.Error().Err(err).Msg("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := s.SubscriptionTopic()
		s.logger.Logger.Info().Str("topic", topic).Msg("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, s.onMessage); token.Wait() && token.Error() != nil {
			s.logger.Logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic")
		}
	}

	s.mqttClient = mqtt.NewClient(opts)
	if tk := s.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}
	return nil
}

func (s *MQTTSource) Stop() {
	if s.mqttClient != nil && s.mqttClient.IsConnected() {
		s.mqttClient.Disconnect(500)
	}
}

func (s *MQTTSource) IsConnected() bool {
	return s.mqttClient != nil && s.mqttClient.IsConnected()
}

func (s *MQTTSource) onMessage(_ mqtt.Client, m mqtt.Message) {
	s.handle(m.Topic(), m.Payload())
}

// handle turns one broker message into an envelope
func (s *MQTTSource) handle(topic string, raw []byte) {
	s.logger.Logger.Debug().Str("topic", topic).Int("bytes", len(raw)).Msg("Received MQTT message")

	gatewayID, topicNode, ok := ParseTopic(topic)
	if !ok {
		s.logger.Logger.Warn().Str("topic", topic).Str("expected", "lora/<gateway_id>/<node_id>").Msg("Topic does not carry gateway and node ids")
	}

	payload, err := DecodePayload(raw)
	if err != nil {
		nodeID := topicNode
		if nodeID == "" {
			nodeID = "unknown"
		}
		s.logger.WithNode(nodeID).WithField("topic", topic).Warn("Rejecting non-JSON payload")
		s.ReportError(nodeID, "invalid_payload", "Payload is not a JSON object")
		return
	}
	FillIDs(payload, gatewayID, topicNode)

	env := Envelope{
		Source:     s.Name(),
		NodeID:     NodeIDOf(payload),
		Payload:    payload,
		ReceivedAt: s.now().UTC(),
	}
	if err := s.sink.Submit(env); err != nil {
		s.ReportError(env.NodeID, "queue_full", err.Error())
	}
}

// ReportError publishes feedback for a gateway on ingestor/errors/<node_id>
func (s *MQTTSource) ReportError(nodeID, errorType, message string) {
	if !s.IsConnected() {
		return
	}

	payloadJSON, err := json.Marshal(map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"node_id":    nodeID,
		"timestamp":  s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.logger.Logger.Error().Err(err).Msg("Failed to marshal error payload")
		return
	}

	errorTopic := ErrorTopic(nodeID)
	token := s.mqttClient.Publish(errorTopic, 1, false, payloadJSON)
	if token.Wait() && token.Error() != nil {
		s.logger.Logger.Error().Err(token.Error()).Str("topic", errorTopic).Msg("Failed to publish error")
		return
	}
	s.logger.Logger.Info().Str("topic", errorTopic).Str("message", message).Msg("Published error")
}

// ErrorTopic is where refusals for a node are published
func ErrorTopic(nodeID string) string {
	return "ingestor/errors/" + nodeID
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}
