package mqtt

import (
	"context"
	"net"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/trolltrack/trolltrack/internal/conf"
	"github.com/trolltrack/trolltrack/internal/errors"
	"github.com/trolltrack/trolltrack/internal/logger"
	"github.com/trolltrack/trolltrack/internal/observability/metrics"
)

// client implements Client on top of paho. Reconnects after a lost
// connection are left to paho's auto reconnect.
type client struct {
	config          Config
	internalClient  paho.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	log             logger.Logger
	metrics         *metrics.CatchFeedMetrics
}

// NewClient creates a paho backed client from settings. m may be nil.
func NewClient(settings *conf.Settings, log logger.Logger, m *metrics.CatchFeedMetrics) (Client, error) {
	cfg := DefaultConfig()
	cfg.Broker = settings.MQTT.Broker
	cfg.ClientID = settings.MQTT.ClientID
	cfg.Username = settings.MQTT.Username
	cfg.Password = settings.MQTT.Password
	if settings.MQTT.Topic != "" {
		cfg.Topic = settings.MQTT.Topic
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "trolltrack"
		if settings.Main.Name != "" {
			cfg.ClientID = "trolltrack-" + settings.Main.Name
		}
	}
	return newClient(cfg, log, m)
}

func newClient(cfg Config, log logger.Logger, m *metrics.CatchFeedMetrics) (*client, error) {
	if _, err := parseBroker(cfg.Broker); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return &client{
		config:  cfg,
		log:     log.Module("mqtt"),
		metrics: m,
	}, nil
}

func parseBroker(broker string) (*url.URL, error) {
	u, err := url.Parse(broker)
	if err == nil && (u.Scheme == "" || u.Hostname() == "") {
		err = errors.NewStd("broker must look like tcp://host:1883")
	}
	if err != nil {
		return nil, errors.New(err).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Context("broker", broker).
			Build()
	}
	return u, nil
}

// Connect resolves the broker host and then connects.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if since := time.Since(c.lastConnAttempt); since < c.config.ReconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", since.Round(time.Millisecond)).
			Component("mqtt").
			Category(errors.CategoryState).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := parseBroker(c.config.Broker)
	if err != nil {
		return err
	}

	host := u.Hostname()
	if net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return c.connectivityError(err, "resolve")
		}
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.internalClient = paho.NewClient(opts)

	token := c.internalClient.Connect()
	if !waitToken(ctx, token, c.config.ConnectTimeout) {
		return c.connectivityError(errors.NewStd("connection timeout"), "connect")
	}
	if err := token.Error(); err != nil {
		return c.connectivityError(err, "connect")
	}

	if c.metrics != nil {
		c.metrics.SetBrokerUp(true)
	}
	return nil
}

// Publish sends payload with the configured QoS and retain flag.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryConnectivity).
			Context("topic", topic).
			Build()
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)
	var err error
	if !waitToken(ctx, token, c.config.PublishTimeout) {
		err = c.connectivityError(errors.NewStd("publish timeout"), "publish")
	} else if tokenErr := token.Error(); tokenErr != nil {
		err = c.connectivityError(tokenErr, "publish")
	}
	if c.metrics != nil {
		c.metrics.RecordCatchSent(topic, len(payload), time.Since(start), err)
	}
	if err != nil {
		return err
	}
	c.log.Debug("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient == nil {
		return
	}
	c.internalClient.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
	c.internalClient = nil
	if c.metrics != nil {
		c.metrics.SetBrokerUp(false)
	}
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", c.config.Broker))
	if c.metrics != nil {
		c.metrics.SetBrokerUp(true)
	}
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", c.config.Broker),
		logger.Error(err))
	if c.metrics != nil {
		c.metrics.RecordConnectionLost()
	}
}

func (c *client) onReconnecting(paho.Client, *paho.ClientOptions) {
	if c.metrics != nil {
		c.metrics.RecordReconnect()
	}
}

func (c *client) connectivityError(err error, stage string) error {
	return errors.New(err).
		Component("mqtt").
		Category(errors.CategoryConnectivity).
		Context("broker", c.config.Broker).
		Context("stage", stage).
		Build()
}

// waitToken waits for the token, the timeout or the context, whichever
// ends first, and reports whether the token completed.
func waitToken(ctx context.Context, token paho.Token, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}
