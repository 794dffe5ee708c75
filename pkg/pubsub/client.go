// Package pubsub publishes outbox events to Google Cloud Pub/Sub topics.
package pubsub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/logger"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/registry"
)

// OrderingAttribute names the message attribute used as ordering key, so
// events of one order reach subscribers in the order they were emitted.
const OrderingAttribute = "aggregate_id"

type Params struct {
	GCP    config.GCPConfig
	PubSub config.PubSubConfig
	Topics []string
	Logger *logger.Logger
}

type Client struct {
	client    *pubsub.Client
	projectID string
	topics    []string
	ordered   bool
	verify    bool
	logg      *logger.Logger

	mu         sync.Mutex
	publishers map[string]*pubsub.Publisher
}

var (
	errProjectIDRequired = errors.New("gcp project id is required")
	errNoTopics          = errors.New("at least one pubsub topic is required")
	errNotInitialized    = errors.New("pubsub client not initialized")
)

// NewClient connects to Pub/Sub and, unless disabled, checks that every topic
// the registry publishes to already exists.
func NewClient(ctx context.Context, params Params) (*Client, error) {
	projectID := strings.TrimSpace(params.GCP.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	topics := normalizeTopics(projectID, params.Topics)
	if len(topics) == 0 {
		return nil, errNoTopics
	}

	psClient, err := pubsub.NewClient(ctx, projectID, clientOptions(params.GCP, params.PubSub)...)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	c := &Client{
		client:     psClient,
		projectID:  projectID,
		topics:     topics,
		ordered:    params.PubSub.OrderedByKey,
		verify:     params.PubSub.VerifyTopics,
		logg:       params.Logger,
		publishers: map[string]*pubsub.Publisher{},
	}
	if c.verify {
		if err := c.checkTopics(ctx); err != nil {
			_ = psClient.Close()
			return nil, err
		}
	}
	if c.logg != nil {
		c.logg.Info(c.logg.WithFields(ctx, map[string]any{
			"topics":  topics,
			"ordered": c.ordered,
		}), "pubsub client initialized")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig, cfg config.PubSubConfig) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(gcp.CredentialsJSON)))
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		opts = append(opts, option.WithCredentialsFile(gcp.ApplicationCredentials))
	}
	// ordering keys are only honoured by regional endpoints
	if endpoint := strings.TrimSpace(cfg.Endpoint); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}
	return opts
}

func normalizeTopics(projectID string, names []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(names))
	for _, name := range names {
		full := topicResourceName(projectID, name)
		if full == "" {
			continue
		}
		if _, dup := seen[full]; dup {
			continue
		}
		seen[full] = struct{}{}
		out = append(out, full)
	}
	return out
}

func (c *Client) checkTopics(ctx context.Context) error {
	for _, name := range c.topics {
		_, err := c.client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
		switch {
		case status.Code(err) == codes.NotFound:
			return fmt.Errorf("topic %s does not exist", name)
		case err != nil:
			return fmt.Errorf("checking topic %s: %w", name, err)
		}
	}
	return nil
}

func (c *Client) publisher(name string) *pubsub.Publisher {
	if c == nil || c.client == nil {
		return nil
	}
	full := topicResourceName(c.projectID, name)
	if full == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.publishers[full]; ok {
		return p
	}
	p := c.client.Publisher(full)
	p.EnableMessageOrdering = c.ordered
	c.publishers[full] = p
	return p
}

// Publish blocks until the broker assigns a message id. Failures the broker
// will never accept come back as registry.NonRetryableError.
func (c *Client) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	p := c.publisher(topic)
	if p == nil {
		return "", registry.NewNonRetryableError(fmt.Errorf("no publisher for topic %q", topic))
	}
	msg := &pubsub.Message{Data: data, Attributes: attrs}
	if c.ordered {
		msg.OrderingKey = attrs[OrderingAttribute]
	}
	id, err := p.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if msg.OrderingKey != "" {
			// a failed publish pauses its key until resumed; the outbox retries it
			p.ResumePublish(msg.OrderingKey)
		}
		return "", classify(err)
	}
	return id, nil
}

func classify(err error) error {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.NotFound, codes.PermissionDenied, codes.FailedPrecondition:
		return registry.NewNonRetryableError(err)
	default:
		return err
	}
}

// Ping checks the configured topics are still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.client == nil {
		return errNotInitialized
	}
	return c.checkTopics(ctx)
}

// Close flushes pending publishes and releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	c.mu.Lock()
	for name, p := range c.publishers {
		p.Stop()
		delete(c.publishers, name)
	}
	c.mu.Unlock()
	return c.client.Close()
}

func topicResourceName(projectID, name string) string {
	n := strings.TrimSpace(name)
	if n == "" {
		return ""
	}
	if strings.HasPrefix(n, "projects/") && strings.Contains(n, "/topics/") {
		return n
	}
	p := strings.TrimSpace(projectID)
	if p == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/topics/%s", p, n)
}
