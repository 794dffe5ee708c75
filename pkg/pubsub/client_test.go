package pubsub

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/homecook-backend/pkg/config"
	"github.com/angelmondragon/homecook-backend/pkg/outbox/registry"
)

func TestTopicResourceName(t *testing.T) {
	cases := map[string]string{
		"gifts":                       "projects/p1/topics/gifts",
		"  gifts ":                    "projects/p1/topics/gifts",
		"projects/other/topics/gifts": "projects/other/topics/gifts",
		"":                            "",
	}
	for in, want := range cases {
		assert.Equal(t, want, topicResourceName("p1", in), "input %q", in)
	}
	assert.Empty(t, topicResourceName("", "gifts"))
}

func TestNormalizeTopicsDedupesAndSkipsBlank(t *testing.T) {
	got := normalizeTopics("p1", []string{"gifts", " ", "projects/p1/topics/gifts", "orders"})
	assert.Equal(t, []string{"projects/p1/topics/gifts", "projects/p1/topics/orders"}, got)
}

func TestClientOptions(t *testing.T) {
	assert.Empty(t, clientOptions(config.GCPConfig{}, config.PubSubConfig{}))
	assert.Len(t, clientOptions(
		config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/tmp/sa.json"},
		config.PubSubConfig{Endpoint: "us-east1-pubsub.googleapis.com:443"},
	), 2)
}

func TestNewClientValidatesInputs(t *testing.T) {
	_, err := NewClient(context.Background(), Params{Topics: []string{"gifts"}})
	assert.ErrorIs(t, err, errProjectIDRequired)

	_, err = NewClient(context.Background(), Params{GCP: config.GCPConfig{ProjectID: "p1"}, Topics: []string{" "}})
	assert.ErrorIs(t, err, errNoTopics)
}

func TestClassifyPublishErrors(t *testing.T) {
	assert.True(t, registry.IsNonRetryable(classify(status.Error(codes.NotFound, "no topic"))))
	assert.True(t, registry.IsNonRetryable(classify(status.Error(codes.PermissionDenied, "denied"))))
	assert.False(t, registry.IsNonRetryable(classify(status.Error(codes.Unavailable, "try later"))))
}

func TestNilClient(t *testing.T) {
	var c *Client
	assert.Nil(t, c.publisher("gifts"))
	assert.ErrorIs(t, c.Ping(context.Background()), errNotInitialized)
	assert.NoError(t, c.Close())

	_, err := (&Client{}).Publish(context.Background(), "gifts", nil, nil)
	assert.True(t, registry.IsNonRetryable(err))
}
