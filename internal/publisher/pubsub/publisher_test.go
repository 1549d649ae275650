package pubsub

import (
	"context"
	"testing"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client pointed at an emulator address that is never
// dialed: topic handle creation is an offline operation.
func newTestClient(t *testing.T) *gpubsub.Client {
	t.Helper()
	t.Setenv("PUBSUB_EMULATOR_HOST", "localhost:1")
	client, err := gpubsub.NewClient(context.Background(), "test-project")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestPublishRequiresConfiguredClient(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "found-files", "x")
	assert.Error(t, err)
}

func TestPublishRequiresTopic(t *testing.T) {
	client := newTestClient(t)

	_, err := New(client).Publish(context.Background(), "", "x")
	assert.Error(t, err)
}

func TestTopicHandleIsReused(t *testing.T) {
	client := newTestClient(t)
	p := New(client)

	first := p.topic("found-files")
	assert.Same(t, first, p.topic("found-files"), "repeat publishes share one handle")

	p.Close()
	assert.NotSame(t, first, p.topic("found-files"), "Close releases the cached handles")
}
