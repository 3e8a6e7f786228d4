package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newFakeTopic(t *testing.T) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	client, err := pubsub.NewClient(ctx, "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "crawled-pages")
	require.NoError(t, err)
	t.Cleanup(topic.Stop)
	return srv, topic
}

func TestPublisher_PublishesJSON(t *testing.T) {
	t.Parallel()

	srv, topic := newFakeTopic(t)
	pub := New(topic, map[string]string{"source": "spider-client"})

	id, err := pub.Publish(context.Background(), "crawled-pages", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.JSONEq(t, `{"url":"https://example.com"}`, string(msgs[0].Data))
	require.Equal(t, "spider-client", msgs[0].Attributes["source"])
}

func TestPublisher_Unconfigured(t *testing.T) {
	t.Parallel()

	_, err := New(nil, nil).Publish(context.Background(), "t", "payload")
	require.Error(t, err)
}

func TestPublisher_UnmarshalablePayload(t *testing.T) {
	t.Parallel()

	_, topic := newFakeTopic(t)
	_, err := New(topic, nil).Publish(context.Background(), "t", make(chan int))
	require.Error(t, err)
}

func TestOpen_RequiresTopic(t *testing.T) {
	t.Parallel()

	_, _, err := Open(context.Background(), "proj", "", nil)
	require.Error(t, err)
}
