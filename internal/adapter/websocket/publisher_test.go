package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/kioskads/internal/adapter/metrics"
	"github.com/pscheid92/kioskads/internal/domain"
)

type recordingNode struct {
	channel string
	data    []byte
	err     error
}

func (n *recordingNode) Publish(channel string, data []byte, _ ...centrifuge.PublishOption) (centrifuge.PublishResult, error) {
	n.channel = channel
	n.data = data
	return centrifuge.PublishResult{}, n.err
}

func TestPresenter_PublishesViewOnSessionChannel(t *testing.T) {
	node := &recordingNode{}
	wsMetrics := metrics.NewWebSocketMetrics(prometheus.NewRegistry())
	p := &Presenter{node: node, wsMetrics: wsMetrics}

	sessionID := uuid.New()
	view := domain.InstanceView{
		ID:           uuid.New(),
		DefinitionID: "popup-1",
		Kind:         domain.KindPopup,
		State:        domain.StateVisible,
	}
	require.NoError(t, p.Present(context.Background(), sessionID, view))

	assert.Equal(t, "overlay:"+sessionID.String(), node.channel)

	var decoded struct {
		Type string         `json:"type"`
		View map[string]any `json:"view"`
	}
	require.NoError(t, json.Unmarshal(node.data, &decoded))
	assert.Equal(t, "instance", decoded.Type)
	assert.Equal(t, "visible", decoded.View["state"])
	assert.Equal(t, "popup", decoded.View["kind"])
	assert.InDelta(t, 1, testutil.ToFloat64(wsMetrics.UpdatesPublished), 0)
}

func TestPresenter_PublishError(t *testing.T) {
	node := &recordingNode{err: errors.New("broker down")}
	p := &Presenter{node: node}

	err := p.Present(context.Background(), uuid.New(), domain.InstanceView{})
	assert.ErrorContains(t, err, "broker down")
}

func TestPresenter_CanceledContextSkipsPublish(t *testing.T) {
	node := &recordingNode{}
	p := &Presenter{node: node}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Present(ctx, uuid.New(), domain.InstanceView{}), context.Canceled)
	assert.Empty(t, node.channel)
}

type staticSessions map[uuid.UUID]bool

func (s staticSessions) SessionExists(id uuid.UUID) bool { return s[id] }

func TestOnConnecting(t *testing.T) {
	known := uuid.New()
	handler := onConnecting(staticSessions{known: true})

	connect := func(userID string) (centrifuge.ConnectReply, error) {
		ctx := context.Background()
		if userID != "" {
			ctx = centrifuge.SetCredentials(ctx, &centrifuge.Credentials{UserID: userID})
		}
		return handler(ctx, centrifuge.ConnectEvent{})
	}

	reply, err := connect(known.String())
	require.NoError(t, err)
	assert.Contains(t, reply.Subscriptions, Channel(known))

	_, err = connect("")
	assert.Error(t, err)
	_, err = connect("not-a-uuid")
	assert.Error(t, err)
	_, err = connect(uuid.NewString())
	assert.Error(t, err)
}
