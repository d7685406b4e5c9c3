package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/centrifugal/centrifuge"
	"github.com/google/uuid"

	"github.com/pscheid92/kioskads/internal/adapter/metrics"
	"github.com/pscheid92/kioskads/internal/domain"
)

type instanceUpdate struct {
	Type string              `json:"type"`
	View domain.InstanceView `json:"view"`
}

// channelPublisher is the subset of *centrifuge.Node the presenter needs.
type channelPublisher interface {
	Publish(channel string, data []byte, opts ...centrifuge.PublishOption) (centrifuge.PublishResult, error)
}

// Presenter pushes instance views to the kiosk clients of a session.
type Presenter struct {
	node      channelPublisher
	wsMetrics *metrics.WebSocketMetrics
}

func NewPresenter(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *Presenter {
	return &Presenter{node: node, wsMetrics: wsMetrics}
}

func (p *Presenter) Present(ctx context.Context, sessionID uuid.UUID, view domain.InstanceView) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(instanceUpdate{Type: "instance", View: view})
	if err != nil {
		return fmt.Errorf("marshal instance update: %w", err)
	}

	channel := Channel(sessionID)
	if _, err := p.node.Publish(channel, data); err != nil {
		return fmt.Errorf("publish to channel %s: %w", channel, err)
	}

	if p.wsMetrics != nil {
		p.wsMetrics.UpdatesPublished.Inc()
	}
	return nil
}
