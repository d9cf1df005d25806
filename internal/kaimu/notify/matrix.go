package notify

import (
	"context"
	"fmt"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Kaimu/common/retry"
)

// MatrixConfig holds the outbound Matrix client configuration.
type MatrixConfig struct {
	Homeserver  string
	UserID      string
	AccessToken string
}

// MatrixClient is an outbound-only Matrix client. Kaimu never syncs or
// reads Matrix rooms; the homeserver is purely a notification sink.
type MatrixClient struct {
	client *mautrix.Client
}

// NewMatrixClient creates an outbound Matrix client.
func NewMatrixClient(cfg MatrixConfig) (*MatrixClient, error) {
	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("notify: failed to create Matrix client: %w", err)
	}
	return &MatrixClient{client: client}, nil
}

// sendRetry keeps notification sends short. Notices are best-effort; a
// homeserver outage must never back up the chat pipeline.
var sendRetry = retry.Config{
	MaxAttempts:  2,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     2 * time.Second,
}

// SendNotice posts a notice message (less intrusive than normal messages)
// to roomID, retrying once on transient failure.
func (c *MatrixClient) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}

	err := retry.Do(ctx, sendRetry, func() error {
		_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
		return err
	})
	if err != nil {
		return fmt.Errorf("notify: failed to send notice: %w", err)
	}
	return nil
}
