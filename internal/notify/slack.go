package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// slackPoster is the slice of the Slack API the notifier needs.
type slackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// SlackNotifier posts a message to a channel when an execution is gated.
type SlackNotifier struct {
	api     slackPoster
	channel string
}

// NewSlackNotifier creates a notifier for the given bot token and channel.
func NewSlackNotifier(token, channel string) *SlackNotifier {
	return &SlackNotifier{
		api:     slack.New(token),
		channel: channel,
	}
}

func (n *SlackNotifier) NotifyPending(ctx context.Context, notice PendingNotice) error {
	text := formatPendingNotice(notice)
	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack notify for execution %s: %w", notice.ExecutionID, err)
	}
	return nil
}

func formatPendingNotice(n PendingNotice) string {
	danger := ""
	if n.Dangerous {
		danger = " [dangerous]"
	}
	text := fmt.Sprintf("Approval required%s: *%s* requested by %s (execution %s)",
		danger, n.Tool, n.Requester, n.ExecutionID)
	if n.ResolveHint != "" {
		text += "\nResolve with: `" + n.ResolveHint + "`"
	}
	return text
}
