package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"

	"publishbot/internal/eventbus"
	kit "publishbot/internal/transport"
	logx "publishbot/pkg/logx"
)

// BridgeConfig picks which publish events become operator alerts.
// Failures are always forwarded.
type BridgeConfig struct {
	Channel         string
	Target          kit.ChatTarget
	NotifyOnPublish bool // also forward publish.sent and publish.quota_reached
}

// Forward consumes bus events until ctx is done or the subscription closes.
func Forward(ctx context.Context, bus eventbus.Bus, svc *Service, cfg BridgeConfig, log logx.Logger) error {
	ch, unsub := bus.Subscribe(64)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			n, ok := NotificationFor(ev, cfg)
			if !ok {
				continue
			}
			if err := svc.Notify(ctx, n); err != nil && !errors.Is(err, ErrDisabled) {
				log.Warn("operator alert not queued", logx.String("event", ev.Type), logx.Err(err))
			}
		}
	}
}

// NotificationFor maps a publish event to an alert; ok is false for events
// that should not be forwarded.
func NotificationFor(ev eventbus.Event, cfg BridgeConfig) (kit.Notification, bool) {
	pe, _ := ev.Data.(eventbus.PublishEvent)
	n := kit.Notification{
		Channel: cfg.Channel,
		Target:  cfg.Target,
		Options: &kit.SendOptions{ParseMode: "HTML", DisablePreview: true},
	}
	if n.Channel == "" {
		n.Channel = "telegram"
	}
	title := html.EscapeString(pe.Title)

	switch ev.Type {
	case eventbus.TypePublishFailed:
		n.Priority = PriorityFailed
		n.Text = fmt.Sprintf("<b>[%s] delivery failed</b>\nArticle #%d %s\n%s", pe.Lang, pe.ArticleID, title, html.EscapeString(pe.Reason))
	case eventbus.TypePublishSent:
		if !cfg.NotifyOnPublish {
			return n, false
		}
		n.Priority = PriorityPublished
		n.Text = fmt.Sprintf("[%s] published #%d %s (%d/%d today)", pe.Lang, pe.ArticleID, title, pe.Today, pe.Quota)
	case eventbus.TypeQuotaReached:
		if !cfg.NotifyOnPublish {
			return n, false
		}
		n.Priority = PriorityQuotaReached
		n.Text = fmt.Sprintf("[%s] daily quota reached (%d/%d)", pe.Lang, pe.Today, pe.Quota)
	default:
		return n, false
	}
	return n, true
}
