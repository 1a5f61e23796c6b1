package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/eksternvarsling/internal/pkg/clock"
	"github.com/shandysiswandi/eksternvarsling/internal/varsling/entity"
)

// ChannelDecider picks the delivery channel of a sending. SMS is only chosen
// for conditional preferences while the local time of day is strictly inside
// the SMS window.
type ChannelDecider struct {
	start time.Duration
	end   time.Duration
	loc   *time.Location
	clock clock.Clocker
}

// NewChannelDecider parses start and end as "15:04" in the named timezone.
func NewChannelDecider(start, end, timezone string, clk clock.Clocker) (*ChannelDecider, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("sms window timezone: %w", err)
	}

	from, err := timeOfDay(start)
	if err != nil {
		return nil, fmt.Errorf("sms window start: %w", err)
	}
	to, err := timeOfDay(end)
	if err != nil {
		return nil, fmt.Errorf("sms window end: %w", err)
	}

	return &ChannelDecider{start: from, end: to, loc: loc, clock: clk}, nil
}

func timeOfDay(raw string) (time.Duration, error) {
	t, err := time.Parse("15:04", raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// Decide returns the channel for the eligible notifications of the sending.
func (d *ChannelDecider) Decide(ctx context.Context, sending entity.Sending) entity.Channel {
	channels := lo.Uniq(lo.FlatMap(sending.EligibleNotifications(), func(n entity.Notification, _ int) []entity.Channel {
		return n.PreferredChannels
	}))

	switch {
	case sending.IsBatch:
		switch {
		case lo.Contains(channels, entity.ChannelConditionalSMS):
			return d.windowChannel()
		case lo.Contains(channels, entity.ChannelSMS):
			return entity.ChannelSMS
		default:
			return entity.ChannelEmail
		}
	case len(channels) > 1:
		channel := d.windowChannel()
		slog.InfoContext(ctx, "several channels preferred, picked by sms window",
			"sending_id", sending.ID,
			"preferred", channels,
			"channel", channel.String(),
		)
		return channel
	case len(channels) == 1:
		if channels[0] == entity.ChannelConditionalSMS {
			return d.windowChannel()
		}
		return channels[0]
	default:
		return entity.ChannelEmail
	}
}

func (d *ChannelDecider) windowChannel() entity.Channel {
	if d.insideWindow() {
		return entity.ChannelSMS
	}
	return entity.ChannelEmail
}

func (d *ChannelDecider) insideWindow() bool {
	now := d.clock.Now().In(d.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, d.loc)
	tod := now.Sub(midnight)

	return d.start < tod && tod < d.end
}
