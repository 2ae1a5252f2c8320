package dispatch

import (
	"context"
	"fmt"

	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
	"github.com/garyellow/line-webhook-bridge/internal/event"
	"github.com/garyellow/line-webhook-bridge/internal/lineapi"
)

// reply sends text when the event carries a reply token.
func (e *Engine) reply(ctx context.Context, ev event.Event, text string) error {
	if ev.ReplyToken == "" {
		e.logger.WithField("event_type", string(ev.Type)).Debug("No reply token; skipping reply")
		return nil
	}
	if err := e.messenger.ReplyMessage(ctx, ev.ReplyToken, text); err != nil {
		return fmt.Errorf("reply to %s: %w", ev.Type, err)
	}
	return nil
}

func (e *Engine) profile(ctx context.Context, ev event.Event) (*lineapi.UserProfile, error) {
	if ev.Source.UserID == "" {
		return nil, fmt.Errorf("get profile for %s: no user id in %s source: %w", ev.Type, ev.Source.Type, domerrors.ErrNotFound)
	}
	profile, err := e.messenger.GetUserProfile(ctx, ev.Source.UserID)
	if err != nil {
		return nil, fmt.Errorf("get profile for %s: %w", ev.Type, err)
	}
	return profile, nil
}

func (e *Engine) handleMessage(ctx context.Context, ev event.Event) error {
	text, ok := ev.Message.TextContent()
	if !ok {
		return nil
	}

	profile, err := e.profile(ctx, ev)
	if err != nil {
		return err
	}
	return e.reply(ctx, ev, fmt.Sprintf("Hello, %s! You said: %s", profile.DisplayName, text))
}

func (e *Engine) handleFollow(ctx context.Context, ev event.Event) error {
	profile, err := e.profile(ctx, ev)
	if err != nil {
		return err
	}
	return e.reply(ctx, ev, fmt.Sprintf("Hello, %s! Thanks for following!", profile.DisplayName))
}

func (e *Engine) handleUnfollow(ctx context.Context, ev event.Event) error {
	profile, err := e.profile(ctx, ev)
	if err != nil {
		return err
	}
	e.logger.WithField("display_name", profile.DisplayName).InfoContext(ctx, "User unfollowed the bot")
	return nil
}

func (e *Engine) handleJoin(ctx context.Context, ev event.Event) error {
	return e.reply(ctx, ev, "Thanks for inviting me!")
}

func (e *Engine) handleLeave(ctx context.Context, ev event.Event) error {
	e.logger.WithField("chat_id", ev.Source.ChatID()).InfoContext(ctx, "Bot was removed from chat")
	return nil
}

func (e *Engine) handlePostback(ctx context.Context, ev event.Event) error {
	var data string
	if ev.Postback != nil {
		data = ev.Postback.Data
	}
	return e.reply(ctx, ev, "Received postback data: "+data)
}

func (e *Engine) handleBeacon(ctx context.Context, ev event.Event) error {
	var beaconType string
	if ev.Beacon != nil {
		beaconType = ev.Beacon.Type
	}
	return e.reply(ctx, ev, "Received beacon event: "+beaconType)
}

func (e *Engine) handleAccountLink(ctx context.Context, ev event.Event) error {
	return e.reply(ctx, ev, "Received account link event: "+ev.Source.UserID)
}

func (e *Engine) handleMemberJoined(ctx context.Context, ev event.Event) error {
	return e.reply(ctx, ev, fmt.Sprintf("Received member joined event: %d members", ev.Joined.Count()))
}

func (e *Engine) handleMemberLeft(ctx context.Context, ev event.Event) error {
	return e.reply(ctx, ev, fmt.Sprintf("Received member left event: %d members", ev.Left.Count()))
}
