package registry

import (
	"time"

	"github.com/giongto35/voice-relay/pkg/api"
	"github.com/giongto35/voice-relay/pkg/bridge"
	"github.com/giongto35/voice-relay/pkg/logger"
	"github.com/giongto35/voice-relay/pkg/network/websocket"
	"github.com/giongto35/voice-relay/pkg/session"
	"github.com/pkg/errors"
)

// controllable is a player that can be driven by the client.
type controllable interface {
	Play(identifier string, from time.Duration) error
	Pause(pause bool)
}

var errNotControllable = errors.New("player can't be controlled")

func (r *Registry) handler(ctx *session.Context) websocket.MessageHandler {
	return func(message []byte, err error) {
		if err != nil {
			r.log.Error().Err(err).Send()
			return
		}
		if err = r.handle(ctx, message); err != nil {
			r.log.Warn().Err(err).Str(logger.UserField, ctx.UserId()).Msgf("Bad message: %s", message)
		}
	}
}

func (r *Registry) handle(ctx *session.Context, message []byte) error {
	in, err := api.Parse(message)
	if err != nil {
		return err
	}
	r.log.Debug().Str(logger.UserField, ctx.UserId()).Str(logger.DirectionField, "←").Msgf("%v", in.Op)

	switch in.Op {
	case api.OpConfigureResuming:
		rq := api.Unwrap[api.ConfigureResumingRequest](message)
		if rq == nil {
			return api.ErrMalformed
		}
		ctx.SetResumeKey(rq.Key)
		ctx.SetResumeTimeout(time.Duration(rq.Timeout) * time.Second)
		r.log.Debug().Str(logger.UserField, ctx.UserId()).Bool("on", rq.Key != "").Msg("Resuming configured")
	case api.OpPlay:
		rq := api.Unwrap[api.PlayRequest](message)
		if rq == nil || in.GuildId == "" {
			return api.ErrMalformed
		}
		p, err := r.controllable(ctx, in.GuildId)
		if err != nil {
			return err
		}
		return p.Play(rq.Track, time.Duration(rq.StartTime)*time.Millisecond)
	case api.OpPause:
		rq := api.Unwrap[api.PauseRequest](message)
		if rq == nil || in.GuildId == "" {
			return api.ErrMalformed
		}
		p, err := r.controllable(ctx, in.GuildId)
		if err != nil {
			return err
		}
		p.Pause(rq.Pause)
	case api.OpStop:
		if p, ok := ctx.Player(in.GuildId); ok {
			p.Stop()
		}
	case api.OpDestroy:
		if p, ok := ctx.Player(in.GuildId); ok {
			p.Stop()
		}
		ctx.Bridge().CloseConnection(bridge.Member{UserId: ctx.UserId(), GuildId: in.GuildId})
	default:
		return errors.Wrapf(api.ErrUnknownOp, "%v", in.Op)
	}
	return nil
}

func (r *Registry) controllable(ctx *session.Context, guildId string) (controllable, error) {
	p, err := ctx.GetOrCreatePlayer(guildId)
	if err != nil {
		return nil, err
	}
	c, ok := p.(controllable)
	if !ok {
		return nil, errNotControllable
	}
	return c, nil
}
