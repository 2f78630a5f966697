// Package redis wraps go-redis with meetscribe logging and component
// lifecycle. It backs two optional concerns of the service: the artifact
// cache (transcription tokens and diarization turns kept between runs) and
// the progress pub/sub channel `meeting:{id}` that external listeners can
// subscribe to.
//
//	comp := redis.NewComponent(cfg.Redis, log)
//	cache := redis.NewTypedStore[[]meeting.Token](comp.Client(), "tokens")
//	_ = comp.Client().Publish(ctx, redis.MeetingChannel(id), payload)
package redis
