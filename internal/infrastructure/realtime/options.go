package realtime

import (
	"time"

	"voice-navigator/internal/infrastructure/config"
)

type Options struct {
	Transport      string
	BaseURL        string
	Model          string
	Voice          string
	EphemeralKey   bool
	STUNServer     string
	ConnectTimeout time.Duration
	ChannelTimeout time.Duration

	// AudioIn is an Ogg/Opus file played as the microphone, "-" for stdin.
	// Empty makes the audio line receive-only.
	AudioIn string
	// AudioOut receives the remote audio as an Ogg file when set.
	AudioOut string
}

func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Transport:      cfg.Realtime.Transport,
		BaseURL:        cfg.Realtime.BaseURL,
		Model:          cfg.Realtime.Model,
		Voice:          cfg.Realtime.Voice,
		EphemeralKey:   cfg.Realtime.EphemeralKey,
		STUNServer:     cfg.Realtime.STUNServer,
		ConnectTimeout: cfg.Realtime.ConnectTimeout,
		ChannelTimeout: cfg.Realtime.ChannelTimeout,
		AudioIn:        cfg.Audio.Input,
		AudioOut:       cfg.Audio.Output,
	}
}
