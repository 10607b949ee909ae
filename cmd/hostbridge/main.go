// Command hostbridge runs a demo host: a repeating timer and a gain mixer
// whose callbacks are marshalled onto the host thread by the bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corrreia/hostbridge/internal/audio"
	"github.com/corrreia/hostbridge/pkg/hostbridge"
)

var configPaths = []string{
	"configs/hostbridge.yaml",
	"/etc/hostbridge/hostbridge.yaml",
	"hostbridge.yaml",
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "hostbridge:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file (default: search standard locations)")
	gain := flag.Float64("gain", 0.5, "mixer gain applied on the host thread")
	tone := flag.Float64("tone", 440, "test tone frequency in Hz, 0 for silence")
	every := flag.Duration("every", time.Second, "status timer period")
	flag.Parse()

	paths := configPaths
	if *configPath != "" {
		paths = []string{*configPath}
	}
	cfg, used, err := hostbridge.LoadConfig(paths...)
	if err != nil {
		return err
	}

	log := hostbridge.GetLogger("Demo")
	if used == "" {
		log.Info("no config file found, using defaults")
	} else {
		log.Info("loaded config from %s", used)
	}

	var opts []hostbridge.Option
	if *tone > 0 {
		spec := audio.Spec{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			Samples:    cfg.Audio.Samples,
		}
		opts = append(opts, hostbridge.WithAudioSource(audio.Tone(spec, *tone, 0.25)))
	}

	host, err := hostbridge.Open(cfg, opts...)
	if err != nil {
		return err
	}
	defer host.Close()

	log = log.WithField("session", host.Session())

	if cfg.Audio.Enabled {
		factor := *gain
		if err := host.SetMixer(func(stream []byte) { audio.Gain(stream, factor) }); err != nil {
			return err
		}
	}

	host.OnIncident("bridge.timeout", func(data map[string]any) {
		log.Debug("handshake timeout on %v channel", data["channel"])
	})

	ticks := 0
	host.Every(*every, func() {
		ticks++
		s := host.Stats()
		log.Info("status #%d: timer %d/%d timeouts, mixer %d/%d timeouts, dispatched %d",
			ticks, s.TimerTimeouts, s.TimerCalls, s.MixerTimeouts, s.MixerCalls, s.Dispatched)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("running, press Ctrl+C to stop")
	if err := host.Run(ctx); err != nil {
		return err
	}
	log.Info("shutting down after %d ticks", host.Ticks())
	return nil
}
