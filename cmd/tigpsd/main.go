package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tigpsd/internal/ai2"
	"tigpsd/internal/config"
	"tigpsd/internal/gnss"
	"tigpsd/internal/mqtt"
	"tigpsd/internal/power"
	"tigpsd/internal/replay"
	"tigpsd/internal/sink"
	"tigpsd/internal/udp"
	"tigpsd/internal/web"
)

func main() {
	var configPath string
	var device string
	var nmeaMode, rawDump, noInit bool
	flag.StringVar(&configPath, "config", "./tigpsd.yaml", "Path to YAML config")
	flag.StringVar(&device, "device", "", "Receiver device (overrides config)")
	flag.BoolVar(&nmeaMode, "nmea", false, "Switch the receiver to NMEA passthrough")
	flag.BoolVar(&rawDump, "raw-dump", false, "Dump validated frame bytes as hex")
	flag.BoolVar(&noInit, "no-init", false, "Skip the receiver bring-up sequence")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		// Running without a config file is fine as long as the device
		// comes from the command line.
		if !os.IsNotExist(err) || device == "" {
			log.Fatalf("config load failed: %v", err)
		}
		cfg = config.Default()
	}
	if device != "" {
		cfg.GNSS.Device = device
	}
	if nmeaMode {
		cfg.GNSS.NMEA = true
	}
	if rawDump {
		cfg.Output.RawDump = true
	}
	if noInit {
		cfg.GNSS.NoInit = true
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.Power.Pin > 0 {
		line, err := power.Enable(cfg.Power.Pin)
		if err != nil {
			// The enable line is board-specific; on boards without one
			// the receiver is always powered.
			log.Printf("power enable failed pin=%d: %v", cfg.Power.Pin, err)
		} else {
			defer line.Close()
		}
	}

	printer := sink.NewPrinter(os.Stdout, os.Stderr, cfg.GNSS.NMEA, cfg.Output.RawDump)

	var onFix func(sink.Fix)
	if cfg.MQTT.Enable {
		pub, err := mqtt.NewPublisher(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Topic:    cfg.MQTT.Topic,
		})
		if err != nil {
			log.Fatalf("mqtt init failed: %v", err)
		}
		defer pub.Close()
		onFix = func(f sink.Fix) {
			if err := pub.PublishFix(f); err != nil {
				log.Printf("mqtt publish failed: %v", err)
			}
		}
	}
	fixes := sink.NewFixTracker(onFix)

	handlers := []gnss.Handler{printer, fixes}

	if cfg.UDP.Dest != "" {
		fwd, err := udp.NewForwarder(cfg.UDP.Dest)
		if err != nil {
			log.Fatalf("udp forwarder init failed: %v", err)
		}
		defer fwd.Close()
		handlers = append(handlers, fwd)
	}

	if cfg.Record.Enable {
		w, err := replay.CreateWriter(cfg.Record.Path)
		if err != nil {
			log.Fatalf("record init failed: %v", err)
		}
		defer w.Close()
		handlers = append(handlers, replay.NewRecorder(w))
	}

	if cfg.Replay.Enable {
		runReplay(ctx, cfg, fixes, handlers)
		return
	}

	svc := gnss.New(gnss.Config{
		Device:  cfg.GNSS.Device,
		Baud:    cfg.GNSS.Baud,
		NMEA:    cfg.GNSS.NMEA,
		NoInit:  cfg.GNSS.NoInit,
		InitGap: cfg.GNSS.InitGap,
	}, handlers...)
	if err := svc.Start(ctx); err != nil {
		log.Fatalf("gnss start failed: %v", err)
	}
	defer svc.Close()

	if cfg.Web.Listen != "" {
		go func() {
			err := web.Serve(ctx, cfg.Web.Listen, web.Status{
				GNSS: svc.Snapshot,
				Fix:  fixes.Snapshot,
			})
			if err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
				cancel()
			}
		}()
		log.Printf("web listening on %s", cfg.Web.Listen)
	}

	log.Printf("tigpsd starting device=%s nmea=%v", cfg.GNSS.Device, cfg.GNSS.NMEA)
	<-ctx.Done()
	log.Printf("tigpsd stopping")
}

// runReplay pushes a recorded frame log through the same handler chain
// the live reader uses, then exits.
func runReplay(ctx context.Context, cfg config.Config, fixes *sink.FixTracker, handlers []gnss.Handler) {
	f, err := os.Open(cfg.Replay.Path)
	if err != nil {
		log.Fatalf("replay open failed: %v", err)
	}
	records, err := replay.NewReader(f).ReadAll()
	_ = f.Close()
	if err != nil {
		log.Fatalf("replay log invalid: %v", err)
	}

	if cfg.Web.Listen != "" {
		go func() {
			err := web.Serve(ctx, cfg.Web.Listen, web.Status{Fix: fixes.Snapshot})
			if err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
	}

	log.Printf("replay starting path=%s speed=%g loop=%v", cfg.Replay.Path, cfg.Replay.Speed, cfg.Replay.Loop)
	err = replay.Play(records, cfg.Replay.Speed, cfg.Replay.Loop, nil, func(buf []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		frame, err := ai2.DecodeFrame(buf)
		if err != nil {
			log.Printf("replay: %v", err)
			return nil
		}
		for _, h := range handlers {
			if rh, ok := h.(gnss.RawHandler); ok {
				rh.HandleRawFrame(buf)
			}
			h.HandleFrame(frame)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("replay failed: %v", err)
	}
	log.Printf("replay done")
}
