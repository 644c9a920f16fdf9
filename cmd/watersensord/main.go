package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/go-acme/lego/platform/config/env"
	log "github.com/sirupsen/logrus"

	"github.com/johnelliott/watersensord/pkg/config"
	"github.com/johnelliott/watersensord/pkg/tank"
)

var (
	// Flags
	configPathF = flag.String("config", "/etc/watersensord.yaml", "path to daemon config file")
	radioF      = flag.String("radio", "", "radio backend override: serial, ble or mock")
	storePathF  = flag.String("storepath", "", "settings store path override")
)

func main() {
	flag.Parse()

	// Use env to override app settings
	configPath := env.GetOrDefaultString("CONFIG_PATH", *configPathF)
	radio := env.GetOrDefaultString("RADIO_BACKEND", *radioF)
	storePath := env.GetOrDefaultString("STORE_PATH", *storePathF)

	// env vars
	LOGLEVEL := os.Getenv("LOGLEVEL")
	switch LOGLEVEL {
	case "panic":
		log.SetLevel(log.PanicLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "trace":
		log.SetLevel(log.TraceLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}

	hostcfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %s", err)
	}
	if radio != "" {
		hostcfg.Radio.Backend = radio
	}
	if storePath != "" {
		hostcfg.Store.Path = storePath
	}

	// main context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Listen for control-c subtask
	go func() {
		// We must use a buffered channel or risk missing the signal
		// if we're not ready to receive when the signal is sent.
		sig := make(chan os.Signal, 1)
		signal.Notify(
			sig,
			syscall.SIGTERM,
			syscall.SIGHUP,  // kill -SIGHUP XXXX
			syscall.SIGINT,  // kill -SIGINT XXXX or Ctrl+c
			syscall.SIGQUIT, // kill -SIGQUIT XXXX
		)
		log.Trace("Listening for signals")
		s := <-sig
		log.Debug("Got signal:", s)
		cancel()
	}()

	if err := run(ctx, hostcfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
	log.Info("watersensord exiting")
}

// run opens the hardware once, then boots nodes on it until shutdown.
// A save or a factory reset ends one boot and the next starts on the
// stored settings, the way the firmware restarts.
func run(ctx context.Context, hostcfg *config.Config) error {
	hw, err := openHardware(ctx, hostcfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	store := tank.NewStore(hw.medium)
	for {
		err := boot(ctx, hostcfg, hw, store)
		if errors.Is(err, tank.ErrRestart) {
			log.Info("Restarting node")
			continue
		}
		return err
	}
}

// boot runs one node lifetime on the shared hardware.
func boot(ctx context.Context, hostcfg *config.Config, hw *hostHardware, store *tank.Store) error {
	cfg, err := store.Load()
	if errors.Is(err, tank.ErrNoRecord) {
		cfg = tank.DefaultSettings()
		log.Info("No stored settings, using defaults")
	} else if err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"interval": cfg.SampleIntervalMs,
		"height":   cfg.TankHeightCm,
		"peer":     cfg.PeerAddr,
		"network":  cfg.NetworkName(hw.carrier.LocalAddr()),
	}).Info("Booting node")

	node := tank.NewNode(cfg, tank.Hardware{
		Sampler: hw.sampler,
		Carrier: hw.carrier,
		Clock:   hw.clock,
		Store:   store,
		Button:  hw.button,
		LED:     hw.led,
	})

	bootCtx, cancelBoot := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancelBoot()

	if hostcfg.HomeKit.Enabled {
		wg.Add(1)
		go HKClient(bootCtx, &wg, node, HKSettings{
			Pin:         hostcfg.HomeKit.Pin,
			StoragePath: hostcfg.HomeKit.StoragePath,
		})
	}

	return node.Run(bootCtx)
}
