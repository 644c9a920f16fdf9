package main

import (
	"context"
	"sync"
	"time"

	"github.com/brutella/hc"
	"github.com/brutella/hc/accessory"
	"github.com/brutella/hc/characteristic"
	hclog "github.com/brutella/hc/log"
	"github.com/brutella/hc/service"
	log "github.com/sirupsen/logrus"

	"github.com/johnelliott/watersensord/pkg/tank"
)

// HKSettings configures the HomeKit accessories.
type HKSettings struct {
	Pin         string
	StoragePath string
}

// HKClient publishes the tank fill level as a humidity sensor, both
// run 0 to 100 percent, plus a switch that forces a sample. The
// caller adds us to the wait group.
func HKClient(ctx context.Context, wg *sync.WaitGroup, node *tank.Node, settings HKSettings) {
	defer func() {
		log.Trace("HK client calling done on main wait group")
		wg.Done()
	}()
	log.Trace("HKClient start")

	hclog.Debug.SetOutput(log.StandardLogger().WriterLevel(log.TraceLevel))
	hclog.Info.SetOutput(log.StandardLogger().WriterLevel(log.DebugLevel))

	infoTank := accessory.Info{
		Name:         "Water Tank",
		Manufacturer: "johnelliott.org",
		Model:        "WATER_SENSOR Bridge",
	}
	tankAcc := accessory.New(infoTank, accessory.TypeSensor)
	fill := service.NewHumiditySensor()
	fault := characteristic.NewStatusFault()
	fill.AddCharacteristic(fault.Characteristic)
	tankAcc.AddService(fill.Service)

	infoSample := accessory.Info{
		Name:         "Sample Now",
		Manufacturer: "johnelliott.org",
		Model:        "WATER_SENSOR Bridge",
	}
	sampleButton := accessory.NewSwitch(infoSample)
	sampleButton.Switch.On.OnValueRemoteUpdate(func(on bool) {
		if !on {
			return
		}
		r, err := node.ForceSample()
		if err != nil {
			log.Errorf("Failed to force a sample: %s", err)
		} else {
			log.Infof("Forced sample: %.1f%% full", r.FillPercent)
		}
		// The switch is a momentary button
		sampleButton.Switch.On.SetValue(false)
	})

	config := hc.Config{Pin: settings.Pin, StoragePath: settings.StoragePath}
	t, err := hc.NewIPTransport(config, tankAcc, sampleButton.Accessory)
	if err != nil {
		log.Errorf("Failed to build HomeKit transport: %s", err)
		return
	}

	go func() {
		// Tank state scanner
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		log.Trace("HK client looping now")
		for {
			select {
			case <-ctx.Done():
				log.Trace("HKClient ctx canceled")
				<-t.Stop()
				log.Trace("HKClient stopped")
				return
			case <-ticker.C:
				r := node.GetLastReading()
				fill.CurrentRelativeHumidity.SetValue(float64(r.FillPercent))
				if !r.Valid || node.GetLinkStatus() == tank.LinkError {
					fault.SetValue(characteristic.StatusFaultGeneralFault)
				} else {
					fault.SetValue(characteristic.StatusFaultNoFault)
				}
			}
		}
	}()

	// Start homekit transport
	t.Start()
}
