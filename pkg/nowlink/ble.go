package nowlink

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/muka/go-bluetooth/api"
	"github.com/muka/go-bluetooth/bluez"
	"github.com/muka/go-bluetooth/bluez/profile/adapter"
	"github.com/muka/go-bluetooth/bluez/profile/agent"
	"github.com/muka/go-bluetooth/bluez/profile/device"
	"github.com/muka/go-bluetooth/bluez/profile/gatt"
	log "github.com/sirupsen/logrus"

	"github.com/johnelliott/watersensord/pkg/tank"
)

var (
	// Bridge GATT UART service
	bridgeServiceUUID = "0000a55a-0000-1000-8000-00805f9b34fb"
	bridgeWriteUUID   = "0000a55b-0000-1000-8000-00805f9b34fb" // Writable
	bridgeNotifyUUID  = "0000a55c-0000-1000-8000-00805f9b34fb" // Read Notify
)

const bleIdentTimeout = 10 * time.Second

// BLE drives the radio bridge over its Bluetooth LE UART service,
// for boards where the bridge is not wired to a UART.
type BLE struct {
	frameSink
	dev       *device.Device1
	writeChar *gatt.GattCharacteristic1
	wmu       sync.Mutex
	addr      tank.MAC
	quitC     chan struct{}
}

var _ tank.Carrier = (*BLE)(nil)

// OpenBLE finds the bridge at hwaddr on the given adapter, connects,
// subscribes to its frame stream and waits for it to identify itself.
func OpenBLE(ctx context.Context, adapterID, hwaddr string) (*BLE, error) {
	log.Infof("Discovering %s on %s", hwaddr, adapterID)

	a, err := adapter.NewAdapter1FromAdapterID(adapterID)
	if err != nil {
		return nil, fmt.Errorf("Failed to open adapter %s: %s", adapterID, err)
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("Failed to connect to system bus: %s", err)
	}

	// do not reuse agent0 from service
	agent.NextAgentPath()

	ag := agent.NewSimpleAgent()
	if err := agent.ExposeAgent(conn, ag, agent.CapNoInputNoOutput, true); err != nil {
		return nil, fmt.Errorf("SimpleAgent: %s", err)
	}

	dev, err := findDevice(ctx, a, hwaddr)
	if err != nil {
		return nil, fmt.Errorf("findDevice: %s", err)
	}
	if err := connect(dev); err != nil {
		return nil, err
	}
	if err := waitChars(ctx, dev); err != nil {
		return nil, err
	}

	b := &BLE{
		frameSink: newFrameSink(),
		dev:       dev,
		quitC:     make(chan struct{}),
	}

	b.writeChar, err = dev.GetCharByUUID(bridgeWriteUUID)
	if err != nil {
		return nil, fmt.Errorf("Failed to find write characteristic: %s", err)
	}
	notifChar, err := dev.GetCharByUUID(bridgeNotifyUUID)
	if err != nil {
		return nil, fmt.Errorf("Failed to find notify characteristic: %s", err)
	}
	propsC, err := notifChar.WatchProperties()
	if err != nil {
		return nil, fmt.Errorf("Failed to watch notifications: %s", err)
	}
	go b.watch(propsC)
	if err := notifChar.StartNotify(); err != nil {
		return nil, fmt.Errorf("Failed to start notifications: %s", err)
	}

	if err := b.write(IdentCommand); err != nil {
		return nil, err
	}
	select {
	case addr := <-b.identC:
		b.addr = addr
		log.Infof("Radio bridge %s up via %s", addr, adapterID)
	case <-time.After(bleIdentTimeout):
		return nil, fmt.Errorf("Bridge at %s did not identify itself", hwaddr)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b, nil
}

func findDevice(ctx context.Context, a *adapter.Adapter1, hwaddr string) (*device.Device1, error) {
	devices, err := a.GetDevices()
	if err != nil {
		return nil, err
	}

	for _, dev := range devices {
		devProps, err := dev.GetProperties()
		if err != nil {
			log.Errorf("Failed to load dev props: %s", err)
			continue
		}
		if !strings.EqualFold(devProps.Address, hwaddr) {
			continue
		}
		log.Debugf("Found cached device Connected=%t Paired=%t", devProps.Connected, devProps.Paired)
		return dev, nil
	}

	// Start discovery if we don't see ours
	return discover(ctx, a, hwaddr)
}

func discover(ctx context.Context, a *adapter.Adapter1, hwaddr string) (*device.Device1, error) {
	if err := a.FlushDevices(); err != nil {
		return nil, err
	}

	dFilter := adapter.NewDiscoveryFilter()
	dFilter.AddUUIDs(bridgeServiceUUID)
	dFilter.Transport = "le"
	if err := a.SetDiscoveryFilter(dFilter.ToMap()); err != nil {
		log.Warnf("Failed to set discovery filter: %s", err)
	}

	discovery, cancelDiscovery, err := api.Discover(a, nil)
	if err != nil {
		return nil, err
	}
	defer cancelDiscovery()

	for {
		select {
		case ev := <-discovery:
			dev, err := device.NewDevice1(ev.Path)
			if err != nil {
				return nil, err
			}
			if dev == nil || dev.Properties == nil {
				continue
			}
			if !strings.EqualFold(dev.Properties.Address, hwaddr) {
				continue
			}
			return dev, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func connect(dev *device.Device1) error {
	props, err := dev.GetProperties()
	if err != nil {
		return fmt.Errorf("Failed to load props: %s", err)
	}
	log.Debugf("Found bridge name=%s addr=%s rssi=%d", props.Name, props.Address, props.RSSI)

	if props.Connected {
		return nil
	}

	// The bridge needs no pairing, its UART service is wide open
	if err := dev.Connect(); err != nil {
		if !strings.Contains(err.Error(), "Connection refused") {
			return fmt.Errorf("Connect failed: %s", err)
		}
	}
	return nil
}

// waitChars blocks until BlueZ resolves the bridge's characteristics,
// which can lag the connect.
func waitChars(ctx context.Context, dev *device.Device1) error {
	for {
		list, err := dev.GetCharacteristics()
		if err != nil {
			return err
		}
		if len(list) > 0 {
			log.Debugf("Found %d characteristics", len(list))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (b *BLE) watch(updates chan *bluez.PropertyChanged) {
	for {
		select {
		case <-b.quitC:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update == nil {
				continue
			}
			if update.Interface != "org.bluez.GattCharacteristic1" || update.Name != "Value" {
				continue
			}
			frame, ok := update.Value.([]byte)
			if !ok {
				continue
			}
			b.dispatch(frame)
		}
	}
}

func (b *BLE) write(buf []byte) error {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if err := b.writeChar.WriteValue(buf, nil); err != nil {
		return fmt.Errorf("Failed to write frame: %s", err)
	}
	return nil
}

func (b *BLE) AddPeer(peer tank.MAC) error {
	buf, err := NewAddPeerCommand([6]byte(peer))
	if err != nil {
		return err
	}
	return b.write(buf)
}

func (b *BLE) Send(peer tank.MAC, payload []byte) error {
	if len(payload) != payloadLen {
		return fmt.Errorf("Bad payload length %d", len(payload))
	}
	var p [payloadLen]byte
	copy(p[:], payload)
	buf, err := NewSendCommand([6]byte(peer), p)
	if err != nil {
		return err
	}
	return b.write(buf)
}

func (b *BLE) LocalAddr() tank.MAC {
	return b.addr
}

// Close drops the bridge connection.
func (b *BLE) Close() error {
	close(b.quitC)
	err := b.dev.Disconnect()
	api.Exit()
	return err
}
