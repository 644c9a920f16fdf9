// Package nowlink drives the radio bridge that fronts the vendor
// point-to-point link, over a UART or the bridge's Bluetooth LE
// service.
package nowlink

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// The bridge frame header for all frames
var Preamble uint16 = 0xa55a

// Channel is the radio channel both ends are pinned to
var Channel byte = 0x01

// IdentCommand asks the bridge for its station address, and is
// static, so it needs no associated code
// Command code 4
var IdentCommand = []byte{0xa5, 0x5a, 0x9, 0x4, 0x0, 0x0, 0x0, 0x0, 0x0, 0x0, 0x1, 0xc}

var dataLenAddPeer byte = 0x0a
var cmdCodeAddPeer byte = 0x1

var dataLenSend byte = 0x15
var cmdCodeSend byte = 0x2

var dataLenTxResult byte = 0x0a
var cmdCodeTxResult byte = 0x3

var dataLenIdent byte = 0x09
var cmdCodeIdent byte = 0x4

// payloadLen is the reading payload size the bridge relays verbatim.
const payloadLen = 12

// AddPeerCommand registers the peer the bridge transmits to
// 13-byte command to bridge
type AddPeerCommand struct {
	Preamble    uint16
	DataLen     byte
	CommandCode byte // 1
	Peer        [6]byte
	Channel     byte
	Checksum    uint16
}

func NewAddPeerCommand(peer [6]byte) ([]byte, error) {
	c := AddPeerCommand{
		Preamble:    Preamble,
		DataLen:     dataLenAddPeer,
		CommandCode: cmdCodeAddPeer,
		Peer:        peer,
		Channel:     Channel,
	}
	c.updateCRC()

	b, err := c.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("Failed to serialize add peer command: %s", err)
	}
	return b, err
}

func (c *AddPeerCommand) CRC() uint16 {
	// KISS checksum
	// sum of bytes before CRC
	// big endian
	checksum := c.Preamble>>8 +
		c.Preamble&0xff +
		uint16(c.DataLen) +
		uint16(c.CommandCode) +
		uint16(c.Channel)
	for _, b := range c.Peer {
		checksum += uint16(b)
	}
	return checksum
}

func (c *AddPeerCommand) updateCRC() {
	c.Checksum = c.CRC()
}

func (c *AddPeerCommand) Valid() error {
	if c.Preamble != Preamble {
		return fmt.Errorf("Incorrect preamble bytes")
	}
	if c.CommandCode != cmdCodeAddPeer {
		return fmt.Errorf("Incorrect command code")
	}
	if c.DataLen != dataLenAddPeer {
		return fmt.Errorf("Incorrect data payload length")
	}
	if c.Checksum != c.CRC() {
		return fmt.Errorf("CRC does not validate")
	}
	return nil
}

func (c *AddPeerCommand) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, c); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

func (c *AddPeerCommand) UnmarshalBinary(input []byte) error {
	r := bytes.NewReader(input)
	if err := binary.Read(r, binary.BigEndian, c); err != nil {
		return err
	}
	return c.Valid()
}

// SendCommand carries one reading payload for the bridge to relay
// 24-byte command to bridge, payload bytes are opaque to it
type SendCommand struct {
	Preamble    uint16
	DataLen     byte
	CommandCode byte // 2
	Peer        [6]byte
	Payload     [payloadLen]byte
	Checksum    uint16
}

func NewSendCommand(peer [6]byte, payload [payloadLen]byte) ([]byte, error) {
	c := SendCommand{
		Preamble:    Preamble,
		DataLen:     dataLenSend,
		CommandCode: cmdCodeSend,
		Peer:        peer,
		Payload:     payload,
	}
	c.updateCRC()

	b, err := c.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("Failed to serialize send command: %s", err)
	}
	return b, err
}

func (c *SendCommand) CRC() uint16 {
	checksum := c.Preamble>>8 +
		c.Preamble&0xff +
		uint16(c.DataLen) +
		uint16(c.CommandCode)
	for _, b := range c.Peer {
		checksum += uint16(b)
	}
	for _, b := range c.Payload {
		checksum += uint16(b)
	}
	return checksum
}

func (c *SendCommand) updateCRC() {
	c.Checksum = c.CRC()
}

func (c *SendCommand) Valid() error {
	if c.Preamble != Preamble {
		return fmt.Errorf("Incorrect preamble bytes")
	}
	if c.CommandCode != cmdCodeSend {
		return fmt.Errorf("Incorrect command code")
	}
	if c.DataLen != dataLenSend {
		return fmt.Errorf("Incorrect data payload length")
	}
	if c.Checksum != c.CRC() {
		return fmt.Errorf("CRC does not validate")
	}
	return nil
}

func (c *SendCommand) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, c); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

func (c *SendCommand) UnmarshalBinary(input []byte) error {
	r := bytes.NewReader(input)
	if err := binary.Read(r, binary.BigEndian, c); err != nil {
		return err
	}
	return c.Valid()
}

// TxResultFrame reports the radio delivery outcome of an earlier send
// 13-byte frame from bridge
type TxResultFrame struct {
	Preamble    uint16
	DataLen     byte
	CommandCode byte // 3
	Peer        [6]byte
	Status      byte // 0 is delivered
	Checksum    uint16
}

// NewTxResultFrame creates a result frame from a byte buffer
func NewTxResultFrame(input []byte) (TxResultFrame, error) {
	var f TxResultFrame
	err := f.UnmarshalBinary(input)
	if err != nil {
		return f, fmt.Errorf("Failed to UnmarshalBinary: %s", err)
	}
	return f, nil
}

// OK reports whether the peer acknowledged the send.
func (f *TxResultFrame) OK() bool {
	return f.Status == 0
}

func (f *TxResultFrame) CRC() uint16 {
	checksum := f.Preamble>>8 +
		f.Preamble&0xff +
		uint16(f.DataLen) +
		uint16(f.CommandCode) +
		uint16(f.Status)
	for _, b := range f.Peer {
		checksum += uint16(b)
	}
	return checksum
}

func (f *TxResultFrame) Valid() error {
	if f.Preamble != Preamble {
		return fmt.Errorf("Incorrect preamble bytes")
	}
	if f.CommandCode != cmdCodeTxResult {
		return fmt.Errorf("Incorrect command code")
	}
	if f.DataLen != dataLenTxResult {
		return fmt.Errorf("Incorrect data payload length")
	}
	if f.Checksum != f.CRC() {
		return fmt.Errorf("CRC does not validate")
	}
	return nil
}

func (f *TxResultFrame) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, f); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

func (f *TxResultFrame) UnmarshalBinary(input []byte) error {
	r := bytes.NewReader(input)
	if err := binary.Read(r, binary.BigEndian, f); err != nil {
		return err
	}
	return f.Valid()
}

// IdentFrame carries the bridge's own station address
// 12-byte frame from bridge, zero address when we ask
type IdentFrame struct {
	Preamble    uint16
	DataLen     byte
	CommandCode byte // 4
	Addr        [6]byte
	Checksum    uint16
}

// NewIdentFrame creates an ident frame from a byte buffer
func NewIdentFrame(input []byte) (IdentFrame, error) {
	var f IdentFrame
	err := f.UnmarshalBinary(input)
	if err != nil {
		return f, fmt.Errorf("Failed to UnmarshalBinary: %s", err)
	}
	return f, nil
}

func (f *IdentFrame) CRC() uint16 {
	checksum := f.Preamble>>8 +
		f.Preamble&0xff +
		uint16(f.DataLen) +
		uint16(f.CommandCode)
	for _, b := range f.Addr {
		checksum += uint16(b)
	}
	return checksum
}

func (f *IdentFrame) updateCRC() {
	f.Checksum = f.CRC()
}

func (f *IdentFrame) Valid() error {
	if f.Preamble != Preamble {
		return fmt.Errorf("Incorrect preamble bytes")
	}
	if f.CommandCode != cmdCodeIdent {
		return fmt.Errorf("Incorrect command code")
	}
	if f.DataLen != dataLenIdent {
		return fmt.Errorf("Incorrect data payload length")
	}
	if f.Checksum != f.CRC() {
		return fmt.Errorf("CRC does not validate")
	}
	return nil
}

func (f *IdentFrame) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, f); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

func (f *IdentFrame) UnmarshalBinary(input []byte) error {
	r := bytes.NewReader(input)
	if err := binary.Read(r, binary.BigEndian, f); err != nil {
		return err
	}
	return f.Valid()
}
