package tank

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PayloadSize is the wire size of one reading datagram.
const PayloadSize = 12

// Payload is the fixed reading record sent to the peer, three
// little-endian float32 fields.
type Payload struct {
	DistanceCm   float32
	FillPercent  float32
	TankHeightCm float32
}

func (p *Payload) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, p); err != nil {
		return buf.Bytes(), err
	}
	return buf.Bytes(), nil
}

func (p *Payload) UnmarshalBinary(input []byte) error {
	r := bytes.NewReader(input)
	if err := binary.Read(r, binary.LittleEndian, p); err != nil {
		return err
	}
	return nil
}

// NewPayload decodes a peer datagram.
func NewPayload(input []byte) (Payload, error) {
	var p Payload
	if len(input) != PayloadSize {
		return p, fmt.Errorf("Bad payload length %d", len(input))
	}
	if err := p.UnmarshalBinary(input); err != nil {
		return p, fmt.Errorf("Failed to UnmarshalBinary: %s", err)
	}
	return p, nil
}
