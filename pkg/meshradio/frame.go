package meshradio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/urmzd/homai-hub/pkg/device"
)

// Frame opcodes. Host-to-coordinator opcodes are below 0x40.
const (
	OpScan     uint8 = 0x01
	OpCommand  uint8 = 0x02
	OpAnnounce uint8 = 0x41
	OpReport   uint8 = 0x42
	OpLeave    uint8 = 0x43
	OpAck      uint8 = 0x82
)

// BroadcastAddr addresses every node on the network.
const BroadcastAddr uint16 = 0xFFFF

// headerLen is OPCODE(1) + ADDR(2) + ENDPOINT(1) + CLUSTER(2).
const headerLen = 6

// MaxPayload is the largest payload a single-byte LEN can describe.
const MaxPayload = 0xFF - headerLen

// Frame is one coordinator frame without its SOF, LEN and FCS bytes.
type Frame struct {
	Opcode   uint8
	Addr     uint16
	Endpoint uint8
	Cluster  uint16
	Payload  []byte
}

// Encode serializes f with the given start-of-frame marker.
//
//	SOF LEN OPCODE ADDR(LE) ENDPOINT CLUSTER(LE) PAYLOAD FCS
func (f Frame) Encode(sof byte) ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("payload of %d bytes exceeds %d", len(f.Payload), MaxPayload)
	}

	n := headerLen + len(f.Payload)
	buf := make([]byte, 0, n+3)
	buf = append(buf, sof, byte(n), f.Opcode)
	buf = binary.LittleEndian.AppendUint16(buf, f.Addr)
	buf = append(buf, f.Endpoint)
	buf = binary.LittleEndian.AppendUint16(buf, f.Cluster)
	buf = append(buf, f.Payload...)
	buf = append(buf, checksum(buf[1:]))
	return buf, nil
}

// checksum is the XOR of LEN through the end of PAYLOAD.
func checksum(data []byte) byte {
	var fcs byte
	for _, b := range data {
		fcs ^= b
	}
	return fcs
}

// Decoder reads frames from a byte stream, resynchronizing on the SOF marker
// after garbage or a corrupt frame.
type Decoder struct {
	r   *bufio.Reader
	sof byte
}

// NewDecoder creates a decoder for frames starting with sof.
func NewDecoder(r io.Reader, sof byte) *Decoder {
	return &Decoder{r: bufio.NewReader(r), sof: sof}
}

// Next returns the next frame. Malformed frames return an error wrapping
// device.ErrProtocolParse; the decoder stays usable afterwards. I/O errors
// are returned unwrapped.
func (d *Decoder) Next() (Frame, error) {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return Frame{}, err
		}
		if b == d.sof {
			break
		}
	}

	n, err := d.r.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	if int(n) < headerLen {
		return Frame{}, fmt.Errorf("%w: length %d shorter than header", device.ErrProtocolParse, n)
	}

	body := make([]byte, int(n)+1)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return Frame{}, err
	}

	fcs := body[n]
	body = body[:n]
	if want := checksum(append([]byte{n}, body...)); fcs != want {
		return Frame{}, fmt.Errorf("%w: checksum %#02x, want %#02x", device.ErrProtocolParse, fcs, want)
	}

	f := Frame{
		Opcode:   body[0],
		Addr:     binary.LittleEndian.Uint16(body[1:3]),
		Endpoint: body[3],
		Cluster:  binary.LittleEndian.Uint16(body[4:6]),
	}
	if len(body) > headerLen {
		f.Payload = append([]byte(nil), body[headerLen:]...)
	}
	return f, nil
}
