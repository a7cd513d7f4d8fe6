package meshradio

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/urmzd/homai-hub/pkg/device"
)

func TestFrameEncode_Layout(t *testing.T) {
	f := Frame{Opcode: OpCommand, Addr: 0x1a2b, Endpoint: 1, Cluster: ClusterLevel, Payload: []byte{0x7f}}

	got, err := f.Encode(0xFE)
	if err != nil {
		t.Fatal(err)
	}

	want := []byte{0xFE, 0x07, 0x02, 0x2b, 0x1a, 0x01, 0x08, 0x00, 0x7f}
	want = append(want, checksum(want[1:]))
	if !bytes.Equal(got, want) {
		t.Errorf("encoded % x, want % x", got, want)
	}
}

func TestFrameEncode_PayloadTooLarge(t *testing.T) {
	f := Frame{Opcode: OpCommand, Payload: make([]byte, MaxPayload+1)}
	if _, err := f.Encode(0xFE); err == nil {
		t.Error("expected error for oversized payload")
	}
}

func TestDecoder_RoundTrip(t *testing.T) {
	frames := []Frame{
		{Opcode: OpScan, Addr: BroadcastAddr, Payload: []byte{5}},
		{Opcode: OpAck, Addr: 0x0001, Payload: []byte{0}},
		{Opcode: OpLeave, Addr: 0x2222},
	}

	var buf bytes.Buffer
	for _, f := range frames {
		b, err := f.Encode(0x01)
		if err != nil {
			t.Fatal(err)
		}
		buf.Write(b)
	}

	dec := NewDecoder(&buf, 0x01)
	for i, want := range frames {
		got, err := dec.Next()
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got.Opcode != want.Opcode || got.Addr != want.Addr || !bytes.Equal(got.Payload, want.Payload) {
			t.Errorf("frame %d: got %+v, want %+v", i, got, want)
		}
	}
	if _, err := dec.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestDecoder_ResyncAfterCorruptFrame(t *testing.T) {
	good := Frame{Opcode: OpReport, Addr: 0x0042, Cluster: ClusterOnOff, Payload: []byte{1}}
	goodBytes, _ := good.Encode(0xFE)

	corrupt := append([]byte(nil), goodBytes...)
	corrupt[len(corrupt)-1] ^= 0xFF

	var stream []byte
	stream = append(stream, 0x00, 0x13, 0x37) // line noise before SOF
	stream = append(stream, corrupt...)
	stream = append(stream, 0xFE, 0x02) // LEN shorter than the header
	stream = append(stream, goodBytes...)

	dec := NewDecoder(bytes.NewReader(stream), 0xFE)

	if _, err := dec.Next(); !errors.Is(err, device.ErrProtocolParse) {
		t.Fatalf("expected checksum error, got %v", err)
	}
	if _, err := dec.Next(); !errors.Is(err, device.ErrProtocolParse) {
		t.Fatalf("expected length error, got %v", err)
	}
	got, err := dec.Next()
	if err != nil {
		t.Fatalf("expected good frame after resync, got %v", err)
	}
	if got.Addr != 0x0042 || got.Cluster != ClusterOnOff {
		t.Errorf("unexpected frame %+v", got)
	}
}
