package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/exepirit/meshtastic-backup/internal/log"
	"github.com/exepirit/meshtastic-backup/pkg/meshtastic"
	pb "github.com/meshtastic/go/generated"
	protobuf "google.golang.org/protobuf/proto"
)

const (
	start1 = 0x94
	start2 = 0xc3

	// MaxPayloadSize is the largest protobuf payload carried by a single frame.
	MaxPayloadSize = 512

	wakeSize  = 32
	wakeDelay = 100 * time.Millisecond
)

var _ meshtastic.HardwareTransport = &Transport{}

// Transport represents a transport layer using a Stream (e.g., TCP connection or serial port).
//
// Reads honour the context only between successful Read calls, so the Stream should
// return periodically (a read timeout returning 0, nil is fine).
type Transport struct {
	Stream io.ReadWriteCloser
	Logger log.Logger

	readLock  sync.Mutex
	writeLock sync.Mutex
	debugLine bytes.Buffer
}

// Wake sends the preamble that puts a sleeping radio into API mode and gives it a moment to settle.
func (st *Transport) Wake(ctx context.Context) error {
	st.writeLock.Lock()
	_, err := st.Stream.Write(bytes.Repeat([]byte{start2}, wakeSize))
	st.writeLock.Unlock()
	if err != nil {
		return fmt.Errorf("failed to wake radio: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wakeDelay):
		return nil
	}
}

// ReceiveFromRadio reads a single packet from the stream and returns it.
func (st *Transport) ReceiveFromRadio(ctx context.Context) (*pb.FromRadio, error) {
	st.readLock.Lock()
	buf, err := st.readBytes(ctx)
	st.readLock.Unlock()
	if err != nil {
		return nil, err
	}

	packet := new(pb.FromRadio)
	err = protobuf.Unmarshal(buf, packet)
	if err != nil {
		return nil, meshtastic.ErrInvalidPacketFormat
	}
	return packet, nil
}

func (st *Transport) readBytes(ctx context.Context) ([]byte, error) {
	header := make([]byte, 4)
	carried := false

	for {
		if !carried {
			if err := st.readFull(ctx, header[:1]); err != nil {
				return nil, err
			}
		}
		carried = false
		if header[0] != start1 {
			st.debugByte(header[0])
			continue
		}

		if err := st.readFull(ctx, header[1:2]); err != nil {
			return nil, err
		}
		if header[1] != start2 {
			st.debugByte(header[0])
			if header[1] == start1 {
				// may start the real header
				header[0], carried = start1, true
				continue
			}
			st.debugByte(header[1])
			continue
		}

		if err := st.readFull(ctx, header[2:]); err != nil {
			return nil, err
		}

		pduLen := int(binary.BigEndian.Uint16(header[2:4]))
		if pduLen > MaxPayloadSize {
			continue
		}

		data := make([]byte, pduLen)
		err := st.readFull(ctx, data)
		return data, err
	}
}

// readFull works like io.ReadFull, but checks ctx before every Read.
func (st *Transport) readFull(ctx context.Context, buf []byte) error {
	for n := 0; n < len(buf); {
		if err := ctx.Err(); err != nil {
			return err
		}
		k, err := st.Stream.Read(buf[n:])
		n += k
		if err != nil {
			if err == io.EOF && n > 0 && n < len(buf) {
				return io.ErrUnexpectedEOF
			}
			return err
		}
	}
	return nil
}

// debugByte collects the text console output the firmware interleaves with frames
// and logs it line by line.
func (st *Transport) debugByte(b byte) {
	if b == '\n' {
		if st.debugLine.Len() > 0 && st.Logger != nil {
			st.Logger.Debug("Radio console", "line", string(bytes.TrimRight(st.debugLine.Bytes(), "\r")))
		}
		st.debugLine.Reset()
		return
	}
	if st.debugLine.Len() < MaxPayloadSize {
		st.debugLine.WriteByte(b)
	}
}

// SendToRadio sends a protobuf message to the radio.
func (st *Transport) SendToRadio(ctx context.Context, packet *pb.ToRadio) error {
	buf, err := protobuf.Marshal(packet)
	if err != nil {
		return fmt.Errorf("marshalling error: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	st.writeLock.Lock()
	defer st.writeLock.Unlock()
	return st.sendBytes(buf)
}

func (st *Transport) sendBytes(data []byte) error {
	if len(data) > MaxPayloadSize {
		return meshtastic.ErrPacketTooLong
	}

	frame := make([]byte, 4, 4+len(data))
	frame[0], frame[1] = start1, start2
	binary.BigEndian.PutUint16(frame[2:4], uint16(len(data)))
	frame = append(frame, data...)

	_, err := st.Stream.Write(frame)
	return err
}

// Close closes the underlying stream.
func (st *Transport) Close() error {
	return st.Stream.Close()
}
