package rcon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf8"
)

// PacketType is the type tag carried by every packet.
type PacketType int32

const (
	// TypeCommand marks a command packet. Servers also answer with this value.
	TypeCommand PacketType = 2
	// TypeLogin marks an authentication packet.
	TypeLogin PacketType = 3
)

const (
	// headerSize is the id and type fields plus the two trailing null bytes.
	headerSize = 10
	// failedLoginID is the id a server answers with when the password is wrong.
	failedLoginID = -1
)

// Packet is an outgoing RCON request.
type Packet struct {
	ID      int32
	Type    PacketType
	Payload []byte
}

// MarshalBinary encodes the packet in wire format:
// length, id and type as little-endian int32, the payload, then two null bytes.
// The length field counts everything after itself.
func (p Packet) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 4+headerSize+len(p.Payload)))

	_ = binary.Write(buf, binary.LittleEndian, int32(headerSize+len(p.Payload)))
	_ = binary.Write(buf, binary.LittleEndian, p.ID)
	_ = binary.Write(buf, binary.LittleEndian, int32(p.Type))
	buf.Write(p.Payload)
	buf.Write([]byte{0, 0})

	return buf.Bytes(), nil
}

// WriteTo writes the encoded packet to w in a single call.
func (p Packet) WriteTo(w io.Writer) (int64, error) {
	data, _ := p.MarshalBinary()
	n, err := w.Write(data)
	return int64(n), err
}

// Response is a decoded server reply.
//
// The wire type of a reply is only used to detect a rejected login and is not
// exposed, so decoding an encoded Packet gives back its id and payload but not
// its type.
type Response struct {
	ID      int32
	Payload string

	typ PacketType
}

func (r Response) loginRejected() bool {
	return r.ID == failedLoginID && r.typ == TypeCommand
}

// ReadResponse decodes exactly one packet from r.
// A stream that ends before the length field yields ErrIO; one that ends inside
// the declared body yields ErrMalformedPacket.
func ReadResponse(r io.Reader) (Response, error) {
	return ReadResponseLimit(r, 0)
}

// ReadResponseLimit decodes one packet from r, rejecting declared lengths above
// limit. A limit of zero or less means no limit.
func ReadResponseLimit(r io.Reader, limit int) (Response, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return Response{}, fmt.Errorf("%w: reading length: %w", ErrIO, err)
	}
	if length < headerSize {
		return Response{}, fmt.Errorf("%w: declared length %d is below %d", ErrMalformedPacket, length, headerSize)
	}
	if limit > 0 && int(length) > limit {
		return Response{}, fmt.Errorf("%w: declared length %d exceeds limit %d", ErrMalformedPacket, length, limit)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Response{}, fmt.Errorf("%w: reading %d byte body: %w", ErrMalformedPacket, length, err)
	}

	id := int32(binary.LittleEndian.Uint32(body[0:4]))
	typ := PacketType(binary.LittleEndian.Uint32(body[4:8]))
	payload := body[8 : length-2]

	if !utf8.Valid(payload) {
		return Response{}, ErrInvalidPayload
	}

	return Response{ID: id, Payload: string(payload), typ: typ}, nil
}
