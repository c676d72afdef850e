package logstore

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/anthanhphan/go-kv-store/internal/storage/domain"
	"github.com/anthanhphan/go-kv-store/internal/storage/port"
	"github.com/vmihailenco/msgpack/v5"
)

// Record frame: Payload_Len (4) | CRC32 (4) | Payload (N), big endian.
// Payload is the msgpack encoding of a domain.Command.
const recordHeaderSize = 8

// errTornRecord marks a frame cut short by the end of the segment, the trace of
// an interrupted append.
var errTornRecord = errors.New("torn record")

// errDamagedRecord marks a complete frame that fails validation.
var errDamagedRecord = errors.New("damaged record")

// encodeRecord serializes cmd into a complete frame.
func encodeRecord(cmd domain.Command, maxSize int) ([]byte, error) {
	payload, err := msgpack.Marshal(&cmd)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", cmd.Op, err)
	}
	if len(payload) > maxSize {
		return nil, fmt.Errorf("%w: %d bytes", port.ErrRecordTooLarge, len(payload))
	}

	frame := make([]byte, recordHeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(len(payload))) // #nosec G115
	binary.BigEndian.PutUint32(frame[4:8], crc32.ChecksumIEEE(payload))
	copy(frame[recordHeaderSize:], payload)
	return frame, nil
}

// decodeRecord validates and deserializes one complete frame.
func decodeRecord(frame []byte) (domain.Command, error) {
	var cmd domain.Command
	if len(frame) < recordHeaderSize {
		return cmd, fmt.Errorf("%w: frame of %d bytes is shorter than header", port.ErrCorruption, len(frame))
	}

	payloadLen := binary.BigEndian.Uint32(frame[0:4])
	if int64(payloadLen) != int64(len(frame)-recordHeaderSize) {
		return cmd, fmt.Errorf("%w: payload length %d does not match frame", port.ErrCorruption, payloadLen)
	}

	payload := frame[recordHeaderSize:]
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(frame[4:8]) {
		return cmd, fmt.Errorf("%w: checksum mismatch", port.ErrCorruption)
	}

	if err := msgpack.Unmarshal(payload, &cmd); err != nil {
		return cmd, fmt.Errorf("%w: %v", port.ErrCorruption, err)
	}
	if !cmd.Valid() {
		return cmd, fmt.Errorf("%w: unknown op %d", port.ErrCorruption, cmd.Op)
	}
	return cmd, nil
}

// scanRecord reads the next frame from r, which holds remaining unread bytes
// of the segment. It returns io.EOF at a clean end of segment, errTornRecord when
// the frame runs past the end, and errDamagedRecord when a complete frame is invalid.
func scanRecord(r *bufio.Reader, remaining int64) (domain.Command, int64, error) {
	header := make([]byte, recordHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return domain.Command{}, 0, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return domain.Command{}, 0, errTornRecord
		}
		return domain.Command{}, 0, err
	}

	payloadLen := int64(binary.BigEndian.Uint32(header[0:4]))
	if payloadLen > remaining-recordHeaderSize {
		return domain.Command{}, 0, errTornRecord
	}

	frame := make([]byte, recordHeaderSize+payloadLen)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[recordHeaderSize:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return domain.Command{}, 0, errTornRecord
		}
		return domain.Command{}, 0, err
	}

	cmd, err := decodeRecord(frame)
	if err != nil {
		return domain.Command{}, 0, fmt.Errorf("%w: %w", errDamagedRecord, err)
	}
	return cmd, int64(len(frame)), nil
}
