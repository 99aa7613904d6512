package crdt

import (
	"encoding/binary"
	"fmt"
	"io"
)

// frame is the wire shape Connect pushes over the transport: a document id
// and its full current bytes.
type frame struct {
	id   string
	data []byte
}

func writeFrame(w io.Writer, f frame) error {
	idBytes := []byte(f.id)
	var lenBuf [4]byte

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(idBytes)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	if _, err := w.Write(idBytes); err != nil {
		return err
	}

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(f.data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(f.data)
	return err
}

func readFrame(r io.Reader) (frame, error) {
	id, err := readChunk(r)
	if err != nil {
		return frame{}, err
	}
	data, err := readChunk(r)
	if err != nil {
		return frame{}, err
	}
	return frame{id: string(id), data: data}, nil
}

func readChunk(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > 64<<20 {
		return nil, fmt.Errorf("crdt: frame chunk too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
