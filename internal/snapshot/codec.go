package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/edaschema/edaschema/internal/graph"
)

// magic prefixes every snapshot file
var magic = []byte("EDASNAP1")

func init() {
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(graph.Attrs{})
}

// Encode writes img as a zstd compressed gob stream
func Encode(w io.Writer, img *Image) error {
	if _, err := w.Write(magic); err != nil {
		return err
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(zw).Encode(img); err != nil {
		zw.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return zw.Close()
}

// Decode reads an image written by Encode
func Decode(r io.Reader) (*Image, error) {
	br := bufio.NewReader(r)
	head := make([]byte, len(magic))
	if _, err := io.ReadFull(br, head); err != nil {
		return nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if !bytes.Equal(head, magic) {
		return nil, fmt.Errorf("not a snapshot file")
	}

	zr, err := zstd.NewReader(br)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var img Image
	if err := gob.NewDecoder(zr).Decode(&img); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &img, nil
}
