package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/ssimgo/internal/ssim"
)

// Binary map layout, little endian:
//
//	magic   [4]byte "SSIM"
//	ndim    uint32
//	dims    ndim × uint32
//	flags   uint8 (bit 0: trailing channel axis)
//	samples prod(dims) × float64
var mapMagic = [4]byte{'S', 'S', 'I', 'M'}

const maxMapDims = 8

// WriteMap encodes m to w.
func WriteMap(w io.Writer, m *ssim.Array) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(mapMagic[:]); err != nil {
		return err
	}

	hdr := make([]uint32, 0, len(m.Shape)+1)
	hdr = append(hdr, uint32(len(m.Shape)))
	for _, d := range m.Shape {
		hdr = append(hdr, uint32(d))
	}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return err
	}

	var flags uint8
	if m.Channels {
		flags |= 1
	}
	if err := bw.WriteByte(flags); err != nil {
		return err
	}

	buf := make([]byte, 8)
	for _, v := range m.Data {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadMap decodes a map written by WriteMap.
func ReadMap(r io.Reader) (*ssim.Array, error) {
	br := bufio.NewReader(r)

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("failed to read map header: %w", err)
	}
	if magic != mapMagic {
		return nil, fmt.Errorf("invalid map magic %q", magic[:])
	}

	var ndim uint32
	if err := binary.Read(br, binary.LittleEndian, &ndim); err != nil {
		return nil, fmt.Errorf("failed to read map rank: %w", err)
	}
	if ndim == 0 || ndim > maxMapDims {
		return nil, fmt.Errorf("invalid map rank %d", ndim)
	}

	dims := make([]uint32, ndim)
	if err := binary.Read(br, binary.LittleEndian, dims); err != nil {
		return nil, fmt.Errorf("failed to read map dims: %w", err)
	}
	shape := make([]int, ndim)
	n := 1
	for i, d := range dims {
		shape[i] = int(d)
		n *= int(d)
	}

	flags, err := br.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("failed to read map flags: %w", err)
	}

	data := make([]float64, n)
	buf := make([]byte, 8)
	for i := range data {
		if _, err := io.ReadFull(br, buf); err != nil {
			return nil, fmt.Errorf("failed to read map samples: %w", err)
		}
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}

	return ssim.NewArray(ssim.DTypeFloat64, shape, data, flags&1 != 0)
}
