package chunker

import (
	"encoding/base32"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"math"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/faanross/simulacra_ppm/internal/spec"
)

// ================================================================================
// DNS TXT CHUNKING FOR STEGO CARRIERS
//
// A carrier (an encoded .ppm/.pgm file) is split into self-describing chunks
// that each fit in one TXT string. Chunks can arrive in any order; each one
// names its carrier, its position and the CRC32 of its payload.
//
// Wire form before base32:
//   [MAGIC(4)][CARRIER ID(8)][SEQ(2)][TOTAL(2)][CRC32(4)][PAYLOAD]
// ================================================================================

const (
	// HEADER_SIZE is the fixed chunk header length in bytes
	HEADER_SIZE = 4 + spec.CARRIER_ID_SIZE + 2 + 2 + 4

	// PAYLOAD_PER_CHUNK is what fits in SAFE_CHUNK_SIZE base32 characters
	// after the header: 250 chars carry 156 raw bytes, minus 20 for the header
	PAYLOAD_PER_CHUNK = spec.SAFE_CHUNK_SIZE*5/8 - HEADER_SIZE

	MANIFEST_VERSION = 1
)

var (
	ErrMalformed  = errors.New("malformed chunk")
	ErrChecksum   = errors.New("checksum mismatch")
	ErrIncomplete = errors.New("incomplete carrier")
	ErrMixed      = errors.New("chunks from different carriers")
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// ID identifies a carrier: the first 8 bytes of its BLAKE2b-256 digest.
type ID [spec.CARRIER_ID_SIZE]byte

// String is the lowercase hex form used in DNS labels.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// ParseID reads the hex form of an ID.
func ParseID(s string) (ID, error) {
	var id ID
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != len(id) {
		return id, fmt.Errorf("invalid carrier id %q", s)
	}
	copy(id[:], raw)
	return id, nil
}

// IDOf derives the carrier ID of data.
func IDOf(data []byte) ID {
	sum := blake2b.Sum256(data)
	var id ID
	copy(id[:], sum[:])
	return id
}

// Chunk is one DNS-ready fragment.
type Chunk struct {
	CarrierID ID
	Sequence  uint16
	Total     uint16
	Checksum  uint32
	Payload   []byte
}

// Encode renders the chunk as a base32 TXT string.
func (c Chunk) Encode() string {
	raw := make([]byte, HEADER_SIZE, HEADER_SIZE+len(c.Payload))
	binary.BigEndian.PutUint32(raw[0:4], spec.CHUNK_MAGIC)
	copy(raw[4:12], c.CarrierID[:])
	binary.BigEndian.PutUint16(raw[12:14], c.Sequence)
	binary.BigEndian.PutUint16(raw[14:16], c.Total)
	binary.BigEndian.PutUint32(raw[16:20], c.Checksum)
	raw = append(raw, c.Payload...)
	return encoding.EncodeToString(raw)
}

// Manifest describes a whole carrier.
type Manifest struct {
	Total    int
	Size     int
	Checksum uint32
}

// String renders the manifest TXT value, e.g. "v=1;n=3;size=400;crc=1a2b3c4d".
func (m Manifest) String() string {
	return fmt.Sprintf("v=%d;n=%d;size=%d;crc=%08x", MANIFEST_VERSION, m.Total, m.Size, m.Checksum)
}

// ParseManifest reads a manifest TXT value.
func ParseManifest(s string) (Manifest, error) {
	var m Manifest
	seen := 0
	for _, field := range strings.Split(s, ";") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return m, fmt.Errorf("%w: manifest field %q", ErrMalformed, field)
		}
		var err error
		switch key {
		case "v":
			var v int
			if v, err = strconv.Atoi(value); err == nil && v != MANIFEST_VERSION {
				return m, fmt.Errorf("%w: manifest version %d", ErrMalformed, v)
			}
		case "n":
			m.Total, err = strconv.Atoi(value)
		case "size":
			m.Size, err = strconv.Atoi(value)
		case "crc":
			var crc uint64
			crc, err = strconv.ParseUint(value, 16, 32)
			m.Checksum = uint32(crc)
		default:
			continue
		}
		if err != nil {
			return m, fmt.Errorf("%w: manifest field %q", ErrMalformed, field)
		}
		seen++
	}
	if seen != 4 {
		return m, fmt.Errorf("%w: manifest %q missing fields", ErrMalformed, s)
	}
	if m.Total <= 0 || m.Total > math.MaxUint16 || m.Size < m.Total {
		return m, fmt.Errorf("%w: manifest %q out of range", ErrMalformed, s)
	}
	return m, nil
}

// Carrier is a chunked carrier file.
type Carrier struct {
	ID       ID
	Manifest Manifest
	Chunks   []Chunk
}

// Split fragments data into chunks.
func Split(data []byte) (*Carrier, error) {
	if len(data) == 0 {
		return nil, errors.New("empty carrier")
	}

	total := (len(data) + PAYLOAD_PER_CHUNK - 1) / PAYLOAD_PER_CHUNK
	if total > math.MaxUint16 {
		return nil, fmt.Errorf("carrier too large: requires %d chunks (max %d)", total, math.MaxUint16)
	}

	c := &Carrier{
		ID: IDOf(data),
		Manifest: Manifest{
			Total:    total,
			Size:     len(data),
			Checksum: crc32.ChecksumIEEE(data),
		},
		Chunks: make([]Chunk, 0, total),
	}

	for seq := 0; seq < total; seq++ {
		start := seq * PAYLOAD_PER_CHUNK
		end := min(start+PAYLOAD_PER_CHUNK, len(data))
		payload := data[start:end]

		c.Chunks = append(c.Chunks, Chunk{
			CarrierID: c.ID,
			Sequence:  uint16(seq),
			Total:     uint16(total),
			Checksum:  crc32.ChecksumIEEE(payload),
			Payload:   payload,
		})
	}
	return c, nil
}

// DecodeChunk parses a TXT string back into a Chunk and verifies its CRC.
func DecodeChunk(encoded string) (Chunk, error) {
	var c Chunk
	raw, err := encoding.DecodeString(encoded)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(raw) < HEADER_SIZE {
		return c, fmt.Errorf("%w: %d bytes", ErrMalformed, len(raw))
	}
	if magic := binary.BigEndian.Uint32(raw[0:4]); magic != spec.CHUNK_MAGIC {
		return c, fmt.Errorf("%w: magic %08x", ErrMalformed, magic)
	}

	copy(c.CarrierID[:], raw[4:12])
	c.Sequence = binary.BigEndian.Uint16(raw[12:14])
	c.Total = binary.BigEndian.Uint16(raw[14:16])
	c.Checksum = binary.BigEndian.Uint32(raw[16:20])
	c.Payload = raw[HEADER_SIZE:]

	if c.Sequence >= c.Total {
		return c, fmt.Errorf("%w: sequence %d out of bounds (total %d)", ErrMalformed, c.Sequence, c.Total)
	}
	if crc := crc32.ChecksumIEEE(c.Payload); crc != c.Checksum {
		return c, fmt.Errorf("%w: chunk %d", ErrChecksum, c.Sequence)
	}
	return c, nil
}

// Reassemble rebuilds the carrier from chunks in any order and checks it
// against the manifest.
func Reassemble(m Manifest, chunks []Chunk) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks", ErrIncomplete)
	}

	id := chunks[0].CarrierID
	bySeq := make(map[uint16]Chunk, len(chunks))
	for _, c := range chunks {
		if c.CarrierID != id {
			return nil, fmt.Errorf("%w: %s vs %s", ErrMixed, id, c.CarrierID)
		}
		if int(c.Total) != m.Total {
			return nil, fmt.Errorf("%w: chunk %d claims %d chunks, manifest %d", ErrMalformed, c.Sequence, c.Total, m.Total)
		}
		bySeq[c.Sequence] = c
	}

	if missing := Missing(m.Total, chunks); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing chunks %v", ErrIncomplete, missing)
	}

	data := make([]byte, 0, m.Size)
	for seq := 0; seq < m.Total; seq++ {
		data = append(data, bySeq[uint16(seq)].Payload...)
	}

	if len(data) != m.Size {
		return nil, fmt.Errorf("%w: reassembled %d bytes, manifest %d", ErrIncomplete, len(data), m.Size)
	}
	if crc := crc32.ChecksumIEEE(data); crc != m.Checksum {
		return nil, fmt.Errorf("%w: carrier crc %08x, manifest %08x", ErrChecksum, crc, m.Checksum)
	}
	if IDOf(data) != id {
		return nil, fmt.Errorf("%w: carrier digest does not match id %s", ErrChecksum, id)
	}
	return data, nil
}

// Missing lists the sequence numbers below total not present in chunks.
func Missing(total int, chunks []Chunk) []int {
	present := make(map[int]bool, len(chunks))
	for _, c := range chunks {
		present[int(c.Sequence)] = true
	}

	var missing []int
	for seq := 0; seq < total; seq++ {
		if !present[seq] {
			missing = append(missing, seq)
		}
	}
	return missing
}

// Overhead is the header cost relative to the carrier size, in percent.
func (c *Carrier) Overhead() float64 {
	return float64(len(c.Chunks)*HEADER_SIZE) / float64(c.Manifest.Size) * 100
}

// Encoded returns the TXT strings in sequence order.
func (c *Carrier) Encoded() []string {
	out := make([]string, len(c.Chunks))
	for i, chunk := range c.Chunks {
		out[i] = chunk.Encode()
	}
	return out
}
