package core

import (
	"encoding/binary"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-crypt/x/blake2b"
)

// MaxFingerprintInput is the largest chunk text accepted for
// fingerprinting. Chunks are bounded well below this in practice.
const MaxFingerprintInput = 1 << 20

// volatileMetadataKeys are excluded from content identity because they
// change between runs without the content changing.
var volatileMetadataKeys = map[string]struct{}{
	"ingestion_time": {},
	"ingested_at":    {},
	"batch":          {},
}

// FingerprintChunk derives a stable content fingerprint for a chunk from
// its normalized text and identity-relevant metadata. Two chunks with
// identical semantic content and source metadata yield identical
// fingerprints across process restarts.
func FingerprintChunk(c *Chunk) (Fingerprint, error) {
	if len(c.Text) > MaxFingerprintInput {
		return 0, ErrContentTooLarge
	}

	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	io.WriteString(h, normalizeText(c.Text))
	io.WriteString(h, "\x00")
	io.WriteString(h, c.DocKey)
	io.WriteString(h, "\x00")
	io.WriteString(h, strconv.Itoa(c.Index))

	keys := make([]string, 0, len(c.Metadata))
	for k := range c.Metadata {
		if _, volatile := volatileMetadataKeys[k]; volatile {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		io.WriteString(h, "\x00")
		io.WriteString(h, k)
		io.WriteString(h, "\x01")
		io.WriteString(h, c.Metadata[k])
	}

	sum := h.Sum(nil)
	return Fingerprint(binary.LittleEndian.Uint64(sum)), nil
}

// normalizeText collapses runs of whitespace so that formatting-only
// differences do not change identity.
func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
