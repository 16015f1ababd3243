package chunker

import (
	"unicode/utf8"

	"github.com/TogetherCrew/hivemind-backend/core"
)

// DefaultTargetSize is the default approximate chunk size in bytes.
const DefaultTargetSize = 512

// Chunker splits a document's text into a non-overlapping ordered
// sequence of chunks, each bounded by the target size. Boundaries
// prefer sentence breaks so chunks stay semantically coherent; the
// size bound is approximate, never exceeded.
//
// Splitting is deterministic for a given document and configuration,
// which keeps chunk fingerprints stable across runs.
type Chunker struct {
	targetSize int
}

// Option configures a Chunker.
type Option func(*Chunker)

// WithTargetSize sets the approximate chunk size in bytes.
// Non-positive values are ignored.
func WithTargetSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.targetSize = size
		}
	}
}

// New creates a Chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{targetSize: DefaultTargetSize}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Split chunks the document's text. Every chunk inherits the parent's
// metadata and gains a 0-based index. Empty text produces zero chunks;
// text within the target size produces exactly one.
//
// Chunk texts are exact substrings of the source: concatenating them in
// index order reconstructs the document text.
func (c *Chunker) Split(doc *core.Document) []core.Chunk {
	if doc.Text == "" {
		return nil
	}

	segments := c.segment(doc.Text)

	chunks := make([]core.Chunk, 0, len(segments))
	for i, text := range segments {
		chunks = append(chunks, core.Chunk{
			DocKey:   doc.Key,
			Index:    i,
			Text:     text,
			Metadata: doc.Metadata,
		})
	}
	return chunks
}

// segment greedily packs sentences into chunks of at most targetSize
// bytes. A single sentence longer than the target is hard-split at rune
// boundaries.
func (c *Chunker) segment(text string) []string {
	var segments []string
	var start, length int

	flush := func(end int) {
		if end > start {
			segments = append(segments, text[start:end])
			start = end
			length = 0
		}
	}

	for _, boundary := range sentenceBoundaries(text) {
		sentence := boundary - start - length
		if length > 0 && length+sentence > c.targetSize {
			flush(start + length)
			sentence = boundary - start
		}
		if sentence > c.targetSize {
			// Oversized sentence: cut at the target, respecting runes.
			for boundary-start > c.targetSize {
				cut := start + c.targetSize
				for cut > start && !utf8.RuneStart(text[cut]) {
					cut--
				}
				if cut == start {
					// Target smaller than one rune; emit the rune whole.
					_, size := utf8.DecodeRuneInString(text[start:])
					cut = start + size
				}
				flush(cut)
			}
			length = boundary - start
		} else {
			length += sentence
		}
		if length >= c.targetSize {
			flush(start + length)
		}
	}
	flush(start + length)
	return segments
}

// sentenceBoundaries returns the end offsets of sentences in text,
// always including len(text) as the final boundary. A sentence ends
// after '.', '!', '?', or '\n' followed by a space or end of text.
func sentenceBoundaries(text string) []int {
	var boundaries []int
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?', '\n':
			end := i + 1
			// Consume trailing spaces into the sentence so concatenation
			// stays lossless.
			for end < len(text) && text[end] == ' ' {
				end++
			}
			if end == len(text) || end > i+1 || text[i] == '\n' {
				boundaries = append(boundaries, end)
				i = end - 1
			}
		}
	}
	if len(boundaries) == 0 || boundaries[len(boundaries)-1] != len(text) {
		boundaries = append(boundaries, len(text))
	}
	return boundaries
}
