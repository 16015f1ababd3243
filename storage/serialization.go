// Copyright 2025 TogetherCrew
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"sort"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/TogetherCrew/hivemind-backend/core"
)

// MUS serializers for the values stored in BadgerDB. Timestamps are
// stored as unix microseconds.

// MarshalVector serializes an embedding vector to bytes.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, sizeVector(vector))
	marshalVector(vector, buf)
	return buf
}

// UnmarshalVector deserializes an embedding vector from bytes.
func UnmarshalVector(data []byte) ([]float32, error) {
	vector, _, err := unmarshalVector(data)
	return vector, err
}

// MarshalEmbeddedChunk serializes an EmbeddedChunk to bytes.
func MarshalEmbeddedChunk(chunk *core.EmbeddedChunk) []byte {
	buf := make([]byte, sizeEmbeddedChunk(chunk))
	n := ord.String.Marshal(chunk.DocKey, buf)
	n += varint.Int.Marshal(chunk.Index, buf[n:])
	n += ord.String.Marshal(chunk.Text, buf[n:])
	n += marshalMetadata(chunk.Metadata, buf[n:])
	marshalVector(chunk.Vector, buf[n:])
	return buf
}

// UnmarshalEmbeddedChunk deserializes an EmbeddedChunk from bytes.
func UnmarshalEmbeddedChunk(data []byte) (*core.EmbeddedChunk, error) {
	chunk := &core.EmbeddedChunk{}
	docKey, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	chunk.DocKey = docKey

	index, n1, err := varint.Int.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	n += n1
	chunk.Index = index

	text, n1, err := ord.String.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	n += n1
	chunk.Text = text

	metadata, n1, err := unmarshalMetadata(data[n:])
	if err != nil {
		return nil, err
	}
	n += n1
	chunk.Metadata = metadata

	vector, _, err := unmarshalVector(data[n:])
	if err != nil {
		return nil, err
	}
	chunk.Vector = vector
	return chunk, nil
}

// MarshalRegistryEntry serializes a RegistryEntry to bytes.
func MarshalRegistryEntry(entry *RegistryEntry) []byte {
	size := ord.String.Size(entry.Key) +
		varint.Uint64.Size(uint64(entry.Fingerprint)) +
		varint.Int64.Size(entry.UpdatedAt.UnixMicro())
	buf := make([]byte, size)
	n := ord.String.Marshal(entry.Key, buf)
	n += varint.Uint64.Marshal(uint64(entry.Fingerprint), buf[n:])
	varint.Int64.Marshal(entry.UpdatedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalRegistryEntry deserializes a RegistryEntry from bytes.
func UnmarshalRegistryEntry(data []byte) (*RegistryEntry, error) {
	key, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	fp, n1, err := varint.Uint64.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	n += n1
	micros, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	return &RegistryEntry{
		Key:         key,
		Fingerprint: core.Fingerprint(fp),
		UpdatedAt:   time.UnixMicro(micros).UTC(),
	}, nil
}

// MarshalWatermark serializes a Watermark to bytes.
func MarshalWatermark(wm *core.Watermark) []byte {
	size := ord.String.Size(wm.Collection) +
		varint.Int64.Size(wm.Timestamp.UnixMicro()) +
		varint.Int64.Size(wm.UpdatedAt.UnixMicro())
	buf := make([]byte, size)
	n := ord.String.Marshal(wm.Collection, buf)
	n += varint.Int64.Marshal(wm.Timestamp.UnixMicro(), buf[n:])
	varint.Int64.Marshal(wm.UpdatedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalWatermark deserializes a Watermark from bytes.
func UnmarshalWatermark(data []byte) (*core.Watermark, error) {
	collection, n, err := ord.String.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	ts, n1, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	n += n1
	updated, _, err := varint.Int64.Unmarshal(data[n:])
	if err != nil {
		return nil, err
	}
	return &core.Watermark{
		Collection: collection,
		Timestamp:  time.UnixMicro(ts).UTC(),
		UpdatedAt:  time.UnixMicro(updated).UTC(),
	}, nil
}

func sizeVector(vector []float32) int {
	size := varint.Int.Size(len(vector))
	for _, v := range vector {
		size += raw.Float32.Size(v)
	}
	return size
}

func marshalVector(vector []float32, buf []byte) int {
	n := varint.Int.Marshal(len(vector), buf)
	for _, v := range vector {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	return n
}

func unmarshalVector(data []byte) ([]float32, int, error) {
	length, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, n, err
	}
	if length < 0 || length > len(data)-n {
		return nil, n, ErrTruncatedData
	}
	vector := make([]float32, length)
	for i := 0; i < length; i++ {
		v, n1, err := raw.Float32.Unmarshal(data[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		vector[i] = v
	}
	return vector, n, nil
}

func sizeMetadata(metadata map[string]string) int {
	size := varint.Int.Size(len(metadata))
	for k, v := range metadata {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

func marshalMetadata(metadata map[string]string, buf []byte) int {
	n := varint.Int.Marshal(len(metadata), buf)
	// Sort keys so serialization is deterministic.
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(metadata[k], buf[n:])
	}
	return n
}

func unmarshalMetadata(data []byte) (map[string]string, int, error) {
	count, n, err := varint.Int.Unmarshal(data)
	if err != nil {
		return nil, n, err
	}
	if count < 0 || count > len(data)-n {
		return nil, n, ErrTruncatedData
	}
	if count == 0 {
		return nil, n, nil
	}
	metadata := make(map[string]string, count)
	for i := 0; i < count; i++ {
		k, n1, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		v, n1, err := ord.String.Unmarshal(data[n:])
		if err != nil {
			return nil, n, err
		}
		n += n1
		metadata[k] = v
	}
	return metadata, n, nil
}

func sizeEmbeddedChunk(chunk *core.EmbeddedChunk) int {
	return ord.String.Size(chunk.DocKey) +
		varint.Int.Size(chunk.Index) +
		ord.String.Size(chunk.Text) +
		sizeMetadata(chunk.Metadata) +
		sizeVector(chunk.Vector)
}
