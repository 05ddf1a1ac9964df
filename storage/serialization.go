// Copyright 2025 Poiesic Systems
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
	"fmt"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	"github.com/poiesic/passage/core"
)

// Records are encoded field by field with mus-go serializers. The same field
// sequence drives both the size pass and the write pass, so the two cannot drift.

type encoder struct {
	bs     []byte
	n      int
	sizing bool
}

func (e *encoder) uint64(v uint64) {
	if e.sizing {
		e.n += varint.Uint64.Size(v)
		return
	}
	e.n += varint.Uint64.Marshal(v, e.bs[e.n:])
}

func (e *encoder) int64(v int64) {
	if e.sizing {
		e.n += varint.Int64.Size(v)
		return
	}
	e.n += varint.Int64.Marshal(v, e.bs[e.n:])
}

func (e *encoder) count(v int) {
	if e.sizing {
		e.n += varint.PositiveInt.Size(v)
		return
	}
	e.n += varint.PositiveInt.Marshal(v, e.bs[e.n:])
}

func (e *encoder) str(v string) {
	if e.sizing {
		e.n += ord.String.Size(v)
		return
	}
	e.n += ord.String.Marshal(v, e.bs[e.n:])
}

func (e *encoder) boolean(v bool) {
	if e.sizing {
		e.n += ord.Bool.Size(v)
		return
	}
	e.n += ord.Bool.Marshal(v, e.bs[e.n:])
}

func (e *encoder) float64(v float64) {
	if e.sizing {
		e.n += raw.Float64.Size(v)
		return
	}
	e.n += raw.Float64.Marshal(v, e.bs[e.n:])
}

// timestamp stores microseconds since the epoch; the zero time is stored as 0.
func (e *encoder) timestamp(t time.Time) {
	if t.IsZero() {
		e.int64(0)
		return
	}
	e.int64(t.UnixMicro())
}

func marshal(write func(*encoder)) []byte {
	sizer := &encoder{sizing: true}
	write(sizer)
	w := &encoder{bs: make([]byte, sizer.n)}
	write(w)
	return w.bs
}

// decoder reads fields in order and keeps the first error.
type decoder struct {
	bs  []byte
	n   int
	err error
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

// elems reads the length of a collection that follows it.
func (d *decoder) elems() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.PositiveInt.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	if d.err == nil && v > len(d.bs)-d.n {
		// Every element takes at least one byte.
		d.err = ErrTruncatedData
	}
	return v
}

// count reads a plain non-negative integer.
func (d *decoder) count() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.PositiveInt.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) str() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) boolean() bool {
	if d.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) float64() float64 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *decoder) timestamp() time.Time {
	us := d.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func (d *decoder) finish(what string) error {
	if d.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, d.err)
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	return marshal(func(e *encoder) { e.uint64(uint64(id)) })
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("%w: id: %w", ErrSerializationFailed, ErrTruncatedData)
	}
	d := &decoder{bs: data}
	id := core.ID(d.uint64())
	return id, d.finish("id")
}

// MarshalDocument serializes a Document to bytes. Metadata is written in key order
// so equal documents encode identically.
func MarshalDocument(doc *core.Document) []byte {
	keys := make([]string, 0, len(doc.Metadata))
	for k := range doc.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return marshal(func(e *encoder) {
		e.uint64(uint64(doc.Id))
		e.str(doc.Title)
		e.str(doc.Source)
		e.str(doc.ContentHash)
		e.str(doc.FileHash)
		e.boolean(doc.Markdown)
		e.count(len(doc.Tags))
		for _, t := range doc.Tags {
			e.str(t)
		}
		e.str(doc.Status)
		e.boolean(doc.LegalHold)
		e.count(len(keys))
		for _, k := range keys {
			e.str(k)
			e.str(doc.Metadata[k])
		}
		e.boolean(doc.Processed)
		e.str(doc.ProcessingError)
		e.count(doc.ChunkCount)
		e.timestamp(doc.InsertedAt)
		e.timestamp(doc.UpdatedAt)
	})
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d := &decoder{bs: data}
	doc := &core.Document{
		Id:          core.ID(d.uint64()),
		Title:       d.str(),
		Source:      d.str(),
		ContentHash: d.str(),
		FileHash:    d.str(),
	}
	doc.Markdown = d.boolean()
	if n := d.elems(); n > 0 {
		doc.Tags = make([]string, n)
		for i := range doc.Tags {
			doc.Tags[i] = d.str()
		}
	}
	doc.Status = d.str()
	doc.LegalHold = d.boolean()
	if n := d.elems(); n > 0 {
		doc.Metadata = make(map[string]string, n)
		for i := 0; i < n; i++ {
			k := d.str()
			doc.Metadata[k] = d.str()
		}
	}
	doc.Processed = d.boolean()
	doc.ProcessingError = d.str()
	doc.ChunkCount = d.count()
	doc.InsertedAt = d.timestamp()
	doc.UpdatedAt = d.timestamp()

	if err := d.finish("document"); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalChunk serializes a Chunk without its embedding; vectors are stored
// separately with core.EncodeVector.
func MarshalChunk(chunk *core.Chunk) []byte {
	return marshal(func(e *encoder) {
		e.uint64(uint64(chunk.DocumentId))
		e.count(chunk.Index)
		e.str(chunk.Content)
		e.count(chunk.WordCount)
	})
}

// UnmarshalChunk deserializes a Chunk. The embedding is left nil.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	d := &decoder{bs: data}
	chunk := &core.Chunk{
		DocumentId: core.ID(d.uint64()),
		Index:      d.count(),
		Content:    d.str(),
		WordCount:  d.count(),
	}
	if err := d.finish("chunk"); err != nil {
		return nil, err
	}
	return chunk, nil
}

// MarshalLineageEdge serializes a LineageEdge to bytes.
func MarshalLineageEdge(edge *core.LineageEdge) []byte {
	return marshal(func(e *encoder) {
		e.uint64(uint64(edge.SourceId))
		e.uint64(uint64(edge.TargetId))
		e.str(edge.Relation)
		e.float64(edge.Confidence)
		e.timestamp(edge.CreatedAt)
	})
}

// UnmarshalLineageEdge deserializes a LineageEdge from bytes.
func UnmarshalLineageEdge(data []byte) (*core.LineageEdge, error) {
	d := &decoder{bs: data}
	edge := &core.LineageEdge{
		SourceId:   core.ID(d.uint64()),
		TargetId:   core.ID(d.uint64()),
		Relation:   d.str(),
		Confidence: d.float64(),
		CreatedAt:  d.timestamp(),
	}
	if err := d.finish("lineage edge"); err != nil {
		return nil, err
	}
	return edge, nil
}

// MarshalCount serializes a non-negative integer such as the store's dimensionality.
func MarshalCount(n int) []byte {
	return marshal(func(e *encoder) { e.count(n) })
}

// UnmarshalCount deserializes a value written by MarshalCount.
func UnmarshalCount(data []byte) (int, error) {
	d := &decoder{bs: data}
	n := d.count()
	return n, d.finish("count")
}
