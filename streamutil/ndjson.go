package streamutil

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Record is the [id, data, ts] triple persisted per spec §3/§6.3. Data is
// nil for a tombstone. Ts is optional on decode: older two-element arrays
// parse with Ts == 0.
type Record struct {
	ID   string
	Data []byte // raw JSON, nil means tombstone
	Ts   int64
}

// IsTombstone reports whether Data represents the JSON literal null.
func (r Record) IsTombstone() bool {
	return r.Data == nil || bytes.Equal(bytes.TrimSpace(r.Data), []byte("null"))
}

// Encode serializes the record as a JSON array `[id, data, ts]`.
func (r Record) Encode() ([]byte, error) {
	data := r.Data
	if data == nil {
		data = []byte("null")
	}
	return jsonv2.Marshal([]any{r.ID, jsonRaw(data), r.Ts})
}

// jsonRaw lets us splice already-encoded JSON into a []any for Marshal.
type jsonRaw []byte

func (j jsonRaw) MarshalJSON() ([]byte, error) { return j, nil }

// DecodeRecord parses a single `[id, data]` or `[id, data, ts]` line.
func DecodeRecord(line []byte) (Record, error) {
	var tuple []jsontext.Value
	if err := jsonv2.Unmarshal(line, &tuple); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	if len(tuple) < 2 {
		return Record{}, fmt.Errorf("decode record: expected at least 2 elements, got %d", len(tuple))
	}

	var id string
	if err := jsonv2.Unmarshal(tuple[0], &id); err != nil {
		return Record{}, fmt.Errorf("decode record id: %w", err)
	}
	if id == "" {
		return Record{}, fmt.Errorf("decode record: empty id")
	}

	data := []byte(tuple[1])
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = nil
	}

	var ts int64
	if len(tuple) >= 3 {
		if err := jsonv2.Unmarshal(tuple[2], &ts); err != nil {
			return Record{}, fmt.Errorf("decode record ts: %w", err)
		}
	}

	return Record{ID: id, Data: data, Ts: ts}, nil
}

// Line is one physical NDJSON line together with its byte span inside the
// stream it was read from, measured in bytes (the index unit decided in
// DESIGN.md, open question §9.1).
type Line struct {
	Offset int64
	Length int64 // length of the line content, excluding the trailing newline
	Bytes  []byte
}

// EachLine streams r line by line, invoking f with the byte offset/length
// of each non-empty line. It never buffers the whole stream in memory.
func EachLine(r io.Reader, f func(Line) error) error {
	br := bufio.NewReaderSize(r, 64*1024)

	var offset int64
	for {
		raw, err := br.ReadBytes('\n')
		hadNewline := len(raw) > 0 && raw[len(raw)-1] == '\n'
		content := raw
		if hadNewline {
			content = raw[:len(raw)-1]
		}

		if len(content) > 0 {
			if cbErr := f(Line{Offset: offset, Length: int64(len(content)), Bytes: content}); cbErr != nil {
				return cbErr
			}
		}

		offset += int64(len(content))
		if hadNewline {
			offset++
		}

		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// DecodeMutationBatch parses a mutation blob body: a JSON array of
// records, each itself a [id,data,ts] tuple.
func DecodeMutationBatch(body []byte) ([]Record, error) {
	var raw []jsontext.Value
	if err := jsonv2.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode mutation batch: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		rec, err := DecodeRecord(r)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// EncodeMutationBatch serializes a mutation blob body from records.
func EncodeMutationBatch(records []Record) ([]byte, error) {
	buf := &bytes.Buffer{}
	buf.WriteByte('[')
	for i, rec := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		encoded, err := rec.Encode()
		if err != nil {
			return nil, err
		}
		buf.Write(encoded)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}
