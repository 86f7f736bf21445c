package collection

import (
	"io"
	"time"

	"github.com/SierraSoftworks/connor"
	jsonv2 "github.com/go-json-experiment/json"
)

func nowMillis() int64 { return time.Now().UnixMilli() }

// readSpan fetches r fully and slices out [offset, offset+length). The
// abstract Store contract has no ranged read, so the index fast path still
// saves the per-line JSON decode of a full scan even though it cannot save
// the transfer itself.
func readSpan(r io.Reader, offset, length int64) ([]byte, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if offset < 0 || length < 0 || offset+length > int64(len(body)) {
		return nil, io.ErrUnexpectedEOF
	}
	return body[offset : offset+length], nil
}

func jsonUnmarshalLoose(data []byte, out any) error {
	return jsonv2.Unmarshal(data, out)
}

func matchWhere(where map[string]any, data []byte) (bool, error) {
	var obj map[string]any
	if err := jsonUnmarshalLoose(data, &obj); err != nil {
		return false, err
	}
	return connor.Match(where, obj)
}
