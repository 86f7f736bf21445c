package apicollectionv1

import (
	"bufio"
	"context"
	"net/http"

	jsonv2 "github.com/go-json-experiment/json"
	"github.com/pkg/errors"
)

var errMissingID = errors.New("apicollectionv1: document is missing an \"id\" field")

type insertRequest struct {
	ID string `json:"id"`
}

// insert accepts one JSON document per line, in the spirit of the
// teacher's streaming insert: each line must carry an "id" field and is
// stored verbatim as the record's data.
func insert(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

	col, _, err := getHandle(ctx)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	count := 0
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		raw := append([]byte(nil), line...)

		var req insertRequest
		if err := jsonv2.Unmarshal(raw, &req); err != nil {
			if count == 0 {
				w.WriteHeader(http.StatusBadRequest)
			}
			return err
		}
		if req.ID == "" {
			if count == 0 {
				w.WriteHeader(http.StatusBadRequest)
			}
			return errMissingID
		}

		if err := col.Put(ctx, req.ID, raw); err != nil {
			if count == 0 {
				w.WriteHeader(http.StatusConflict)
			}
			return err
		}

		if count == 0 {
			w.WriteHeader(http.StatusCreated)
		}
		count++
		w.Write(raw)
		w.Write([]byte("\n"))
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if count == 0 {
		w.WriteHeader(http.StatusNoContent)
	}
	return nil
}
