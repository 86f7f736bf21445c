package apicollectionv1

import (
	"context"
	"net/http"
)

type getRequest struct {
	ID string `json:"id"`
	At *int64 `json:"at"`
}

func get(ctx context.Context, w http.ResponseWriter, input *getRequest) error {

	col, _, err := getHandle(ctx)
	if err != nil {
		return err
	}

	rec, found, err := col.Get(ctx, input.ID, input.At)
	if err != nil {
		return err
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return errNotFound(input.ID)
	}

	w.Write(rec.Data)
	return nil
}
