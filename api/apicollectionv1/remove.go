package apicollectionv1

import (
	"context"
)

type removeRequest struct {
	ID string `json:"id"`
}

func remove(ctx context.Context, input *removeRequest) error {

	col, _, err := getHandle(ctx)
	if err != nil {
		return err
	}

	return col.Delete(ctx, input.ID)
}
