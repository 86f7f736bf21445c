package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/fulldump/apitest"
	. "github.com/fulldump/biff"

	"github.com/coldbase/coldbase/blobstore/memblob"
	"github.com/coldbase/coldbase/database"
	"github.com/coldbase/coldbase/service"
)

func TestAcceptance(t *testing.T) {

	Alternative("Setup", func(a *A) {

		ctx := context.Background()
		db := database.NewDatabase(database.Config{Store: memblob.New()})
		AssertNil(db.Load(ctx))
		AssertEqual(db.GetStatus(), database.StatusOperating)

		s := service.NewService(db)
		b := Build(db, s)

		api := apitest.NewWithHandler(b)

		a.Alternative("Create collection", func(a *A) {
			resp := api.Request("POST", "/v1/collections").
				WithBodyJson(map[string]any{"name": "orders"}).Do()

			AssertEqual(resp.StatusCode, http.StatusCreated)
			AssertEqualJson(resp.BodyJson(), map[string]any{
				"name":  "orders",
				"total": float64(0),
			})

			a.Alternative("Get collection", func(a *A) {
				resp := api.Request("GET", "/v1/collections/orders").Do()
				AssertEqual(resp.StatusCode, http.StatusOK)
			})

			a.Alternative("List collections", func(a *A) {
				resp := api.Request("GET", "/v1/collections").Do()
				AssertEqual(resp.StatusCode, http.StatusOK)
			})

			a.Alternative("Insert then get", func(a *A) {
				resp := api.Request("POST", "/v1/collections/orders:insert").
					WithBodyString(`{"id":"o1","total":10}` + "\n").Do()
				AssertEqual(resp.StatusCode, http.StatusCreated)

				resp = api.Request("POST", "/v1/collections/orders:get").
					WithBodyJson(map[string]any{"id": "o1"}).Do()
				AssertEqual(resp.StatusCode, http.StatusOK)
				AssertEqualJson(resp.BodyJson(), map[string]any{
					"id":    "o1",
					"total": float64(10),
				})

				a.Alternative("Count", func(a *A) {
					resp := api.Request("POST", "/v1/collections/orders:count").
						WithBodyJson(map[string]any{}).Do()
					AssertEqual(resp.StatusCode, http.StatusOK)
					AssertEqualJson(resp.BodyJson(), map[string]any{"count": float64(1)})
				})

				a.Alternative("Delete then get is not found", func(a *A) {
					resp := api.Request("POST", "/v1/collections/orders:remove").
						WithBodyJson(map[string]any{"id": "o1"}).Do()
					AssertEqual(resp.StatusCode, http.StatusOK)

					resp = api.Request("POST", "/v1/collections/orders:get").
						WithBodyJson(map[string]any{"id": "o1"}).Do()
					AssertEqual(resp.StatusCode, http.StatusNotFound)
				})
			})

			a.Alternative("Drop then get is not found", func(a *A) {
				resp := api.Request("POST", "/v1/collections/orders:dropCollection").Do()
				AssertEqual(resp.StatusCode, http.StatusOK)

				resp = api.Request("GET", "/v1/collections/orders").Do()
				AssertEqual(resp.StatusCode, http.StatusNotFound)
			})
		})
	})
}
