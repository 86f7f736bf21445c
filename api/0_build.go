// Package api wires the collection/vector engine to an HTTP surface: a
// box.B resource tree, standard interceptors (access log, panic recovery,
// availability gate, pretty errors), and the apicollectionv1 route set.
// Authentication and an OpenAPI surface are left to a caller-supplied
// reverse proxy or gateway.
package api

import (
	"context"

	"github.com/fulldump/box"

	"github.com/coldbase/coldbase/api/apicollectionv1"
	"github.com/coldbase/coldbase/database"
	"github.com/coldbase/coldbase/service"
)

func Build(db *database.Database, s service.Servicer) *box.B {

	b := box.NewBox()

	v1 := b.Resource("/v1")
	apicollectionv1.BuildV1Collection(v1, s).
		WithInterceptors(
			injectServicer(s),
		)

	b.WithInterceptors(
		InterceptorUnavailable(db),
		RecoverFromPanic,
		PrettyErrorInterceptor,
	)

	return b
}

func injectServicer(s service.Servicer) box.I {
	return func(next box.H) box.H {
		return func(ctx context.Context) {
			next(apicollectionv1.SetServicer(ctx, s))
		}
	}
}
