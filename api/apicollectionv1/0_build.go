// Package apicollectionv1 is the HTTP resource tree for the collection and
// vector-search engine: one file per route, box.R resources, reflection-bound
// handlers taking a decoded body struct and returning (result, error).
package apicollectionv1

import (
	"github.com/fulldump/box"

	"github.com/coldbase/coldbase/service"
)

func BuildV1Collection(v1 *box.R, s service.Servicer) *box.R {

	collections := v1.Resource("/collections").
		WithActions(
			box.Get(listCollections),
			box.Post(createCollection),
		)

	v1.Resource("/collections/{collectionName}").
		WithActions(
			box.Get(getCollection),
			box.ActionPost(dropCollection),
			box.ActionPost(insert),
			box.ActionPost(get),
			box.ActionPost(getMany),
			box.ActionPost(remove),
			box.ActionPost(batch),
			box.ActionPost(find),
			box.ActionPost(count),
			box.ActionPost(compact),
			box.ActionPost(vacuum),
			box.ActionPost(search),
		)

	return collections
}
