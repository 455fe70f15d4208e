// Package chiroute serves a sharrock registry from a go-chi router, for
// hosts that already route with chi.
package chiroute

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/axilent/sharrock"
)

// PathParam reads path parameters matched by chi.
func PathParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// Mount registers the service, describe, directory and OpenAPI routes of sr
// on r. Middleware added to sr with Use does not run; add it to r instead.
//
//	r := chi.NewRouter()
//	r.Use(sharrock.RequestID())
//	r.Route("/api", func(r chi.Router) { chiroute.Mount(r, sr) })
func Mount(r chi.Router, sr *sharrock.Router) {
	execute := sr.ExecuteHandler(PathParam)
	r.Handle("/{app}/{version}/{name}", execute)
	r.Handle("/{app}/{version}/{name}/", execute)
	r.Handle("/{app}/{version}/{name}/{id}", execute)

	describe := sr.DescribeHandler(PathParam)
	r.Get("/describe/{app}/{version}/{name}", describe.ServeHTTP)
	r.Get("/describe/{app}/{version}/{name}/", describe.ServeHTTP)

	dir := sr.DirectoryHandler(PathParam)
	for _, ext := range sr.Extensions() {
		r.Get("/dir."+ext, dir.ServeHTTP)
	}
	r.Get("/dir/", dir.ServeHTTP)
	r.Get("/dir/{app}/{version}/", dir.ServeHTTP)
	r.Get("/dir/{app}/{name}", dir.ServeHTTP)

	spec := sr.SpecHandler()
	for _, ext := range sharrock.SpecFormats() {
		r.Get("/openapi."+ext, spec.ServeHTTP)
	}
}
