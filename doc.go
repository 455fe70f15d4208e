// Package sharrock exposes plain Go functions as self-describing remote
// procedures and REST resources over HTTP.
//
// A Descriptor wraps an ExecuteFunc together with its declared parameters,
// serializers and security check:
//
//	hello := sharrock.NewDescriptor("HelloWorld", helloWorld,
//	    sharrock.WithParams(sharrock.UnicodeParam("name", sharrock.Default("world"))),
//	)
//
// A Resource groups one descriptor per HTTP verb under a single URL:
//
//	me := sharrock.NewResource("MeResource",
//	    sharrock.OnGet(getMe),
//	    sharrock.OnPost(postMe),
//	)
//
// Services are published in a Module for an app and API version, and a
// Registry indexes every Module it is given by (app, version, slug):
//
//	reg := sharrock.NewRegistry(sharrock.Module{
//	    App:         "hello",
//	    Version:     "1.0",
//	    Descriptors: []*sharrock.Descriptor{hello},
//	    Resources:   []*sharrock.Resource{me},
//	})
//
// The Router serves the registry. Middleware uses the standard
// func(http.Handler) http.Handler signature:
//
//	r := sharrock.New(reg, sharrock.WithLogger(logger))
//	r.Use(sharrock.RequestID(), sharrock.Logger(logger), sharrock.Recovery(logger))
//
// Every service answers its own self-description at
// /describe/<app>/<version>/<slug>.<ext>, which the client package uses to
// validate calls before they are sent.
package sharrock
