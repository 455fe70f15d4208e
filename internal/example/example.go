// Package example declares the demonstration applications served by the
// sharrock command and exercised by the tests.
package example

import (
	"context"
	"fmt"
	"net/http"

	"github.com/axilent/sharrock"
)

// App labels.
const (
	App              = "sharrock_example"
	ResourceApp      = "sharrock_resource_example"
	ModelResourceApp = "sharrock_modelresource_example"
	SecureApp        = "sharrock_secure_example"
)

// Version is the current API version of every example app.
const Version = "1.0"

// LegacyVersion is the deprecated API version of App.
const LegacyVersion = "0.9"

// LegacyReason is the deprecation reason of LegacyVersion.
const LegacyReason = "version 0.9 is retired, use 1.0"

// MeltMessage is the DELETE answer of MeResource.
const MeltMessage = "Aaaarrrggghhhh!  I'm meeelllltttiiinnnngggg!"

// SimpleService is a documented stub without params or an implementation.
func SimpleService() *sharrock.Descriptor {
	return sharrock.NewDescriptor("SimpleService", nil,
		sharrock.WithDocs("This is a simple service, without any params. It is double plus good."))
}

// ParameterizedService declares params but is not implemented.
func ParameterizedService() *sharrock.Descriptor {
	return sharrock.NewDescriptor("ParameterizedService", nil,
		sharrock.WithDocs("This service has parameters."),
		sharrock.WithParams(
			sharrock.UnicodeParam("foo", sharrock.Required(),
				sharrock.Describe("This is the foo. It has no spleem.")),
			sharrock.IntegerParam("bar"),
		),
	)
}

// HelloWorld says hello back to the supplied name, or to the world.
func HelloWorld(opts ...sharrock.DescriptorOption) *sharrock.Descriptor {
	base := []sharrock.DescriptorOption{
		sharrock.WithDocs("Says hello back to whichever name is supplied, or to world if no name is supplied."),
		sharrock.WithSecurity(sharrock.Public("anybody")),
		sharrock.WithSerializers(sharrock.JSONSerializer{}, sharrock.XMLSerializer{},
			sharrock.YAMLSerializer{}, sharrock.MsgpackSerializer{}),
		sharrock.WithParams(sharrock.UnicodeParam("name",
			sharrock.Default("world"),
			sharrock.Describe("The name to address. Will address world if no name specified."))),
	}
	return sharrock.NewDescriptor("HelloWorld", helloWorld, append(base, opts...)...)
}

func helloWorld(_ context.Context, _ *sharrock.Request, _ any, params sharrock.Params) (any, error) {
	return fmt.Sprintf("Hello %s!", params.String("name")), nil
}

// PostData echoes the foo member of a posted JSON object.
func PostData() *sharrock.Descriptor {
	return sharrock.NewDescriptor("PostData", postData,
		sharrock.WithDocs("A service to which a json data object is posted."))
}

func postData(_ context.Context, _ *sharrock.Request, data any, _ sharrock.Params) (any, error) {
	body, ok := data.(map[string]any)
	if !ok {
		return nil, sharrock.Error(http.StatusBadRequest, "a JSON object body is required")
	}
	return map[string]any{"grommit": body["foo"]}, nil
}

// Adder sums a list of integers; it reads its params from the JSON body.
func Adder() *sharrock.Descriptor {
	item := sharrock.IntegerParam("value")
	return sharrock.NewDescriptor("Adder", add,
		sharrock.WithDocs("Adds up the posted numbers."),
		sharrock.WithDataParsing(),
		sharrock.WithParams(sharrock.ListParam("numbers", &item, sharrock.Required())),
	)
}

func add(_ context.Context, _ *sharrock.Request, _ any, params sharrock.Params) (any, error) {
	var sum int64
	for _, n := range params.List("numbers") {
		v, _ := n.(int64)
		sum += v
	}
	return map[string]any{"sum": sum}, nil
}

func getMe(context.Context, *sharrock.Request, any, sharrock.Params) (any, error) {
	return "Get Method executed!", nil
}

func postMe(_ context.Context, _ *sharrock.Request, _ any, params sharrock.Params) (any, error) {
	return "Posted " + params.String("name"), nil
}

func putMe(_ context.Context, _ *sharrock.Request, _ any, params sharrock.Params) (any, error) {
	return "Put this:" + params.String("name"), nil
}

func deleteMe(context.Context, *sharrock.Request, any, sharrock.Params) (any, error) {
	return MeltMessage, nil
}

func getMeAction() *sharrock.Descriptor {
	return sharrock.NewDescriptor("GetMe", getMe, sharrock.Hidden(),
		sharrock.WithDocs("Gets a hello world message."))
}

// MeResource implements every verb.
func MeResource() *sharrock.Resource {
	name := func(verb string) sharrock.Param {
		return sharrock.UnicodeParam("name", sharrock.Required(), sharrock.Describe("The name to "+verb+"."))
	}
	return sharrock.NewResource("MeResource",
		sharrock.WithResourceDocs("A resource that you can get, post, put and delete."),
		sharrock.OnGet(getMeAction()),
		sharrock.OnPost(sharrock.NewDescriptor("PostMe", postMe, sharrock.Hidden(),
			sharrock.WithParams(name("post")))),
		sharrock.OnPut(sharrock.NewDescriptor("PutMe", putMe, sharrock.Hidden(),
			sharrock.WithParams(name("put")))),
		sharrock.OnDelete(sharrock.NewDescriptor("DeleteMe", deleteMe, sharrock.Hidden(),
			sharrock.WithDocs("Deletes it."))),
	)
}

// PartialResource implements GET only.
func PartialResource() *sharrock.Resource {
	return sharrock.NewResource("PartialResource",
		sharrock.WithResourceDocs("A resource with only one method implemented."),
		sharrock.OnGet(getMeAction()),
	)
}

// UserResource exposes users kept in store.
func UserResource(store sharrock.Store, opts ...sharrock.ResourceOption) *sharrock.Resource {
	return sharrock.NewModelResource("UserResource", store,
		append([]sharrock.ResourceOption{sharrock.WithResourceDocs("ModelResource for a User.")}, opts...)...)
}

// Whoami answers the name of the authenticated caller, behind check.
func Whoami(name string, check sharrock.SecurityCheck) *sharrock.Descriptor {
	return sharrock.NewDescriptor(name, whoami,
		sharrock.WithDocs("Answers the name of the authenticated caller."),
		sharrock.WithSecurity(check))
}

func whoami(_ context.Context, req *sharrock.Request, _ any, _ sharrock.Params) (any, error) {
	if user, _, ok := req.BasicAuth(); ok {
		return map[string]any{"user": user}, nil
	}
	return map[string]any{"user": "bearer"}, nil
}

// SecureModule exposes BasicWhoami and TokenWhoami for whichever checks are
// non-nil.
func SecureModule(basic, token sharrock.SecurityCheck) sharrock.Module {
	m := sharrock.Module{App: SecureApp, Version: Version}
	if basic != nil {
		m.Descriptors = append(m.Descriptors, Whoami("BasicWhoami", basic))
	}
	if token != nil {
		m.Descriptors = append(m.Descriptors, Whoami("TokenWhoami", token))
	}
	return m
}

// Sources returns every example application. users backs UserResource.
func Sources(users sharrock.Store) []sharrock.Source {
	return []sharrock.Source{
		sharrock.Package{
			App: App,
			Versions: []sharrock.Module{
				{
					Version:     Version,
					Descriptors: []*sharrock.Descriptor{SimpleService(), ParameterizedService(), HelloWorld(), PostData(), Adder()},
				},
				{
					Version:     LegacyVersion,
					Deprecated:  LegacyReason,
					Descriptors: []*sharrock.Descriptor{HelloWorld()},
				},
			},
		},
		sharrock.Module{
			App:       ResourceApp,
			Version:   Version,
			Resources: []*sharrock.Resource{MeResource(), PartialResource()},
		},
		sharrock.Module{
			App:       ModelResourceApp,
			Version:   Version,
			Resources: []*sharrock.Resource{UserResource(users)},
		},
	}
}
