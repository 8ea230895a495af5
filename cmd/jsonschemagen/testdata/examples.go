// Package testdata exercises the //jsonschema:embed marker jsonschemagen
// scans for. Run `go generate` in this directory to regenerate
// examples_schema.go (plus jsonschemagen_helpers_schema.go) from
// user.schema.json; `./...` patterns skip testdata directories.
package testdata

//go:generate jsonschemagen

//jsonschema:embed path="user.schema.json" draft="2020-12"
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}
