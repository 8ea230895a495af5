package jsonschema

import "embed"

//go:embed metaschemas/*.json
var metaschemaFS embed.FS

// bundledMetaschema pairs one embedded meta-schema document with its
// canonical URI and dialect, per spec §6 "Bundled meta-schemas": one JSON
// document per dialect, pre-registered under its canonical URI.
type bundledMetaschema struct {
	uri     string
	dialect Dialect
	doc     any
}

var bundledMetaschemaFiles = []struct {
	path    string
	uri     string
	dialect Dialect
}{
	{"metaschemas/draft4.json", "http://json-schema.org/draft-04/schema#", Draft4},
	{"metaschemas/draft6.json", "http://json-schema.org/draft-06/schema#", Draft6},
	{"metaschemas/draft7.json", "http://json-schema.org/draft-07/schema#", Draft7},
	{"metaschemas/2019-09.json", "https://json-schema.org/draft/2019-09/schema", Draft2019_09},
	{"metaschemas/2020-12.json", "https://json-schema.org/draft/2020-12/schema", Draft2020_12},
}

// bundledMetaschemas decodes the embedded documents once, at process start
// (spec §9 "Global state"), and is read-only from then on; Registry.index
// only ever reads these, it never mutates them.
var bundledMetaschemas = loadBundledMetaschemas()

func loadBundledMetaschemas() []bundledMetaschema {
	out := make([]bundledMetaschema, 0, len(bundledMetaschemaFiles))
	for _, f := range bundledMetaschemaFiles {
		raw, err := metaschemaFS.ReadFile(f.path)
		if err != nil {
			panic("jsonschema: missing bundled meta-schema " + f.path + ": " + err.Error())
		}
		doc, err := decodeJSON(raw)
		if err != nil {
			panic("jsonschema: malformed bundled meta-schema " + f.path + ": " + err.Error())
		}
		out = append(out, bundledMetaschema{uri: f.uri, dialect: f.dialect, doc: doc})
	}
	return out
}
