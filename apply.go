package jsonschema

// BasicOutput is the "basic" output format from the JSON Schema output
// specification: a flat list of errors, each naming the instance location
// and schema location it came from.
type BasicOutput struct {
	Valid  bool         `json:"valid"`
	Errors []OutputUnit `json:"errors,omitempty"`
}

// OutputUnit is one entry of a BasicOutput: where in the instance the
// failure occurred, where in the schema it was raised, and a rendered
// message.
type OutputUnit struct {
	InstanceLocation string `json:"instanceLocation"`
	SchemaLocation   string `json:"keywordLocation"`
	Error            string `json:"error"`
}

// Apply runs the instance through the schema and returns it in basic
// output form, the shape most interoperability tests and UI error lists
// expect (spec §6 "apply").
func (v *Validator) Apply(instance any) *BasicOutput {
	errs := v.IterErrors(instance)
	out := &BasicOutput{Valid: len(errs) == 0}
	for _, e := range errs {
		out.Errors = append(out.Errors, OutputUnit{
			InstanceLocation: e.InstancePath(),
			SchemaLocation:   e.SchemaPath(),
			Error:            replaceParams(e.Message, e.Params),
		})
	}
	return out
}
