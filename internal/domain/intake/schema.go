package intake

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

// formSchemaSource constrains the shape of a form document. Operators are
// not constrained here; an unrecognised operator evaluates as never met.
const formSchemaSource = `
#Effect: "enable" | "require" | "sub-text"

#Trigger: {
	targetFieldKey:  string & !=""
	effects:         [#Effect, ...#Effect]
	operator:        string
	answerBoolean?:  bool
	answerString?:   string
	answerDateTime?: string
	substituteText?: string
}

#Field: {
	key?:             string
	kind?:            "input" | "display" | "group"
	label?:           string
	inputType?:       string
	dataType?:        "" | "ZIP" | "Phone Number" | "SSN" | "Email" | "DOB"
	disabledDisplay?: "hidden" | "disabled"
	enableBehavior?:  "any" | "all"
	triggers?:        [...#Trigger]
}

#FieldMap: [string]: #Field

#Section: {
	title:           string
	linkId:          string | [...string]
	items:           #FieldMap | [...#FieldMap]
	hiddenFields?:   [...string]
	requiredFields?: [...(string | [...string])]
	triggers?:       [...#Trigger]
	enableBehavior?: "any" | "all"
}

#FormConfig: {
	sections: [string]: #Section
	alwaysHiddenSections?: [...string]
}
`

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error

	// cue.Context is not safe for concurrent use.
	schemaMu sync.Mutex
)

func formSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		root := schemaCtx.CompileString(formSchemaSource)
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("compile form schema: %w", err)
			return
		}
		schemaValue = root.LookupPath(cue.ParsePath("#FormConfig"))
		if err := schemaValue.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup #FormConfig: %w", err)
		}
	})
	return schemaCtx, schemaValue, schemaErr
}

// CheckFormSchema validates a JSON form document against the form schema.
func CheckFormSchema(data []byte) error {
	ctx, schema, err := formSchema()
	if err != nil {
		return err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	doc := ctx.CompileBytes(data)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFormConfig, cueerrors.Details(err, nil))
	}
	if err := schema.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFormConfig, cueerrors.Details(err, nil))
	}
	return nil
}
