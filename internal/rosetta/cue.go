package rosetta

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// macroSchema constrains macro files:
//
//	macros: strided_compose: {
//		params:      ["src1", "src2", "dst"]
//		description: "normalized dot product"
//		body: [
//			"src1 = tensor.norm(src1, mode=l2)",
//			"src2 = tensor.norm(src2, mode=l2)",
//			"dst = tensor.compose(src1, src2, mode=dot)",
//		]
//	}
const macroSchema = `
#Macro: {
	params: [...string]
	description: *"" | string
	body: [string, ...string]
}
macros: [string]: #Macro
`

type macroSpec struct {
	Params      []string `json:"params"`
	Description string   `json:"description"`
	Body        []string `json:"body"`
}

// LoadMacros reads every *.cue file in dir, unifies them against the macro
// schema and returns the template macros they define, sorted by name.
func LoadMacros(dir string) ([]Macro, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}
	slices.Sort(files)

	ctx := cuecontext.New()
	v := ctx.CompileString(macroSchema, cue.Filename("macro-schema.cue"))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		f := ctx.CompileBytes(data, cue.Filename(path))
		if err := f.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		v = v.Unify(f)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	macrosVal := v.LookupPath(cue.ParsePath("macros"))
	if !macrosVal.Exists() {
		return nil, nil
	}
	iter, err := macrosVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []Macro
	for iter.Next() {
		var spec macroSpec
		if err := iter.Value().Decode(&spec); err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, TemplateMacro(iter.Label(), spec.Params, spec.Description, spec.Body))
	}
	slices.SortFunc(out, func(a, b Macro) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// LoadDir registers every macro LoadMacros finds in dir and returns how
// many there were.
func (r *Registry) LoadDir(dir string) (int, error) {
	macros, err := LoadMacros(dir)
	if err != nil {
		return 0, err
	}
	for _, m := range macros {
		if err := r.Register(m); err != nil {
			return 0, fmt.Errorf("%s: %w", dir, err)
		}
	}
	return len(macros), nil
}
