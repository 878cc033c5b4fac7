package registry

import (
	"strings"

	"github.com/roach88/corrlookup/internal/ir"
)

// Wildcard in a weight-set pattern. As the source pattern it imports every
// object; in the output pattern it stands for the source object's name.
const Wildcard = "*"

// WeightSet is one parsed "<out> <src> <path>" import instruction.
type WeightSet struct {
	Out  string // output key pattern
	Src  string // source object name or Wildcard
	Path string // source file
}

// String renders the weight set in its line form.
func (w WeightSet) String() string {
	return w.Out + " " + w.Src + " " + w.Path
}

// ParseWeightSet parses a weight-set line of exactly three
// whitespace-separated tokens.
//
// Returns PARSE_ERROR for any other token count.
func ParseWeightSet(line string) (WeightSet, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return WeightSet{}, ir.Errorf(ir.CodeParse, "weight set %q has %d tokens, expected \"<out> <src> <path>\"", line, len(fields))
	}
	return WeightSet{Out: fields[0], Src: fields[1], Path: fields[2]}, nil
}

// keyFor maps a source object name to its registry key.
func (w WeightSet) keyFor(object string) string {
	switch {
	case w.Out == Wildcard:
		return object
	case strings.Contains(w.Out, Wildcard):
		return strings.ReplaceAll(w.Out, Wildcard, object)
	default:
		return w.Out
	}
}

// selectObjects returns the objects w imports from objs, in source order.
func (w WeightSet) selectObjects(objs []ir.Object) ([]ir.Object, error) {
	if w.Src == Wildcard {
		if !strings.Contains(w.Out, Wildcard) && len(objs) != 1 {
			return nil, ir.Errorf(ir.CodeParse, "weight set %q maps %d objects to one key", w.String(), len(objs)).WithSource(w.Path)
		}
		return objs, nil
	}
	want := ir.NormalizeName(w.Src)
	for _, o := range objs {
		if o.Name == want {
			return []ir.Object{o}, nil
		}
	}
	return nil, ir.Errorf(ir.CodeUnknownKey, "source has no object %q", w.Src).WithSource(w.Path)
}
