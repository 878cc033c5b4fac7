package loader

import (
	"path/filepath"
	"strings"

	"github.com/roach88/corrlookup/internal/ir"
)

// Kind identifies a source file format.
type Kind int

const (
	KindUnknown Kind = iota
	KindHistogram
	KindCSV
	KindJSON
	KindText
	KindArchive
)

// String returns the kind name used in weight sets and logs.
func (k Kind) String() string {
	switch k {
	case KindHistogram:
		return "histogram"
	case KindCSV:
		return "csv"
	case KindJSON:
		return "json"
	case KindText:
		return "text"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// ParseKind parses a kind name as returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindHistogram; k <= KindArchive; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return KindUnknown, ir.Errorf(ir.CodeParse, "unknown source kind %q", s)
}

// suffixes maps file suffixes to kinds. Longer suffixes come first so that
// .jec.txt wins over .txt.
var suffixes = []struct {
	suffix string
	kind   Kind
}{
	{".histo.yaml", KindHistogram},
	{".histo.yml", KindHistogram},
	{".csv", KindCSV},
	{".json", KindJSON},
	{".jersf.txt", KindText},
	{".junc.txt", KindText},
	{".jec.txt", KindText},
	{".jr.txt", KindText},
	{".txt", KindText},
	{".sqlite", KindArchive},
	{".db", KindArchive},
}

// KindFromPath infers the source kind from the file name, ignoring a
// trailing compression suffix.
//
// Returns PARSE_ERROR for unrecognized suffixes.
func KindFromPath(path string) (Kind, error) {
	base, _ := splitCompression(strings.ToLower(filepath.Base(path)))
	for _, s := range suffixes {
		if strings.HasSuffix(base, s.suffix) {
			return s.kind, nil
		}
	}
	return KindUnknown, ir.Errorf(ir.CodeParse, "cannot infer source kind from %q", filepath.Base(path)).WithSource(path)
}

// Stem returns the file name without compression and format suffixes.
// "Summer16_L2Relative_AK4PFchs.jec.txt.gz" → "Summer16_L2Relative_AK4PFchs".
func Stem(path string) string {
	base, _ := splitCompression(filepath.Base(path))
	lower := strings.ToLower(base)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return base[:len(base)-len(s.suffix)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// textFlavor returns the JEC text variant named by the file suffix.
func textFlavor(path string) string {
	base, _ := splitCompression(strings.ToLower(filepath.Base(path)))
	for _, f := range []string{"jersf", "junc", "jec", "jr"} {
		if strings.HasSuffix(base, "."+f+".txt") {
			return f
		}
	}
	return "jec"
}
