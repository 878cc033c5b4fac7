package loader

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/corrlookup/internal/formula"
	"github.com/roach88/corrlookup/internal/ir"
	"github.com/roach88/corrlookup/internal/lookup"
)

func newTestDispatcher(opts ...DispatcherOption) *Dispatcher {
	opts = append([]DispatcherOption{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewDispatcher(opts...)
}

// loadFile loads a testdata file with its inferred kind and indexes the
// objects by name.
func loadFile(t *testing.T, path string) map[string]*ir.Table {
	t.Helper()
	kind, err := KindFromPath(path)
	require.NoError(t, err)
	objs, err := newTestDispatcher().Load(context.Background(), kind, path)
	require.NoError(t, err)

	out := make(map[string]*ir.Table, len(objs))
	for _, o := range objs {
		out[o.Name] = o.Table
	}
	return out
}

func resolve(t *testing.T, tab *ir.Table, coords []float64, eval ...float64) []float64 {
	t.Helper()
	got, err := lookup.New().Resolve(tab, coords, eval)
	require.NoError(t, err)
	return got
}

func TestKindFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"sf/ele.histo.yaml", KindHistogram},
		{"sf/ele.histo.yml.gz", KindHistogram},
		{"DeepCSV.csv", KindCSV},
		{"DeepCSV.CSV.zst", KindCSV},
		{"muon_ratios.json.lz4", KindJSON},
		{"Summer16_L2Relative_AK4PFchs.jec.txt", KindText},
		{"Summer16_SF_AK4PFchs.jersf.txt.gz", KindText},
		{"plain.txt", KindText},
		{"tables.db", KindArchive},
		{"tables.sqlite", KindArchive},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := KindFromPath(tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := KindFromPath("weights.root")
	assert.True(t, ir.IsParseError(err))
}

func TestStem(t *testing.T) {
	assert.Equal(t, "Summer16_L2Relative_AK4PFchs", Stem("/a/b/Summer16_L2Relative_AK4PFchs.jec.txt.gz"))
	assert.Equal(t, "ele", Stem("ele.histo.yaml"))
	assert.Equal(t, "weights", Stem("weights.root"))
}

func TestParseKind(t *testing.T) {
	for k := KindHistogram; k <= KindArchive; k++ {
		got, err := ParseKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("root")
	assert.Error(t, err)
}

func TestLoad_Histogram(t *testing.T) {
	tables := loadFile(t, "testdata/ele_sf.histo.yaml")
	require.Len(t, tables, 3)
	require.Contains(t, tables, "ele_sf")
	require.Contains(t, tables, "ele_sf_error")
	require.Contains(t, tables, "trig_eff")

	assert.Equal(t, []float64{1.25}, resolve(t, tables["ele_sf"], []float64{1, 100}))
	assert.Equal(t, []float64{0.5}, resolve(t, tables["ele_sf"], []float64{-3, 10}))
	assert.Equal(t, []float64{0.25}, resolve(t, tables["ele_sf_error"], []float64{1, 100}))
	assert.Equal(t, []float64{0.875}, resolve(t, tables["trig_eff"], []float64{45}))
}

func TestLoad_BTagCSV(t *testing.T) {
	tables := loadFile(t, "testdata/btag.csv")
	require.Len(t, tables, 3)

	central := tables["DeepCSV_0_comb_central_0"]
	require.NotNil(t, central)
	assert.Equal(t, ir.KindFormula, central.Kind())
	assert.Equal(t, []string{"eta", "pt", "discr"}, axisNames(central))
	assert.Equal(t, []float64{20, 50, 1000}, central.Axis(1).Edges())

	assert.Equal(t, []float64{60}, resolve(t, central, []float64{0.5, 30, 0.5}, 30))
	assert.Equal(t, []float64{1.5}, resolve(t, central, []float64{0.5, 100, 0.5}, 100))
	// pt above the table clamps both the bin and the formula variable
	assert.Equal(t, []float64{10.5}, resolve(t, central, []float64{0.5, 2000, 0.5}, 2000))

	up := tables["DeepCSV_0_comb_up_0"]
	require.NotNil(t, up)
	assert.Equal(t, []float64{1.25}, resolve(t, up, []float64{0, 40, 0.5}, 40))

	shape := tables["DeepCSV_3_iterativefit_central_0"]
	require.NotNil(t, shape)
	assert.Equal(t, []float64{1.25}, resolve(t, shape, []float64{0, 40, 0.25}, 0.25))
	assert.Equal(t, []float64{1.25}, resolve(t, shape, []float64{0, 40, 0.75}, 0.75))
}

func TestLoad_RatioJSON(t *testing.T) {
	tables := loadFile(t, "testdata/ratios.json")
	require.Len(t, tables, 2)

	values := tables["NUM_TightID_DEN_genTracks/abseta_pt_value"]
	errs := tables["NUM_TightID_DEN_genTracks/abseta_pt_error"]
	require.NotNil(t, values)
	require.NotNil(t, errs)

	assert.Equal(t, []string{"abseta", "pt"}, axisNames(values))
	assert.Equal(t, []float64{0, 1.2, 2.4}, values.Axis(0).Edges())
	assert.Equal(t, []float64{0.75}, resolve(t, values, []float64{0.5, 60}))
	assert.Equal(t, []float64{1.0}, resolve(t, values, []float64{2.0, 25}))
	assert.Equal(t, []float64{0.5}, resolve(t, errs, []float64{2.0, 60}))
}

func TestLoad_JECText(t *testing.T) {
	tables := loadFile(t, "testdata/Summer16_L2Relative_AK4PFchs.jec.txt")
	tab := tables["Summer16_L2Relative_AK4PFchs"]
	require.NotNil(t, tab)

	assert.Equal(t, ir.KindFormula, tab.Kind())
	assert.Equal(t, 1, tab.EvalVars())
	assert.Equal(t, []float64{200}, resolve(t, tab, []float64{-1}, 100))
	assert.Equal(t, []float64{16}, resolve(t, tab, []float64{1}, 16))
	// below the validity window the variable clamps to 10
	assert.Equal(t, []float64{20}, resolve(t, tab, []float64{-1}, 5))
}

func TestLoad_JECText_MultiVariable(t *testing.T) {
	tables := loadFile(t, "testdata/Summer16_L1FastJet_AK4PFchs.jec.txt")
	tab := tables["Summer16_L1FastJet_AK4PFchs"]
	require.NotNil(t, tab)

	assert.Equal(t, 3, tab.EvalVars())
	got := resolve(t, tab, []float64{0}, 20, 50, 0.5)
	assert.InDelta(t, 1.1, got[0], 1e-12)
}

func TestLoad_JERScaleFactor(t *testing.T) {
	tables := loadFile(t, "testdata/Summer16_SF_AK4PFchs.jersf.txt")
	tab := tables["Summer16_SF_AK4PFchs"]
	require.NotNil(t, tab)

	assert.Equal(t, ir.KindVariants, tab.Kind())
	assert.Equal(t, 3, tab.Width())
	assert.Equal(t, []float64{1.125, 1, 1.25}, resolve(t, tab, []float64{0.3}))
	assert.Equal(t, []float64{1.25, 1, 1.5}, resolve(t, tab, []float64{-2}))
}

func TestLoad_JECUncertainty(t *testing.T) {
	tables := loadFile(t, "testdata/Summer16_Uncertainty_AK4PFchs.junc.txt")
	require.Len(t, tables, 2)

	stat := tables["Summer16_Uncertainty_AK4PFchs_AbsoluteStat"]
	require.NotNil(t, stat)
	assert.Equal(t, []string{"JetEta", "JetPt"}, axisNames(stat))
	assert.Equal(t, []float64{10, 100, 1000, math.MaxFloat64}, stat.Axis(1).Edges())

	assert.Equal(t, []float64{0.5, 0.25}, resolve(t, stat, []float64{-1, 50}))
	assert.Equal(t, []float64{0.125, 0.0625}, resolve(t, stat, []float64{-1, 500}))
	assert.Equal(t, []float64{0.75, 0.375}, resolve(t, stat, []float64{1, 500}))
	assert.Equal(t, []float64{0.25, 0.125}, resolve(t, stat, []float64{1, 1000}))

	total := tables["Summer16_Uncertainty_AK4PFchs_Total"]
	require.NotNil(t, total)
	assert.Equal(t, []float64{1, 0.5}, resolve(t, total, []float64{4, 20}))
}

func TestLoad_JECUncertaintyKnots(t *testing.T) {
	data := []byte("{1 JetEta 1 JetPt \"\" Correction Uncertainty}\n" +
		"-5 5 9 10 0.5 0.25 100 0.125 0.0625 1000 0.03125 0.015625\n")
	objs, err := parseJECText(data, "u", "junc", formula.NewCache())
	require.NoError(t, err)
	require.Len(t, objs, 1)
	tab := objs[0].Table

	tests := []struct {
		name string
		pt   float64
		want []float64
	}{
		{"below_first_knot", 5, []float64{0.5, 0.25}},
		{"first_knot", 10, []float64{0.5, 0.25}},
		{"between_knots", 99, []float64{0.5, 0.25}},
		{"middle_knot", 100, []float64{0.125, 0.0625}},
		{"last_knot", 1000, []float64{0.03125, 0.015625}},
		{"above_last_knot", 2000, []float64{0.03125, 0.015625}},
		{"far_above_last_knot", 1e300, []float64{0.03125, 0.015625}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolve(t, tab, []float64{0, tt.pt}))
		})
	}
}

func TestLoad_Compressed(t *testing.T) {
	raw, err := os.ReadFile("testdata/ele_sf.histo.yaml")
	require.NoError(t, err)

	tests := []struct {
		name     string
		suffix   string
		compress func(t *testing.T, data []byte) []byte
	}{
		{"gzip", ".gz", func(t *testing.T, data []byte) []byte {
			var buf bytes.Buffer
			w := gzip.NewWriter(&buf)
			_, err := w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			return buf.Bytes()
		}},
		{"zstd", ".zst", func(t *testing.T, data []byte) []byte {
			enc, err := zstd.NewWriter(nil)
			require.NoError(t, err)
			defer enc.Close()
			return enc.EncodeAll(data, nil)
		}},
		{"lz4", ".lz4", func(t *testing.T, data []byte) []byte {
			var buf bytes.Buffer
			w := lz4.NewWriter(&buf)
			_, err := w.Write(data)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			return buf.Bytes()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ele_sf.histo.yaml"+tt.suffix)
			require.NoError(t, os.WriteFile(path, tt.compress(t, raw), 0o644))

			tables := loadFile(t, path)
			require.Contains(t, tables, "ele_sf")
			assert.Equal(t, []float64{1.25}, resolve(t, tables["ele_sf"], []float64{1, 100}))
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		code    ir.ErrorCode
	}{
		{
			name:    "histogram_shape",
			file:    "bad.histo.yaml",
			content: "histograms:\n  - name: h\n    axes: [{name: x, edges: [0, 1, 2]}]\n    values: [1]\n",
			code:    ir.CodeShapeMismatch,
		},
		{
			name:    "histogram_unknown_field",
			file:    "typo.histo.yaml",
			content: "histograms:\n  - name: h\n    axis: []\n",
			code:    ir.CodeParse,
		},
		{
			name:    "csv_bad_formula",
			file:    "bad.csv",
			content: "T;cols\n0, comb, central, 0, 0, 1, 20, 30, 0, 1, \"2*(x\"\n",
			code:    ir.CodeParse,
		},
		{
			name:    "csv_missing_header",
			file:    "noheader.csv",
			content: "0, comb, central, 0, 0, 1, 20, 30, 0, 1, \"x\"\n",
			code:    ir.CodeParse,
		},
		{
			name:    "csv_overlap",
			file:    "overlap.csv",
			content: "T;cols\n0, comb, central, 0, 0, 1, 20, 50, 0, 1, \"1\"\n0, comb, central, 0, 0, 1, 30, 60, 0, 1, \"2\"\n",
			code:    ir.CodeShapeMismatch,
		},
		{
			name:    "json_schema",
			file:    "bad.json",
			content: `{"n": {"b": {"pt:[0,1]": {"value": 1}}}}`,
			code:    ir.CodeParse,
		},
		{
			name:    "json_mixed_variables",
			file:    "mixed.json",
			content: `{"n": {"b": {"pt:[0,1]": {"eta:[0,1]": {"value": 1, "error": 0}}, "pt:[1,2]": {"abseta:[0,1]": {"value": 1, "error": 0}}}}}`,
			code:    ir.CodeShapeMismatch,
		},
		{
			name:    "text_row_before_header",
			file:    "x.jec.txt",
			content: "-1 1 3 0 1 2\n",
			code:    ir.CodeParse,
		},
		{
			name:    "text_value_count",
			file:    "y.jec.txt",
			content: "{1 JetEta 1 JetPt [0]*x Correction L2Relative}\n-1 1 5 10 100 2\n",
			code:    ir.CodeParse,
		},
		{
			name:    "text_missing_params",
			file:    "z.jec.txt",
			content: "{1 JetEta 1 JetPt [0]*x+[1] Correction L2Relative}\n-1 1 3 10 100 2\n",
			code:    ir.CodeShapeMismatch,
		},
		{
			name:    "junc_partial_knot",
			file:    "u.junc.txt",
			content: "{1 JetEta 1 JetPt \"\" Correction Uncertainty}\n-1 1 4 10 0.1 0.1 20\n",
			code:    ir.CodeParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			kind, err := KindFromPath(path)
			require.NoError(t, err)

			_, err = newTestDispatcher().Load(context.Background(), kind, path)
			require.Error(t, err)
			assert.Equal(t, tt.code, ir.CodeOf(err), "error: %v", err)

			var e *ir.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, path, e.Source)
		})
	}
}

func TestLoad_BTagCSVLineNumbers(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    string
	}{
		{
			name:    "bad_bound",
			content: "DeepCSV;OperatingPoint\n\n0, comb, central, 0, 0, 1, 20, 30, 0, 1, \"1\"\n\n0, comb, central, 0, 0, 1, 30, abc, 0, 1, \"1\"\n",
			line:    "line 5",
		},
		{
			name:    "field_count",
			content: "\nDeepCSV;OperatingPoint\n0, comb, central, 0, 0, 1, 20, 30, 0, 1\n",
			line:    "line 3",
		},
		{
			name:    "bad_formula",
			content: "DeepCSV;OperatingPoint\n\n\n0, comb, central, 0, 0, 1, 20, 30, 0, 1, \"x+\"\n",
			line:    "line 4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseBTagCSV([]byte(tt.content), formula.NewCache())
			require.Error(t, err)
			assert.True(t, ir.IsParseError(err), "error: %v", err)
			assert.Contains(t, err.Error(), tt.line)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := newTestDispatcher().Load(context.Background(), KindCSV, filepath.Join(t.TempDir(), "absent.csv"))
	require.Error(t, err)
	assert.True(t, ir.IsParseError(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_Archive(t *testing.T) {
	_, err := newTestDispatcher().Load(context.Background(), KindArchive, "tables.db")
	assert.True(t, ir.IsParseError(err), "archives need a reader")

	want := []ir.Object{{Name: "sf", Table: ir.MustTable([]ir.Axis{ir.MustAxis("x", 0, 1)}, []ir.Cell{ir.Scalar(2)})}}
	d := newTestDispatcher(WithArchiveReader(func(_ context.Context, path string) ([]ir.Object, error) {
		assert.Equal(t, "tables.db", path)
		return want, nil
	}))
	got, err := d.Load(context.Background(), KindArchive, "tables.db")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestDispatcher().Load(ctx, KindCSV, "testdata/btag.csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoad_SharedFormulaCache(t *testing.T) {
	cache := formula.NewCache()
	d := newTestDispatcher(WithFormulaCache(cache))

	_, err := d.Load(context.Background(), KindCSV, "testdata/btag.csv")
	require.NoError(t, err)
	assert.Equal(t, 5, cache.Len())

	_, err = d.Load(context.Background(), KindCSV, "testdata/btag.csv")
	require.NoError(t, err)
	assert.Equal(t, 5, cache.Len(), "formulas compile once")
}

func axisNames(t *ir.Table) []string {
	names := make([]string, t.Dims())
	for i := range names {
		names[i] = t.Axis(i).Name()
	}
	return names
}
