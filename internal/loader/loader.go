package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/corrlookup/internal/formula"
	"github.com/roach88/corrlookup/internal/ir"
)

// Loader reads one source and returns its objects in source order.
type Loader interface {
	Load(ctx context.Context, kind Kind, path string) ([]ir.Object, error)
}

// ArchiveReader reads every table of an archive file.
// Implemented by the archive package; injected to keep loaders free of
// storage dependencies.
type ArchiveReader func(ctx context.Context, path string) ([]ir.Object, error)

// Dispatcher is the default Loader. It switches on Kind.
//
// Thread-safety: Load may be called concurrently; the formula cache is
// shared and synchronized.
type Dispatcher struct {
	formulas *formula.Cache
	archive  ArchiveReader
	logger   *slog.Logger
}

var _ Loader = (*Dispatcher)(nil)

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithFormulaCache shares a compiled-formula cache across dispatchers.
func WithFormulaCache(c *formula.Cache) DispatcherOption {
	return func(d *Dispatcher) {
		d.formulas = c
	}
}

// WithArchiveReader enables KindArchive sources.
func WithArchiveReader(r ArchiveReader) DispatcherOption {
	return func(d *Dispatcher) {
		d.archive = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		formulas: formula.NewCache(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load reads path as kind. Errors carry the source path.
func (d *Dispatcher) Load(ctx context.Context, kind Kind, path string) ([]ir.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		objs []ir.Object
		err  error
	)
	switch kind {
	case KindArchive:
		if d.archive == nil {
			return nil, ir.Errorf(ir.CodeParse, "archive sources are not enabled").WithSource(path)
		}
		objs, err = d.archive(ctx, path)
	case KindHistogram, KindCSV, KindJSON, KindText:
		var data []byte
		data, err = ReadFile(path)
		if err == nil {
			objs, err = d.parse(kind, path, data)
		}
	default:
		return nil, ir.Errorf(ir.CodeParse, "unsupported source kind %s", kind).WithSource(path)
	}
	if err != nil {
		return nil, withSource(err, path)
	}

	for i := range objs {
		objs[i].Name = ir.NormalizeName(objs[i].Name)
	}

	d.logger.Debug("source loaded",
		"path", path,
		"kind", kind.String(),
		"objects", len(objs),
	)
	return objs, nil
}

func (d *Dispatcher) parse(kind Kind, path string, data []byte) ([]ir.Object, error) {
	switch kind {
	case KindHistogram:
		return parseHistograms(data)
	case KindCSV:
		return parseBTagCSV(data, d.formulas)
	case KindJSON:
		return parseRatioJSON(data)
	case KindText:
		return parseJECText(data, Stem(path), textFlavor(path), d.formulas)
	}
	return nil, fmt.Errorf("unreachable kind %s", kind)
}

// withSource attaches path to err, keeping its code. Errors without a
// code become PARSE_ERROR.
func withSource(err error, path string) error {
	var e *ir.Error
	if errors.As(err, &e) {
		cp := *e
		if cp.Source == "" {
			cp.Source = path
		}
		return &cp
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ir.Error{Code: ir.CodeParse, Message: "cannot load source", Source: path, Err: err}
}

// atLine prefixes err's message with a source line number.
func atLine(err error, line int) *ir.Error {
	var e *ir.Error
	if errors.As(err, &e) {
		cp := *e
		cp.Message = fmt.Sprintf("line %d: %s", line, e.Message)
		return &cp
	}
	return &ir.Error{Code: ir.CodeParse, Message: fmt.Sprintf("line %d", line), Err: err}
}
