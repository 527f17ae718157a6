// nwbchunk plans and performs chunked copies of recorded arrays into a
// chunked-group or directory-store container.
//
// The input is a Zarr v2 array opened through a blob URL (file:// or
// mem://). It is attached to a fresh document as the data of one time
// series under acquisition/.
//
//	nwbchunk plan [flags] INPUT   print the default configuration as YAML
//	nwbchunk copy [flags] INPUT   write the document into --target
//
// With --verify, copy reads the input back in batches of buffer rows and
// compares them with the written dataset.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/TuSKan/nwbchunk"
	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/config"
	"github.com/TuSKan/nwbchunk/docgraph"
	"github.com/TuSKan/nwbchunk/hdf5"
	"github.com/TuSKan/nwbchunk/zarr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type options struct {
	configPath    string
	kind          string
	target        string
	name          string
	neurodataType string
	verify        bool
}

var errUsage = errors.New("usage: nwbchunk plan|copy [flags] INPUT")

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	command := args[0]
	if command != "plan" && command != "copy" {
		return fmt.Errorf("unknown command %q: %w", command, errUsage)
	}

	var opts options
	flagSet := pflag.NewFlagSet("nwbchunk "+command, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "configuration file (YAML or TOML)")
	flagSet.StringVar(&opts.kind, "backend", "", "destination backend: hdf5 or zarr (overrides backend.kind)")
	flagSet.StringVar(&opts.target, "target", "", "destination: blob URL for zarr, directory for hdf5 (overrides backend.target)")
	flagSet.StringVar(&opts.name, "name", "ElectricalSeries", "name of the time series holding the input")
	flagSet.StringVar(&opts.neurodataType, "type", "ElectricalSeries", "neurodata type of the time series")
	flagSet.BoolVar(&opts.verify, "verify", false, "copy: read the input back in batches and compare with the written dataset")
	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintf(stdout, "%v\n\n%s", errUsage, flagSet.FlagUsages())
			return nil
		}
		return err
	}
	if flagSet.NArg() != 1 {
		return errUsage
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.kind != "" {
		cfg.Backend.Kind = opts.kind
	}
	if opts.target != "" {
		cfg.Backend.Target = opts.target
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	kind := backend.Kind(cfg.Backend.Kind)
	logger := config.NewLogger(cfg.Logging)

	input, err := zarr.OpenURL(ctx, flagSet.Arg(0))
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer input.Close()

	g, err := newDocument(opts, flagSet.Arg(0), input)
	if err != nil {
		return err
	}
	plan, err := nwbchunk.Builder{Logger: logger}.Build(g, kind, cfg.Policy)
	if err != nil {
		return err
	}

	if command == "plan" {
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(plan); err != nil {
			return err
		}
		return enc.Close()
	}

	store, err := openStore(ctx, kind, cfg.Backend.Target)
	if err != nil {
		return err
	}
	defer store.Close()

	logger.Info("copy started",
		"backend", kind,
		"target", cfg.Backend.Target,
		"datasets", plan.Len(),
		"size", humanize.Bytes(uint64(plan.TotalBytes())),
	)
	if err := nwbchunk.BindAndWrite(ctx, g, plan, store, nwbchunk.BindOptions{Logger: logger}); err != nil {
		return err
	}
	if opts.verify {
		if err := verify(ctx, g, plan, dataPath(opts), input, logger); err != nil {
			return err
		}
	}
	logger.Info("copy finished", "target", cfg.Backend.Target)
	return nil
}

func dataPath(opts options) string {
	return backend.JoinPath("acquisition", opts.name, "data")
}

type chunkCounter interface {
	NumStoredChunks(ctx context.Context) (int, error)
}

// verify compares the input with the written dataset one buffer-sized
// batch of rows at a time.
func verify(ctx context.Context, g *docgraph.Graph, plan *nwbchunk.BackendConfiguration, path string,
	input *zarr.Array, logger *slog.Logger) error {
	id, err := g.ResolveDataset(path)
	if err != nil {
		return err
	}
	value, err := g.Dataset(id)
	if err != nil {
		return err
	}
	written, ok := value.(backend.Dataset)
	if !ok {
		return fmt.Errorf("dataset %q was not written", path)
	}
	rows := 1
	if e, ok := plan.Get(path); ok && len(e.BufferShape) > 0 {
		rows = e.BufferShape[0]
	}

	batcher := zarr.NewBatcher(input)
	for {
		start := batcher.CurrentIndex
		batch, err := batcher.NextBatch(ctx, rows)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input rows from %d: %w", start, err)
		}
		want, err := array.FromTensor(batch)
		if err != nil {
			return err
		}
		count := want.Shape()
		offset := make([]int, len(count))
		offset[0] = start
		got := make([]byte, len(want.Bytes()))
		if err := written.GetRegion(ctx, offset, count, got); err != nil {
			return fmt.Errorf("failed to read back rows from %d: %w", start, err)
		}
		if !bytes.Equal(want.Bytes(), got) {
			return fmt.Errorf("verification failed: %q differs from the input in rows %d to %d", path, start, start+count[0])
		}
	}

	attrs := []any{"path", path}
	if c, ok := written.(chunkCounter); ok {
		n, err := c.NumStoredChunks(ctx)
		if err != nil {
			return err
		}
		attrs = append(attrs, "stored_chunks", n)
	}
	logger.Info("copy verified", attrs...)
	return nil
}

func newDocument(opts options, url string, input *zarr.Array) (*docgraph.Graph, error) {
	g := docgraph.New()
	acquisition, err := g.AddNode(g.Root(), "acquisition", "")
	if err != nil {
		return nil, err
	}
	series, err := g.AddTimeSeries(acquisition, opts.name, opts.neurodataType, input, nil)
	if err != nil {
		return nil, err
	}
	if err := g.SetAttr(series, "description", "copied from "+url); err != nil {
		return nil, err
	}
	return g, nil
}

func openStore(ctx context.Context, kind backend.Kind, target string) (backend.Store, error) {
	switch kind {
	case backend.KindZarr:
		if target == "" {
			target = "mem://"
		}
		s, err := zarr.Open(ctx, target)
		if err != nil {
			return nil, err
		}
		return s, nil
	case backend.KindHDF5:
		var (
			s   *hdf5.Store
			err error
		)
		if target == "" {
			s, err = hdf5.OpenInMemory()
		} else {
			s, err = hdf5.Open(target)
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}
