package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/highesttt/pawn-natives/pkg/amx"
	"github.com/highesttt/pawn-natives/pkg/config"
	"github.com/highesttt/pawn-natives/pkg/natives"
	"github.com/highesttt/pawn-natives/pkg/stdnatives"
	"github.com/highesttt/pawn-natives/pkg/wasmhost"
)

// Information to find out exactly which commit the tool was built from.
// These are filled at build time with the -X linker flag.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "pawn-natives",
		Short:         "Inspect and run the standard Pawn natives",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", Tag, Commit, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the registered natives and their parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configPath)
			if err != nil {
				return err
			}
			reg, err := newRegistry(cfg, log)
			if err != nil {
				return err
			}
			return list(cmd, reg)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "call <native> [args...]",
		Short: "Call a native and print its result",
		Long: `Call a native and print its result.

Arguments are integers (42), floats (1.5), strings (s:text), references to a
cell (&7) or output buffers of a given size (out:64). An output buffer takes
two words, its address and its size.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(configPath)
			if err != nil {
				return err
			}
			reg, err := newRegistry(cfg, log)
			if err != nil {
				return err
			}
			return call(cmd.Context(), cmd, cfg, reg, log, args[0], args[1:])
		},
	})

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(path string) (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	log, err := cfg.Logger()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure logging: %w", err)
	}
	return cfg, log, nil
}

func newRegistry(cfg *config.Config, log *zerolog.Logger) (*natives.Registry, error) {
	reg := natives.NewRegistry(natives.WithLogger(log.With().Str("component", "natives").Logger()))
	if err := stdnatives.Register(reg, cfg.Settings(), cfg.Natives.Enable...); err != nil {
		return nil, err
	}
	return reg, nil
}

func list(cmd *cobra.Command, reg *natives.Registry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NATIVE\tWORDS\tPARAMETERS")
	for _, f := range reg.Funcs() {
		var params []string
		for _, p := range f.Signature() {
			params = append(params, fmt.Sprintf("%s@%d (%s)", p.Type, p.Offset, p.Kind))
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", f.Name(), f.Footprint(), strings.Join(params, ", "))
	}
	return w.Flush()
}

// backend is the environment a native runs in.
type backend interface {
	amx.AMX
	Alloc(n int) (amx.Cell, error)
	AllocString(s string, size int) (amx.Cell, error)
	ReadString(addr amx.Cell) (string, error)
}

func call(ctx context.Context, cmd *cobra.Command, cfg *config.Config, reg *natives.Registry, log *zerolog.Logger, name string, raw []string) error {
	var env backend
	var invoke func(args []amx.Cell) (amx.Cell, error)
	switch cfg.Machine.Backend {
	case config.BackendWasm:
		guest := wasmhost.EmptyGuest
		if cfg.Machine.WasmModule != "" {
			data, err := os.ReadFile(cfg.Machine.WasmModule)
			if err != nil {
				return err
			}
			guest = data
		}
		wenv := wasmhost.New(ctx, log.With().Str("component", "wasmhost").Logger())
		defer wenv.Close(ctx)
		if err := reg.Load(wenv); err != nil {
			return err
		}
		if err := wenv.Start(ctx, guest); err != nil {
			return err
		}
		env = wenv
		invoke = func(args []amx.Cell) (amx.Cell, error) {
			return wenv.Invoke(ctx, name, args...)
		}
	default:
		m := amx.NewMachine(cfg.Machine.Cells)
		if err := reg.Load(m); err != nil {
			return err
		}
		env = m
		invoke = func(args []amx.Cell) (amx.Cell, error) {
			return m.Invoke(name, args...)
		}
	}

	args, err := parseArgs(raw)
	if err != nil {
		return err
	}
	words, err := args.place(env)
	if err != nil {
		return err
	}
	ret, err := invoke(words)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "return: %d (float %g)\n", ret, amx.Ctof(ret))
	return args.report(env, out)
}
