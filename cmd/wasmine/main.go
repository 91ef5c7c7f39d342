// Command wasmine decodes, links, and runs a WebAssembly binary: "run" for
// a sandboxed module with no host imports, "run-wasi" for one that expects
// wasi_snapshot_preview1, and "compile" to decode-and-validate without
// executing. Grounded on the original runtime's cli.rs subcommand/flag
// layout, reimplemented with cobra+pflag instead of argument parsing by
// hand, and logrus instead of a combined term logger.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wasmine/wasmine"
	"github.com/wasmine/wasmine/imports/wasi"
)

var log = logrus.New()

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		log.Error(err)
		return 1
	}
	return exitCodeHolder
}

// exitCodeHolder carries a WASI program's requested exit code out of
// cobra's Execute, since RunE can only return an error.
var exitCodeHolder int

func newRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:           "wasmine",
		Short:         "A standalone WebAssembly core runtime",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			lvl, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			log.SetLevel(lvl)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "warn", "log level: trace, debug, info, warn, error")

	cmd.AddCommand(newRunCmd(), newRunWasiCmd(), newCompileCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	var invoke string

	cmd := &cobra.Command{
		Use:   "run <path.wasm> [-- args...]",
		Short: "Execute a module sandboxed, with no host imports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fnArgs := args[1:]
			mcfg := wasmine.NewModuleConfig().WithName("main")
			return runModule(path, invoke, fnArgs, mcfg, false)
		},
	}
	cmd.Flags().StringVarP(&invoke, "invoke", "i", "", "exported function to call (defaults to the module's start function)")
	return cmd
}

func newRunWasiCmd() *cobra.Command {
	var invoke string
	var dirs []string

	cmd := &cobra.Command{
		Use:   "run-wasi <path.wasm> [-- args...]",
		Short: "Execute a module with wasi_snapshot_preview1 support",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			wasiArgs := append([]string{path}, args[1:]...)
			if len(dirs) > 0 {
				log.Warnf("--dir %s requested but filesystem preopens are not implemented", strings.Join(dirs, ","))
			}
			mcfg := wasmine.NewModuleConfig().WithName("main").
				WithArgs(wasiArgs...).
				WithStdin(os.Stdin).WithStdout(os.Stdout).WithStderr(os.Stderr)
			for _, kv := range os.Environ() {
				if k, v, ok := strings.Cut(kv, "="); ok {
					mcfg = mcfg.WithEnv(k, v)
				}
			}
			return runModule(path, invoke, nil, mcfg, true)
		},
	}
	cmd.Flags().StringVarP(&invoke, "invoke", "i", "", "exported function to call (defaults to _start)")
	cmd.Flags().StringSliceVarP(&dirs, "dir", "d", nil, "HOST_DIR[::GUEST_DIR] directories to expose (repeatable)")
	return cmd
}

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <path.wasm>",
		Short: "Decode and structurally validate a module without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wasmBytes, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			rt := wasmine.NewRuntime(context.Background())
			if _, err := rt.CompileModule(context.Background(), wasmBytes); err != nil {
				return err
			}
			log.Infof("%s: ok", args[0])
			return nil
		},
	}
	return cmd
}

func runModule(path, invoke string, fnArgs []string, mcfg wasmine.ModuleConfig, useWasi bool) error {
	wasmBytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	rt := wasmine.NewRuntime(ctx)

	if useWasi {
		wasiInst := wasi.Build(&wasi.Config{
			Args:    mcfg.Args(),
			Environ: mcfg.Environ(),
			Stdin:   mcfg.Stdin(),
			Stdout:  mcfg.Stdout(),
			Stderr:  mcfg.Stderr(),
		})
		if err := rt.Cluster().Add(wasi.ModuleName, wasiInst); err != nil {
			return err
		}
	}
	if invoke != "" {
		// The named function is called explicitly below, with fnArgs, instead
		// of as the implicit post-instantiation start call.
		mcfg = mcfg.WithStartFunctions()
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", path, err)
	}

	log.Debugf("instantiating %s", path)
	mod, err := rt.InstantiateModule(ctx, compiled, mcfg)
	if err != nil {
		if code, ok := wasiExitCode(err); ok {
			exitCodeHolder = code
			return nil
		}
		return fmt.Errorf("instantiating %s: %w", path, err)
	}
	defer mod.Close(ctx)

	if invoke != "" {
		fn := mod.ExportedFunction(invoke)
		if fn == nil {
			return fmt.Errorf("no exported function named %q", invoke)
		}
		params, err := parseFunctionArgs(fnArgs)
		if err != nil {
			return err
		}
		results, err := fn.Call(ctx, params...)
		if err != nil {
			if code, ok := wasiExitCode(err); ok {
				exitCodeHolder = code
				return nil
			}
			return err
		}
		log.Infof("%s returned %v", invoke, results)
	}
	return nil
}

func parseFunctionArgs(args []string) ([]uint64, error) {
	out := make([]uint64, len(args))
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not an integer: %w", a, err)
		}
		out[i] = v
	}
	return out, nil
}

func wasiExitCode(err error) (int, bool) {
	for err != nil {
		if ee, ok := err.(*wasi.ExitError); ok {
			return int(ee.Code), true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
