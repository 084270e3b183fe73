// SPDX-Licence-Identifier: MIT

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goseccompc/goseccompc"
	"github.com/goseccompc/goseccompc/bpffile"
	"github.com/goseccompc/goseccompc/internal/config"
	"github.com/goseccompc/goseccompc/internal/policy"
	"github.com/goseccompc/goseccompc/lowlevel"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type globalParams struct {
	logLevel string
}

type compileParams struct {
	configPath string
	arch       string
	mode       string
	output     string
}

type inputParams struct {
	input string
	arch  string
}

type evalParams struct {
	inputParams
	syscall string
	args    []string
}

// RootCommand returns the seccompc command tree working on fs.
func RootCommand(fs afero.Fs) *cobra.Command {
	var global globalParams
	root := &cobra.Command{
		Use:          "seccompc [command]",
		Short:        "Compile and inspect seccomp filters.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logrus.SetOutput(cmd.ErrOrStderr())
			if !cmd.Flags().Changed("log-level") {
				return nil
			}
			return setLogLevel(global.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&global.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.AddCommand(Commands(fs)...)
	return root
}

// Commands returns the seccompc subcommands.
func Commands(fs afero.Fs) []*cobra.Command {
	var cmds []*cobra.Command

	{
		var params compileParams
		cmd := &cobra.Command{
			Use:   "compile",
			Short: "Compile a built-in policy into a filter file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := params.config(cmd, fs)
				if err != nil {
					return err
				}
				return runCompile(cmd, fs, cfg)
			},
		}
		cmd.Flags().StringVar(&params.configPath, "config", "", "path to a YAML configuration file")
		cmd.Flags().StringVar(&params.arch, "arch", goseccompc.CurrentArch, "target architecture, as a GOARCH value")
		cmd.Flags().StringVar(&params.mode, "mode", goseccompc.Blocklist.String(), "policy to compile (blocklist or audit)")
		cmd.Flags().StringVarP(&params.output, "output", "o", "", "path of the filter file")
		cmds = append(cmds, cmd)
	}

	{
		var params inputParams
		cmd := &cobra.Command{
			Use:   "dump",
			Short: "Print the instructions of a filter file",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				prog, err := params.load(fs)
				if err != nil {
					return err
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), prog)
				return err
			},
		}
		params.flags(cmd)
		cmds = append(cmds, cmd)
	}

	{
		var params evalParams
		cmd := &cobra.Command{
			Use:   "eval",
			Short: "Print the verdict of a filter file for one syscall",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runEval(cmd, fs, &params)
			},
		}
		params.flags(cmd)
		cmd.Flags().StringVar(&params.syscall, "syscall", "", "syscall name")
		cmd.Flags().StringArrayVar(&params.args, "arg", nil, "argument value, as index=value (repeatable)")
		_ = cmd.MarkFlagRequired("syscall")
		cmds = append(cmds, cmd)
	}

	return cmds
}

func setLogLevel(s string) error {
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	return nil
}

// config loads the configuration file if any, then applies the flags set
// on the command line over it.
func (p *compileParams) config(cmd *cobra.Command, fs afero.Fs) (config.Config, error) {
	cfg := config.DefaultConfig()
	if p.configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(fs, p.configPath); err != nil {
			return cfg, err
		}
		if !cmd.Flags().Changed("log-level") {
			if err := setLogLevel(cfg.LogLevel); err != nil {
				return cfg, err
			}
		}
	}
	if cmd.Flags().Changed("arch") {
		cfg.Arch = p.arch
	}
	if cmd.Flags().Changed("mode") {
		cfg.Mode = p.mode
	}
	if cmd.Flags().Changed("output") {
		cfg.Output = p.output
	}
	return cfg, cfg.Validate()
}

func runCompile(cmd *cobra.Command, fs afero.Fs, cfg config.Config) error {
	logrus.WithField("config", cfg).Debug("compiling")
	mode, err := cfg.PolicyMode()
	if err != nil {
		return err
	}
	perm, err := cfg.Perm()
	if err != nil {
		return err
	}

	rs, skipped, err := policy.Build(mode, cfg.Arch)
	if err != nil {
		return err
	}
	prog, err := goseccompc.Compile(rs, cfg.Arch)
	if err != nil {
		return err
	}
	if err := prog.WriteFile(fs, cfg.Output, perm); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"arch":    cfg.Arch,
		"mode":    mode,
		"skipped": len(skipped),
	}).Info("seccomp filter written")
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d instructions\n", cfg.Output, prog.Len())
	return err
}

func (p *inputParams) flags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&p.input, "input", "i", "", "path of the filter file")
	cmd.Flags().StringVar(&p.arch, "arch", goseccompc.CurrentArch, "architecture the filter was compiled for")
	_ = cmd.MarkFlagRequired("input")
}

func (p *inputParams) load(fs afero.Fs) (*goseccompc.Program, error) {
	data, err := bpffile.ReadFile(fs, p.input)
	if err != nil {
		return nil, err
	}
	return goseccompc.ParseProgram(data, p.arch)
}

func runEval(cmd *cobra.Command, fs afero.Fs, p *evalParams) error {
	prog, err := p.load(fs)
	if err != nil {
		return err
	}
	nr, err := goseccompc.Resolve(p.arch, p.syscall)
	if err != nil {
		return err
	}
	args, err := parseArgs(p.args)
	if err != nil {
		return err
	}

	action, err := prog.Evaluate(lowlevel.SeccompData{
		Number: int32(nr),
		Arch:   lowlevel.GetAuditArch(p.arch),
		Args:   args,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), action)
	return err
}

// parseArgs reads index=value pairs. Values accept the 0x and 0 prefixes.
func parseArgs(pairs []string) ([goseccompc.MaxArgs]uint64, error) {
	var args [goseccompc.MaxArgs]uint64
	for _, pair := range pairs {
		idx, val, ok := strings.Cut(pair, "=")
		if !ok {
			return args, fmt.Errorf("argument %q: expected index=value", pair)
		}
		i, err := strconv.ParseUint(idx, 10, 8)
		if err != nil || i >= goseccompc.MaxArgs {
			return args, fmt.Errorf("argument %q: index must be between 0 and %d", pair, goseccompc.MaxArgs-1)
		}
		v, err := strconv.ParseUint(val, 0, 64)
		if err != nil {
			return args, fmt.Errorf("argument %q: %w", pair, err)
		}
		args[i] = v
	}
	return args, nil
}
