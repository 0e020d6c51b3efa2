package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/boristopalov/stepsweep/pkg/config"
	"github.com/boristopalov/stepsweep/pkg/signals"
)

// signalsDir resolves the signals directory from flag, config and environment
func signalsDir(cmd *cobra.Command, configPath string) (string, error) {
	v := config.New()
	if err := v.BindPFlag("signals.dir", cmd.Flags().Lookup("signals")); err != nil {
		return "", err
	}
	cfg, err := config.Load(v, resolveConfigPath(configPath))
	if err != nil {
		return "", err
	}
	return cfg.Signals.Dir, nil
}

func addSignalsFlags(cmd *cobra.Command, configPath *string) {
	cmd.Flags().StringVarP(configPath, "config", "c", "", "Path to a YAML config file")
	cmd.Flags().String("signals", config.Default().Signals.Dir, "Signals directory of the running sweep")
}

func newHaltCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "halt",
		Short: "Ask a running sweep to halt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := signalsDir(cmd, configPath)
			if err != nil {
				return err
			}
			if err := signals.SendHalt(dir); err != nil {
				return fmt.Errorf("sending halt: %w", err)
			}
			printStatus(cmd.OutOrStdout(), "■", fmt.Sprintf("halt sent to %s", dir), color.FgYellow)
			return nil
		},
	}
	addSignalsFlags(cmd, &configPath)
	return cmd
}

func newSetCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "set <name> <value>",
		Short: "Change a named simulation parameter (e.g. gravity) of a running sweep",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			value, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			dir, err := signalsDir(cmd, configPath)
			if err != nil {
				return err
			}
			if err := signals.SendParameter(dir, name, value); err != nil {
				return fmt.Errorf("sending %s: %w", name, err)
			}
			printStatus(cmd.OutOrStdout(), "✓", fmt.Sprintf("%s=%g sent to %s", name, value, dir), color.FgGreen)
			return nil
		},
	}
	addSignalsFlags(cmd, &configPath)
	return cmd
}
