package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/boristopalov/stepsweep/pkg/config"
)

const configHeader = `# stepsweep configuration
# Values may be overridden with STEPSWEEP_* environment variables
# (e.g. STEPSWEEP_SWEEP_DATA_POINTS=5) or with flags to "stepsweep run".
`

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration template with the default sweep",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigFile
			if len(args) > 0 {
				path = args[0]
			}
			out := cmd.OutOrStdout()
			created, err := writeConfigTemplate(path, force)
			if err != nil {
				return err
			}
			if !created {
				printStatus(out, "✓", fmt.Sprintf("%s already exists (use --force to overwrite)", path), color.FgYellow)
				return nil
			}
			printStatus(out, "✓", fmt.Sprintf("wrote %s", path), color.FgGreen)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// renderConfigTemplate renders the default configuration as YAML
func renderConfigTemplate() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.Default()); err != nil {
		return nil, fmt.Errorf("encoding config template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeConfigTemplate writes the template to path unless it exists
func writeConfigTemplate(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	data, err := renderConfigTemplate()
	if err != nil {
		return false, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return false, fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	return true, nil
}
