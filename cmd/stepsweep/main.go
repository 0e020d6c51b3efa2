package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// defaultConfigFile is picked up from the working directory when --config is not given
const defaultConfigFile = "stepsweep.yaml"

func main() {
	rootCmd := &cobra.Command{
		Use:          "stepsweep",
		Short:        "stepsweep sweeps a simulation's physics timestep and records how often the agent succeeds at each value.",
		SilenceUsage: true,
	}

	for _, envFile := range []string{
		".env",
		"../../.env",
		"../../../.env",
	} {
		if err := godotenv.Load(envFile); err == nil {
			break
		}
	}

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newHaltCmd())
	rootCmd.AddCommand(newSetCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath falls back to ./stepsweep.yaml when it exists
func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}
