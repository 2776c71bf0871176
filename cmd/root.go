package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/berarma/TinyPedal/pkg/config"
)

const envPrefix = "TINYPEDAL"

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tinypedal",
	Short: "Fuel consumption estimation for racing simulators",
	Long: `tinypedal polls live simulator telemetry, learns a per-combo fuel
consumption curve and publishes range and pit stop projections.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is $HOME/.tinypedal.yml)")

	rootCmd.PersistentFlags().StringVar(&config.TelemetryURL, "telemetry-url",
		"ws://localhost:8088/telemetry",
		"websocket endpoint of the simulator telemetry bridge")
	rootCmd.PersistentFlags().StringVar(&config.FuelDir, "fuel-dir",
		"./userdata",
		"directory holding per-combo fuel consumption files")
	rootCmd.PersistentFlags().StringVar(&config.StatsDB, "stats-db",
		"./tinypedal-stats.db",
		"sqlite file holding lifetime driver stats")
	rootCmd.PersistentFlags().StringVar(&config.WebServerAddr, "webserver-addr",
		"",
		"webserver listen address, empty disables it")
	rootCmd.PersistentFlags().IntVar(&config.UpdateIntervalMs, "update-interval-ms",
		10,
		"engine polling interval while driving")
	rootCmd.PersistentFlags().IntVar(&config.IdleIntervalMs, "idle-interval-ms",
		500,
		"engine polling interval while not driving")
	rootCmd.PersistentFlags().IntVar(&config.DisplayIntervalMs, "display-interval-ms",
		1000,
		"refresh interval of the terminal widget, zero disables it")
	rootCmd.PersistentFlags().Float64Var(&config.LowFuelLaps, "low-fuel-laps",
		2,
		"remaining-range threshold in laps for alerts")
	rootCmd.PersistentFlags().StringVar(&config.TelegramToken, "telegram-token",
		"",
		"telegram bot token, empty disables telegram alerts")
	rootCmd.PersistentFlags().Int64Var(&config.TelegramChatID, "telegram-chat-id",
		0,
		"telegram chat receiving alerts")

	rootCmd.AddCommand(newRunCmd())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".tinypedal")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv() // read in environment variables that match

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	bindFlags(rootCmd, viper.GetViper())
	for _, cmd := range rootCmd.Commands() {
		bindFlags(cmd, viper.GetViper())
	}
}

// Bind each cobra flag to its associated viper configuration
// (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		// Environment variables can't have dashes in them, so bind them
		// to their equivalent keys with underscores, e.g. --fuel-dir to
		// TINYPEDAL_FUEL_DIR
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name,
				fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				fmt.Fprintf(os.Stderr, "Could not bind env var %s: %v", f.Name, err)
			}
		}
		// Apply the viper config value to the flag when the flag is not
		// set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				fmt.Fprintf(os.Stderr, "Could set flag value for %s: %v", f.Name, err)
			}
		}
	})
}
