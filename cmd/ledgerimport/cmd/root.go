package cmd

import (
	"fmt"
	"os"

	"ledger-import-service/cmd/ledgerimport/config"
	"ledger-import-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledgerimport",
	Short: "Bank statement import and reconciliation tool",
	Long: `Ledgerimport reads bank statement files (CSV or XLSX), turns their rows
into ledger transactions against an account's running balance, and validates
asserted closing balances through reconciliation checkpoints.

Examples:
  ledgerimport import --file statement.csv --opening-balance 1000
  ledgerimport import --file statement.xlsx --mapping "date=0,desc=1,dr=2,cr=3" --output-format json
  ledgerimport reconcile --file statement.csv --assert-balance 3487.50 --checkpoint-date 2024-02-29
  ledgerimport version`,
	Version: getVersionString(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(1)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}

	// Read environment variables that match
	viper.SetEnvPrefix("LEDGERIMPORT")
	viper.AutomaticEnv()

	if log, err := logger.NewLogger(config.CreateLoggerConfig(viper.GetBool("verbose"))); err == nil {
		logger.SetGlobalLogger(log)
	}
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
