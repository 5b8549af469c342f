package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/TFMV/dirlisten/internal/config"
	"github.com/TFMV/dirlisten/internal/listen"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dirlisten",
	Short: "Run handlers when files in a directory change",
	Long: `dirlisten watches a single directory and routes every create, update
and delete event to the first rule whose regular expression matches the
entry's name in full.

Rules come from ~/.dirlisten.yaml (or --config), DIRLISTEN_* environment
variables, and command line flags.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default is $HOME/.dirlisten.yaml)")
	rootCmd.PersistentFlags().String("log-level", "none", "Log level (none|error|warn|info|debug)")
	rootCmd.PersistentFlags().String("backend", config.BackendFsnotify, "Watch backend (fsnotify|poll|notify)")
	rootCmd.PersistentFlags().Duration("poll-interval", listen.DefaultPollInterval, "Scan interval for the poll backend")
	rootCmd.PersistentFlags().Bool("normalize-names", false, "Normalize entry names to Unicode NFC before matching")

	// Bind flags to viper
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("backend", rootCmd.PersistentFlags().Lookup("backend"))
	viper.BindPFlag("poll-interval", rootCmd.PersistentFlags().Lookup("poll-interval"))
	viper.BindPFlag("normalize-names", rootCmd.PersistentFlags().Lookup("normalize-names"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in home directory with name ".dirlisten" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".dirlisten")
	}

	viper.SetEnvPrefix("dirlisten")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig decodes the global viper state, taking the directory from args
// when given, then from config, then the working directory.
func loadConfig(args []string) (config.Config, error) {
	if len(args) > 0 {
		viper.Set("directory", args[0])
	} else if viper.GetString("directory") == "" {
		wd, err := os.Getwd()
		if err != nil {
			return config.Config{}, fmt.Errorf("error getting current directory: %w", err)
		}
		viper.Set("directory", wd)
	}
	return config.Load(viper.GetViper())
}

// newLogger builds the CLI logger from the log-level setting.
func newLogger(level string) (*zap.Logger, error) {
	l, err := listen.ParseLogLevel(level)
	if err != nil {
		return nil, err
	}
	return listen.NewLogger(l), nil
}
