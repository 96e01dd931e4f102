// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the docprep CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/docprep/internal/secrets"
	"github.com/pdiddy/docprep/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the docprep CLI.
var rootCmd = &cobra.Command{
	Use:   "docprep",
	Short: "Detect and convert legacy documents before ingestion",
	Long: `docprep prepares document units for downstream ingestion. Each unit is a
directory of files; docprep identifies what every file really contains,
converts legacy office formats (doc, xls, ppt, rtf, odt, ods, odp) to their
modern equivalents with LibreOffice, and records every attempt in an audit
trail that can be ingested into a SQLite store.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./docprep.yaml or ~/.config/docprep/docprep.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging to stderr")
	rootCmd.PersistentFlags().String("store-dir", "", "directory containing docprep.db (default .)")
	rootCmd.PersistentFlags().String("secrets-dir", secrets.DefaultDir, "directory of credential files")

	_ = viper.BindPFlag("log.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.dir", rootCmd.PersistentFlags().Lookup("store-dir"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("docprep")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "docprep"))
		}
	}

	configure(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// configure installs defaults and DOCPREP_* environment overrides, so that
// DOCPREP_CONVERSION_BACKEND sets conversion.backend.
func configure(v *viper.Viper) {
	setDefaults(v)
	v.SetEnvPrefix("DOCPREP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults registers every key so that environment overrides reach
// Unmarshal even when no config file sets them.
func setDefaults(v *viper.Viper) {
	d := types.DefaultConversionConfig()
	v.SetDefault("conversion.dest_root", d.DestRoot)
	v.SetDefault("conversion.use_headless", d.UseHeadless)
	v.SetDefault("conversion.backend", string(d.Backend))
	v.SetDefault("conversion.soffice_path", d.SofficePath)
	v.SetDefault("conversion.xvfb_path", d.XvfbPath)
	v.SetDefault("conversion.max_displays", d.MaxDisplays)
	v.SetDefault("conversion.remote_url", "")
	v.SetDefault("conversion.timeout_base", d.TimeoutBase)
	v.SetDefault("conversion.timeout_per_mb", d.TimeoutPerMB)
	v.SetDefault("conversion.timeout_max", d.TimeoutMax)
	v.SetDefault("conversion.original_policy", string(d.OriginalPolicy))
	v.SetDefault("conversion.concurrency", d.Concurrency)
	v.SetDefault("store.dir", ".")
	v.SetDefault("log.verbose", false)
}

// loadConfig decodes the merged configuration (defaults, file, environment,
// bound flags).
func loadConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Conversion.Defaults()
	return cfg, nil
}

// newLogger returns a JSON production logger, or a human-readable debug
// logger when verbose is set.
func newLogger(verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if verbose {
		zc = zap.NewDevelopmentConfig()
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
