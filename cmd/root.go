/*
Copyright © 2026 OpenAstro
*/
package cmd

import (
	"fmt"
	"os"
	"strings"

	fli "github.com/openastro/go-fli"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	debugFlags []string
	simulate   bool
	domainFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flicam",
	Short: "Control FLI cameras, filter wheels, and focusers",
	Long: `flicam drives Finger Lakes Instrumentation CCD cameras, filter
wheels, and focusers over USB, serial, and network transports.

Devices are addressed by name or path within a domain:

  flicam list
  flicam info FLI-04
  flicam capture FLI-04 frame.pgm --exposure 10s --dark
  flicam temp FLI-04 --set -- -20
  flicam filter FLI-21 --set 3
  flicam focus FLI-39 --step 150

Pass --simulate to run against an in-process simulated bench instead
of real hardware.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		applyDebugFlags()
		if simulate {
			fli.Simulate(viper.GetFloat64("simulate-timescale"))
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.flicam.yaml)")
	rootCmd.PersistentFlags().StringSliceVar(&debugFlags, "debug", nil, "debug output: info, warn, fail, io, all")
	rootCmd.PersistentFlags().BoolVar(&simulate, "simulate", false, "use the in-process simulated bench instead of hardware")
	rootCmd.PersistentFlags().StringVarP(&domainFlag, "domain", "d", "usb", "interface domain: usb, serial, serial-19200, serial-1200, inet")

	viper.SetDefault("simulate-timescale", 1.0)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".flicam")
	}

	viper.SetEnvPrefix("flicam")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func applyDebugFlags() {
	if len(debugFlags) == 0 {
		return
	}
	var level fli.DebugLevel
	for _, f := range debugFlags {
		switch strings.ToLower(f) {
		case "info":
			level |= fli.DebugInfo
		case "warn":
			level |= fli.DebugWarn
		case "fail":
			level |= fli.DebugFail
		case "io":
			level |= fli.DebugIO
		case "all":
			level |= fli.DebugAll | fli.DebugIO
		default:
			fmt.Fprintf(os.Stderr, "Unknown debug level: %s\n", f)
			os.Exit(1)
		}
	}
	fli.SetDebugLevel(level, os.Stderr)
}

// deviceDomain combines the --domain flag with a device type.
func deviceDomain(devType fli.Domain) fli.Domain {
	iface, err := fli.ParseDomain(domainFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return iface.Interface() | devType
}

// openDevice opens a session, exiting with a message on failure.
func openDevice(name string, devType fli.Domain) fli.Handle {
	h, err := fli.Open(name, deviceDomain(devType))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening %s: %v\n", name, err)
		os.Exit(1)
	}
	return h
}
