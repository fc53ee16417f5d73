/*
Copyright © 2026 OpenAstro
*/
package cmd

import (
	"fmt"
	"os"
	"strconv"

	fli "github.com/openastro/go-fli"
	"github.com/spf13/cobra"
)

// tempCmd represents the temp command
var tempCmd = &cobra.Command{
	Use:   "temp <device> [setpoint]",
	Short: "Read or set camera cooling",
	Long: `Without a setpoint, report the CCD temperature and cooler power.
With a setpoint in degrees Celsius, command the cooler to it.

Examples:
  flicam temp FLI-04
  flicam temp FLI-04 -- -20
  flicam temp FLI-04 -- -35.5`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		h := openDevice(args[0], fli.DeviceCamera)
		defer fli.Close(h)

		if len(args) == 2 {
			setpoint, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: setpoint %q: %v\n", args[1], err)
				os.Exit(1)
			}
			if err := fli.SetTemperature(h, setpoint); err != nil {
				fmt.Fprintf(os.Stderr, "Error setting temperature: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Cooler setpoint: %.1f C\n", setpoint)
		}

		temp, err := fli.GetTemperature(h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading temperature: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("CCD temperature: %.1f C\n", temp)

		if power, err := fli.GetCoolerPower(h); err == nil {
			fmt.Printf("Cooler power:    %.0f%%\n", power)
		}
		if ambient, err := fli.ReadTemperature(h, fli.TemperatureExternal); err == nil {
			fmt.Printf("Base temperature: %.1f C\n", ambient)
		}
	},
}

func init() {
	rootCmd.AddCommand(tempCmd)
}
