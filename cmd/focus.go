/*
Copyright © 2026 OpenAstro
*/
package cmd

import (
	"fmt"
	"os"

	fli "github.com/openastro/go-fli"
	"github.com/spf13/cobra"
)

var (
	focusStep int
	focusHome bool
)

// focusCmd represents the focus command
var focusCmd = &cobra.Command{
	Use:   "focus <device>",
	Short: "Read or move a focuser",
	Long: `Without flags, report the focuser's position and travel range.
--step moves by a relative step count (negative toward home) and
blocks until the motor stops; --home drives to the home position and
zeroes the counter.

Examples:
  flicam focus FLI-39
  flicam focus FLI-39 --step 150
  flicam focus FLI-39 --step -- -50
  flicam focus FLI-39 --home`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openDevice(args[0], fli.DeviceFocuser)
		defer fli.Close(h)

		if focusHome {
			fmt.Println("Homing focuser...")
			if err := fli.HomeFocuser(h); err != nil {
				fmt.Fprintf(os.Stderr, "Error homing: %v\n", err)
				os.Exit(1)
			}
		}

		if cmd.Flags().Changed("step") {
			fmt.Printf("Stepping %+d...\n", focusStep)
			if err := fli.StepMotor(h, focusStep); err != nil {
				fmt.Fprintf(os.Stderr, "Error stepping: %v\n", err)
				os.Exit(1)
			}
		}

		pos, err := fli.GetStepperPosition(h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading position: %v\n", err)
			os.Exit(1)
		}
		extent, err := fli.GetFocuserExtent(h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading extent: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Position: %d of %d steps\n", pos, extent)

		if temp, err := fli.FocuserTemperature(h); err == nil {
			fmt.Printf("Temperature: %.1f C\n", temp)
		}
	},
}

func init() {
	rootCmd.AddCommand(focusCmd)

	focusCmd.Flags().IntVarP(&focusStep, "step", "s", 0, "Relative steps to move (blocks until done)")
	focusCmd.Flags().BoolVar(&focusHome, "home", false, "Home the focuser before anything else")
}
