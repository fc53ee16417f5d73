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
	filterSet  int
	filterHome bool
)

// filterCmd represents the filter command
var filterCmd = &cobra.Command{
	Use:   "filter <device>",
	Short: "Read or move a filter wheel",
	Long: `Without flags, report the wheel's position and the names of all
slots. --set moves the wheel and blocks until it arrives; --home
drives it to the home position first.

Examples:
  flicam filter FLI-21
  flicam filter FLI-21 --set 3
  flicam filter FLI-21 --home`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		h := openDevice(args[0], fli.DeviceFilterWheel)
		defer fli.Close(h)

		if filterHome {
			fmt.Println("Homing filter wheel...")
			if err := fli.HomeDevice(h); err != nil {
				fmt.Fprintf(os.Stderr, "Error homing: %v\n", err)
				os.Exit(1)
			}
		}

		if cmd.Flags().Changed("set") {
			fmt.Printf("Moving to slot %d...\n", filterSet)
			if err := fli.SetFilterPos(h, filterSet); err != nil {
				fmt.Fprintf(os.Stderr, "Error moving wheel: %v\n", err)
				os.Exit(1)
			}
		}

		pos, err := fli.GetFilterPos(h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading position: %v\n", err)
			os.Exit(1)
		}
		count, err := fli.GetFilterCount(h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading slot count: %v\n", err)
			os.Exit(1)
		}

		if pos == fli.FilterPositionUnknown {
			fmt.Println("Position: unknown (wheel has not moved since power-on)")
		} else {
			fmt.Printf("Position: %d of %d\n", pos, count)
		}

		fmt.Println("\nSlots:")
		for i := 0; i < count; i++ {
			name, err := fli.GetFilterName(h, i)
			if err != nil {
				name = "?"
			}
			marker := " "
			if i == pos {
				marker = "*"
			}
			fmt.Printf("  %s %d: %s\n", marker, i, name)
		}
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)

	filterCmd.Flags().IntVarP(&filterSet, "set", "s", 0, "Move to this slot (blocks until done)")
	filterCmd.Flags().BoolVar(&filterHome, "home", false, "Home the wheel before anything else")
}
