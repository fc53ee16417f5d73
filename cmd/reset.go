/*
Copyright © 2026 OpenAstro
*/
package cmd

import (
	"errors"
	"fmt"
	"os"

	fli "github.com/openastro/go-fli"
	"github.com/spf13/cobra"
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset <path|serial>",
	Short: "Reset a hung USB device",
	Long: `Perform a USB-level reset on a device. This can recover cameras
that stop answering commands without physically unplugging them.

The device re-enumerates after reset, which may change its tty path.
Use serial numbers to reliably identify devices across resets.

Requirements:
- usbreset utility must be installed (from usbutils package)
- Root/sudo permissions required for USB operations

Examples:
  sudo flicam reset /dev/ttyUSB0        # Reset by tty path
  sudo flicam reset --serial ML0001     # Reset by serial number`,
	Args: func(cmd *cobra.Command, args []string) error {
		serialFlag, _ := cmd.Flags().GetString("serial")
		if serialFlag == "" && len(args) != 1 {
			return errors.New("requires either a tty path argument or --serial flag")
		}
		if serialFlag != "" && len(args) > 0 {
			return errors.New("cannot specify both tty path and --serial flag")
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		if !fli.IsUSBResetAvailable() {
			fmt.Fprintln(os.Stderr, "Error: usbreset utility not available")
			fmt.Fprintln(os.Stderr, "Install with: sudo apt-get install usbutils")
			os.Exit(1)
		}

		serialFlag, _ := cmd.Flags().GetString("serial")

		var err error
		if serialFlag != "" {
			fmt.Printf("Resetting USB device with serial: %s\n", serialFlag)
			err = fli.ResetUSBDeviceBySerial(serialFlag)
		} else {
			fmt.Printf("Resetting USB device: %s\n", args[0])
			err = fli.ResetUSBDevice(args[0])
		}

		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if errors.Is(err, fli.ErrUSBInfoNotAvailable) {
				fmt.Fprintln(os.Stderr, "This device does not appear to be a USB device")
			}
			os.Exit(1)
		}

		fmt.Println("USB device reset successfully")
		fmt.Println("Device will re-enumerate (tty path may change)")
		fmt.Println("\nUse 'flicam list --table' to see updated device list")
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().StringP("serial", "s", "", "Reset device by serial number")
}
