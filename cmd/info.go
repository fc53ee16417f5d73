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

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info <device>",
	Short: "Display detailed information about an FLI device",
	Long: `Open a device and display its identity, firmware, and, for
cameras, sensor geometry and thermal state.

Examples:
  flicam info FLI-04
  flicam info /dev/ttyUSB0 --type camera
  flicam info 192.168.1.40:7624 --domain inet --type camera`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		typeFlag, _ := cmd.Flags().GetString("type")
		devType, err := fli.ParseDomain("any/" + typeFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		h := openDevice(args[0], devType)
		defer fli.Close(h)

		model, err := fli.GetModel(h)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading model: %v\n", err)
			os.Exit(1)
		}
		serial, _ := fli.GetSerialString(h)
		hwRev, _ := fli.GetHWRevision(h)
		fwRev, _ := fli.GetFWRevision(h)

		fmt.Printf("Device Information: %s\n\n", args[0])
		fmt.Printf("  Model:       %s\n", model)
		fmt.Printf("  Serial:      %s\n", serial)
		fmt.Printf("  HW revision: 0x%04x\n", hwRev)
		fmt.Printf("  FW revision: 0x%04x\n", fwRev)
		fmt.Printf("  Library:     %s\n", fli.LibVersion())

		if devType == fli.DeviceCamera {
			printCameraInfo(h)
		}
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringP("type", "t", "camera", "Device type: camera, filterwheel, focuser")
}

func printCameraInfo(h fli.Handle) {
	fmt.Println("\nSensor:")
	if ulx, uly, lrx, lry, err := fli.GetArrayArea(h); err == nil {
		fmt.Printf("  Array area:   (%d,%d)-(%d,%d)\n", ulx, uly, lrx, lry)
	}
	if ulx, uly, lrx, lry, err := fli.GetVisibleArea(h); err == nil {
		fmt.Printf("  Visible area: (%d,%d)-(%d,%d)\n", ulx, uly, lrx, lry)
	}
	if px, py, err := fli.GetPixelSize(h); err == nil {
		fmt.Printf("  Pixel size:   %.2f x %.2f um\n", px, py)
	}

	fmt.Println("\nThermal:")
	if temp, err := fli.GetTemperature(h); err == nil {
		fmt.Printf("  CCD temperature: %.1f C\n", temp)
	}
	if power, err := fli.GetCoolerPower(h); err == nil {
		fmt.Printf("  Cooler power:    %.0f%%\n", power)
	}
}
