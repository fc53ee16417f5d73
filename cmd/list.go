/*
Copyright © 2026 OpenAstro
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	fli "github.com/openastro/go-fli"
	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attached FLI devices",
	Long: `List FLI devices reachable through the selected interface domain.

Devices are discovered per interface:
- USB-attached cameras, filter wheels, and focusers
- Platform serial ports (ttyS*, ttyAMA*, and similar)
- Network devices are not discoverable and must be opened by address

Examples:
  flicam list
  flicam list --type camera
  flicam list --domain serial
  flicam list --simulate --table`,
	Run: func(cmd *cobra.Command, args []string) {
		typeFlag, _ := cmd.Flags().GetString("type")
		tableFormat, _ := cmd.Flags().GetBool("table")

		filter := deviceDomain(fli.DeviceNone)
		if typeFlag != "" {
			devType, err := fli.ParseDomain("any/" + typeFlag)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			filter |= devType
		}

		devices, err := fli.List(filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing devices: %v\n", err)
			os.Exit(1)
		}

		if len(devices) == 0 {
			fmt.Println("No FLI devices found")
			return
		}

		if tableFormat {
			renderTable(devices)
		} else {
			renderSimple(devices)
		}
	},
}

func init() {
	rootCmd.AddCommand(listCmd)

	listCmd.Flags().StringP("type", "t", "", "Filter by device type: camera, filterwheel, focuser")
	listCmd.Flags().Bool("table", false, "Display output in a styled table format")
}

// renderTable renders the device list in a styled static table format
func renderTable(devices []fli.DeviceInfo) {
	fmt.Printf("Found %d FLI device(s):\n\n", len(devices))

	nameWidth := 18
	domainWidth := 22
	modelWidth := 22
	serialWidth := 12

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("99")).
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("240")).
		PaddingBottom(1)

	cellStyle := lipgloss.NewStyle().
		PaddingRight(2)

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s",
		nameWidth, "Name",
		domainWidth, "Domain",
		modelWidth, "Model",
		serialWidth, "Serial")
	fmt.Println(headerStyle.Render(header))

	for _, d := range devices {
		row := fmt.Sprintf("%-*s %-*s %-*s %-*s",
			nameWidth, d.Name,
			domainWidth, d.Domain.String(),
			modelWidth, d.Model,
			serialWidth, d.Serial)
		fmt.Println(cellStyle.Render(row))
	}
}

// renderSimple renders the device list in simple text format
func renderSimple(devices []fli.DeviceInfo) {
	for _, d := range devices {
		if d.Model != "" {
			fmt.Printf("%s  %s  %s (%s)\n", d.Name, d.Domain, d.Path, d.Model)
		} else {
			fmt.Printf("%s  %s  %s\n", d.Name, d.Domain, d.Path)
		}
	}
}
