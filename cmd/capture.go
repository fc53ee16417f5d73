/*
Copyright © 2026 OpenAstro
*/
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	fli "github.com/openastro/go-fli"
	"github.com/spf13/cobra"
)

var (
	captureExposure time.Duration
	captureDark     bool
	captureBin      int
	captureArea     string
	captureFlushes  int
)

// captureCmd represents the capture command
var captureCmd = &cobra.Command{
	Use:   "capture <device> <output-file>",
	Short: "Expose a frame and save it to a file",
	Long: `Expose a single frame with the camera and write the pixel data to
the output file. Files ending in .pgm get a portable graymap header so
the frame opens in ordinary image viewers; anything else is written as
raw big-endian pixel data.

The exposure can be interrupted with Ctrl+C, which cancels it on the
device before exiting.

Example usage:
  flicam capture FLI-04 frame.pgm
  flicam capture FLI-04 dark.pgm --exposure 30s --dark
  flicam capture FLI-04 frame.raw --bin 2 --area 100,100,612,612
  flicam capture FLI-04 focus.pgm --exposure 100ms --flushes 2`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runCapture(args[0], args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(captureCmd)

	captureCmd.Flags().DurationVarP(&captureExposure, "exposure", "e", 100*time.Millisecond, "Exposure duration")
	captureCmd.Flags().BoolVar(&captureDark, "dark", false, "Take a dark frame (shutter closed)")
	captureCmd.Flags().IntVarP(&captureBin, "bin", "b", 1, "Binning factor for both axes")
	captureCmd.Flags().StringVarP(&captureArea, "area", "a", "", "Region of interest: ulx,uly,lrx,lry (default full sensor)")
	captureCmd.Flags().IntVar(&captureFlushes, "flushes", 0, "Background flushes before the exposure")
}

func runCapture(device, outputPath string) error {
	h := openDevice(device, fli.DeviceCamera)
	defer fli.Close(h)

	if err := fli.SetExposureTime(h, captureExposure.Milliseconds()); err != nil {
		return fmt.Errorf("set exposure time: %w", err)
	}
	frameType := fli.FrameTypeNormal
	if captureDark {
		frameType = fli.FrameTypeDark
	}
	if err := fli.SetFrameType(h, frameType); err != nil {
		return fmt.Errorf("set frame type: %w", err)
	}
	if err := fli.SetHBin(h, captureBin); err != nil {
		return fmt.Errorf("set binning: %w", err)
	}
	if err := fli.SetVBin(h, captureBin); err != nil {
		return fmt.Errorf("set binning: %w", err)
	}
	if captureArea != "" {
		ulx, uly, lrx, lry, err := parseArea(captureArea)
		if err != nil {
			return err
		}
		if err := fli.SetImageArea(h, ulx, uly, lrx, lry); err != nil {
			return fmt.Errorf("set image area: %w", err)
		}
	}
	if captureFlushes > 0 {
		if err := fli.SetNFlushes(h, captureFlushes); err != nil {
			return fmt.Errorf("set flushes: %w", err)
		}
	}

	cfg, err := fli.GetCameraConfig(h)
	if err != nil {
		return err
	}

	// Cancel a running exposure on Ctrl+C instead of abandoning the
	// shutter mid-frame.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	interrupted := make(chan struct{})
	go func() {
		if _, ok := <-sigChan; ok {
			close(interrupted)
		}
	}()

	fmt.Printf("Exposing %v (%dx%d, bin %d)...\n", captureExposure, cfg.Width(), cfg.Height(), captureBin)
	if err := fli.ExposeFrame(h); err != nil {
		return fmt.Errorf("start exposure: %w", err)
	}

	for {
		select {
		case <-interrupted:
			fmt.Println("\nCancelling exposure...")
			fli.CancelExposure(h)
			return fmt.Errorf("capture interrupted")
		default:
		}
		remaining, err := fli.GetExposureStatus(h)
		if err != nil {
			return fmt.Errorf("exposure status: %w", err)
		}
		if remaining == 0 {
			break
		}
		wait := time.Duration(remaining) * time.Millisecond
		if wait > time.Second {
			wait = time.Second
		}
		time.Sleep(wait)
	}

	if err := fli.EndExposure(h); err != nil {
		return fmt.Errorf("end exposure: %w", err)
	}

	fmt.Println("Reading out...")
	frame, err := fli.GrabFrame(h)
	if err != nil {
		return fmt.Errorf("readout: %w", err)
	}

	if err := writeFrame(outputPath, frame, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %d bytes to %s\n", len(frame), outputPath)
	return nil
}

func parseArea(s string) (ulx, uly, lrx, lry int, err error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, 0, fmt.Errorf("area must be ulx,uly,lrx,lry, got %q", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("area component %q: %v", p, err)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], vals[3], nil
}

// writeFrame saves pixel data, adding a PGM header for .pgm paths.
func writeFrame(path string, frame []byte, cfg fli.CameraConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if strings.HasSuffix(strings.ToLower(path), ".pgm") {
		maxVal := 65535
		if cfg.BitDepth == fli.Mode8Bit {
			maxVal = 255
		}
		// P5 with maxval > 255 is big-endian 16-bit, matching the
		// frame's wire format.
		fmt.Fprintf(w, "P5\n%d %d\n%d\n", cfg.Width(), cfg.Height(), maxVal)
	}
	if _, err := w.Write(frame); err != nil {
		return err
	}
	return w.Flush()
}
