package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dskimg/imaging"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"l", "disks"},
		Short:   "List removable devices",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := a.disc.Discover()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No removable devices found.")
				return nil
			}
			for _, d := range devices {
				if d.Mounted() {
					fmt.Fprintln(out, color.YellowString(d.String()))
					continue
				}
				fmt.Fprintln(out, d.String())
			}
			return nil
		},
	}
}

func newReadCmd(a *app) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:     "read IMAGE",
		Aliases: []string{"i", "image"},
		Short:   "Copy a whole device into an image file",
		Long: `Copy a whole device into an image file.

The image is compressed when its name ends in .gz, .xz, .zst or .bz2.
An interrupted read removes the partial image.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := args[0]
			out := cmd.OutOrStdout()

			dev, err := a.pickDevice(device, "Select the device to read:")
			if err != nil {
				return err
			}

			if _, err := os.Stat(image); err == nil {
				ok, err := confirm(fmt.Sprintf("%s already exists, overwrite it?", image), a.cfg.AssumeYes)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			start := time.Now()
			err = a.run(func(flag *imaging.Flag, progress imaging.Progress) error {
				return a.imager.Read(dev, image, flag, progress)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "%s %s saved to %s in %s\n",
				color.GreenString("Done:"), dev, image, time.Since(start).Truncate(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "device to read (default: ask)")
	return cmd
}

func newWriteCmd(a *app) *cobra.Command {
	var (
		device  string
		unmount bool
	)

	cmd := &cobra.Command{
		Use:     "write IMAGE",
		Aliases: []string{"w", "flash"},
		Short:   "Write an image (raw or compressed) to a device",
		Long: `Write an image to a device, then read it back to verify it.

Compressed images (.gz, .xz, .zst, .bz2) are decompressed to a temporary file
first. Partitions, fixed disks, the system disk and mounted devices are refused.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := args[0]
			out := cmd.OutOrStdout()

			if _, err := os.Stat(image); err != nil {
				return err
			}

			dev, err := a.pickDevice(device, "Select the device to overwrite:")
			if err != nil {
				return err
			}
			if err := checkWriteTarget(a.disc, dev, targetChecks{Force: a.cfg.Force, Unmount: unmount}); err != nil {
				return err
			}

			if imaging.DetectFormat(image) == imaging.FormatNone {
				if layout, err := imaging.InspectFile(image); err == nil {
					_ = printLayout(out, layout)
				}
			}

			warn("all data on %s will be destroyed", dev)
			ok, err := confirm(fmt.Sprintf("Write %s to %s?", filepath.Base(image), dev), a.cfg.AssumeYes)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}

			verify := !a.cfg.NoVerify
			start := time.Now()
			err = a.run(func(flag *imaging.Flag, progress imaging.Progress) error {
				return a.imager.Write(image, dev, verify, flag, progress)
			})
			if err != nil {
				return err
			}

			status := "verified"
			if !verify {
				status = "not verified"
			}
			fmt.Fprintf(out, "%s %s written to %s (%s) in %s\n",
				color.GreenString("Done:"), filepath.Base(image), dev, status, time.Since(start).Truncate(time.Second))
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "device to write (default: ask)")
	cmd.Flags().BoolVar(&unmount, "unmount", false, "unmount the target's filesystems instead of refusing")
	cmd.Flags().Bool("no-verify", false, "skip reading the device back after writing")
	_ = a.v.BindPFlag("no-verify", cmd.Flags().Lookup("no-verify"))
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var device string

	cmd := &cobra.Command{
		Use:   "verify IMAGE",
		Short: "Compare a device against an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			image := args[0]

			dev, err := a.pickDevice(device, "Select the device to verify:")
			if err != nil {
				return err
			}

			err = a.run(func(flag *imaging.Flag, progress imaging.Progress) error {
				return a.imager.Verify(image, dev, flag, progress)
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s matches %s (%s)\n",
				color.GreenString("OK:"), dev, filepath.Base(image), a.imager.Digest)
			return nil
		},
	}

	cmd.Flags().StringVarP(&device, "device", "d", "", "device to verify (default: ask)")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "inspect IMAGE",
		Aliases: []string{"p", "partitions"},
		Short:   "Show the partition table and filesystems inside an image",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var plain *imaging.DecompressedImage
			err := a.run(func(flag *imaging.Flag, progress imaging.Progress) error {
				var err error
				plain, err = a.imager.Materialize(args[0], flag, progress)
				return err
			})
			if err != nil {
				return err
			}
			defer plain.Close()

			layout, err := imaging.InspectFile(plain.Path())
			if err != nil {
				return fmt.Errorf("inspecting %s: %w", args[0], err)
			}
			return printLayout(cmd.OutOrStdout(), layout)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dskimg %s\n", appversion)
		},
	}
}
