package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dskimg/imaging"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"golang.org/x/term"
)

var errNotInteractive = errors.New("no terminal to ask on, pass --device and --yes")

func interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// selectDevice asks the user to pick one of the discovered devices.
func selectDevice(devices []imaging.Device, message string) (imaging.Device, error) {
	if len(devices) == 0 {
		return imaging.Device{}, errors.New("no removable devices found")
	}
	if !interactive() {
		return imaging.Device{}, errNotInteractive
	}

	options := make([]string, len(devices))
	for idx, d := range devices {
		options[idx] = d.String()
	}

	var selected int
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if err := survey.AskOne(prompt, &selected); err != nil {
		return imaging.Device{}, err
	}
	return devices[selected], nil
}

// confirm asks a yes/no question defaulting to no. assumeYes skips it.
func confirm(message string, assumeYes bool) (bool, error) {
	if assumeYes {
		return true, nil
	}
	if !interactive() {
		return false, errNotInteractive
	}

	ok := false
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func warn(format string, args ...any) {
	color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "WARNING: "+format+"\n", args...)
}

// findDevice returns the discovered device behind path, following symlinks
// such as /dev/disk/by-id/*.
func findDevice(devices []imaging.Device, path string) (imaging.Device, bool) {
	resolved := path
	if r, err := filepath.EvalSymlinks(path); err == nil {
		resolved = r
	}
	for _, d := range devices {
		if d.Path == path || d.Path == resolved {
			return d, true
		}
	}
	return imaging.Device{}, false
}

// targetChecks relaxes checkWriteTarget.
type targetChecks struct {
	Force   bool // skip the removable/mounted checks
	Unmount bool // unmount a mounted target instead of refusing it
}

// inDeviceDir reports whether path lives under /dev, where a missing node
// means a mistyped device rather than a new image file.
func inDeviceDir(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return abs == "/dev" || strings.HasPrefix(abs, "/dev/")
}

// checkWriteTarget refuses targets that are probably a mistake: a partition
// instead of a whole disk, a missing device node, a disk that is not
// removable (which includes the system disk), or a mounted disk. Regular
// files, and new files outside /dev, are always allowed.
func checkWriteTarget(disc imaging.Discoverer, path string, opts targetChecks) error {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Mode().IsRegular():
		return nil
	case errors.Is(err, os.ErrNotExist) && !inDeviceDir(path):
		return nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return err
	}

	if imaging.LooksLikePartition(path) {
		return fmt.Errorf("%s looks like a partition, write to the whole disk instead", path)
	}
	if err != nil {
		return fmt.Errorf("%s: no such device", path)
	}

	if opts.Force {
		warn("--force given, not checking whether %s is removable or mounted", path)
		return nil
	}

	devices, err := disc.Discover()
	if err != nil {
		return fmt.Errorf("cannot check that %s is safe to overwrite (use --force to skip): %w", path, err)
	}
	d, ok := findDevice(devices, path)
	if !ok {
		return fmt.Errorf("%s is not a removable device, refusing to overwrite it", path)
	}
	if d.Mounted() {
		if !opts.Unmount {
			return fmt.Errorf("%s is mounted at %s, unmount it first or pass --unmount", path, d.MountPoint)
		}
		return unmountDevice(disc, d)
	}
	return nil
}
