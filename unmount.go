package main

import (
	"fmt"
	"os/exec"
	"strings"

	"dskimg/imaging"
)

// unmountFn is swapped out in tests.
var unmountFn = unmountPath

// unmountPath unmounts one mount point with umount, falling back to
// diskutil where umount is not enough (macOS).
func unmountPath(mountPoint string) error {
	output, err := exec.Command("umount", mountPoint).CombinedOutput()
	if err == nil {
		return nil
	}
	if out, derr := exec.Command("diskutil", "unmount", mountPoint).CombinedOutput(); derr == nil {
		return nil
	} else if len(out) > 0 {
		output = out
	}
	return fmt.Errorf("failed to unmount %s: %s", mountPoint, strings.TrimSpace(string(output)))
}

// unmountDevice unmounts every filesystem of d, rescanning after each one
// since a disk can have several partitions mounted.
func unmountDevice(disc imaging.Discoverer, d imaging.Device) error {
	for range 16 {
		if !d.Mounted() {
			return nil
		}
		warn("unmounting %s", d.MountPoint)
		if err := unmountFn(d.MountPoint); err != nil {
			return err
		}

		devices, err := disc.Discover()
		if err != nil {
			return err
		}
		next, ok := findDevice(devices, d.Path)
		if !ok {
			return fmt.Errorf("%s disappeared while unmounting", d.Path)
		}
		d = next
	}
	return fmt.Errorf("%s is still mounted at %s", d.Path, d.MountPoint)
}
