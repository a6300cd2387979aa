//go:build linux

package imaging

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// sysfsSectorSize is the unit of /sys/block/<dev>/size, independent of the
// device's logical block size.
const sysfsSectorSize = 512

// SysfsDiscoverer enumerates removable disks from sysfs and the live mount
// table.
type SysfsDiscoverer struct {
	SysBlockDir    string // /sys/block
	SysDevBlockDir string // /sys/dev/block
	MountInfoPath  string // /proc/self/mountinfo
	Logger         zerolog.Logger
}

// NewDiscoverer returns the discoverer for the running platform.
func NewDiscoverer(logger zerolog.Logger) Discoverer {
	return &SysfsDiscoverer{
		SysBlockDir:    "/sys/block",
		SysDevBlockDir: "/sys/dev/block",
		MountInfoPath:  "/proc/self/mountinfo",
		Logger:         logger,
	}
}

func (d *SysfsDiscoverer) Discover() ([]Device, error) {
	mounts, err := readMountInfo(d.MountInfoPath)
	if err != nil {
		return nil, &DiscoveryError{Kind: DiscoveryIO, Err: fmt.Errorf("reading mount table: %w", err)}
	}

	systemDisk, err := d.systemDiskName(mounts)
	if err != nil {
		return nil, &DiscoveryError{Kind: DiscoverySystemDriveUnknown, Err: fmt.Errorf("%w: %v", ErrSystemDriveUnknown, err)}
	}
	d.Logger.Debug().Str("system_disk", systemDisk).Msg("excluding system disk")

	blockDevices, err := os.ReadDir(d.SysBlockDir)
	if err != nil {
		return nil, &DiscoveryError{Kind: DiscoveryIO, Err: fmt.Errorf("reading %s: %w", d.SysBlockDir, err)}
	}

	var devices []Device
	for _, bd := range blockDevices {
		devName := bd.Name()

		if isVirtualDevice(devName) || devName == systemDisk {
			continue
		}

		if removable, err := d.readAttr(devName, "removable"); err != nil || removable != "1" {
			continue
		}

		sectors, err := d.readUintAttr(devName, "size")
		if err != nil || sectors == 0 {
			continue
		}

		devices = append(devices, NewDevice(
			"/dev/"+devName,
			devName,
			sectors*sysfsSectorSize,
			mountPointForDevice(mounts, devName),
		))
	}

	d.Logger.Debug().Int("count", len(devices)).Msg("removable devices discovered")
	return devices, nil
}

// systemDiskName returns the kernel name of the whole disk backing /.
func (d *SysfsDiscoverer) systemDiskName(mounts []mountEntry) (string, error) {
	root, err := rootMount(mounts)
	if err != nil {
		return "", err
	}

	var name string
	if strings.HasPrefix(root.Source, "/dev/") && root.Source != "/dev/root" {
		source := root.Source
		if resolved, err := filepath.EvalSymlinks(source); err == nil {
			source = resolved
		}
		name = filepath.Base(source)
	} else {
		// /dev/root, overlay roots etc.: go through the device number.
		target, err := os.Readlink(filepath.Join(d.SysDevBlockDir, root.MajorMinor))
		if err != nil {
			return "", fmt.Errorf("root %q (%s) has no block device: %w", root.Source, root.MajorMinor, err)
		}
		name, err = diskFromSysfsLink(target)
		if err != nil {
			return "", err
		}
	}

	return d.wholeDisk(name, 0), nil
}

// diskFromSysfsLink extracts the whole-disk name from a /sys/dev/block link
// target such as ../../devices/pci0000:00/.../block/sda/sda2.
func diskFromSysfsLink(target string) (string, error) {
	parts := strings.Split(filepath.ToSlash(target), "/")
	for i, p := range parts {
		if p == "block" && i+1 < len(parts) {
			return parts[i+1], nil
		}
	}
	return "", fmt.Errorf("cannot find disk in sysfs path %q", target)
}

// wholeDisk maps a partition or stacked device (dm-*, md*) down to the disk
// listed under SysBlockDir that ultimately holds it.
func (d *SysfsDiscoverer) wholeDisk(name string, depth int) string {
	if _, err := os.Stat(filepath.Join(d.SysBlockDir, name)); err != nil {
		name = parentDeviceName(name)
	}
	if depth > 8 {
		return name
	}
	slaves, err := os.ReadDir(filepath.Join(d.SysBlockDir, name, "slaves"))
	if err != nil || len(slaves) == 0 {
		return name
	}
	return d.wholeDisk(slaves[0].Name(), depth+1)
}

func (d *SysfsDiscoverer) readAttr(devName, attr string) (string, error) {
	data, err := os.ReadFile(filepath.Join(d.SysBlockDir, devName, attr))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (d *SysfsDiscoverer) readUintAttr(devName, attr string) (uint64, error) {
	s, err := d.readAttr(devName, attr)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(s, 10, 64)
}
