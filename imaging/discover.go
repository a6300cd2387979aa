package imaging

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Discoverer scans the system for removable block devices that are safe
// imaging candidates. The boot disk is never returned.
type Discoverer interface {
	Discover() ([]Device, error)
}

// Name prefixes of virtual block devices that are never imaging candidates.
var excludePrefixes = []string{"loop", "zram", "ram"}

func isVirtualDevice(name string) bool {
	for _, prefix := range excludePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// parentDevicePath collapses a partition node to its whole-disk node:
// /dev/sda1 -> /dev/sda, /dev/nvme0n1p2 -> /dev/nvme0n1. Whole disks are
// returned unchanged.
func parentDevicePath(path string) string {
	dir, name := filepath.Split(path)
	return dir + parentDeviceName(name)
}

func parentDeviceName(name string) string {
	switch {
	case hasAnyPrefix(name, "nvme", "mmcblk", "loop", "nbd", "md"):
		// <disk>p<N>, where the disk name itself ends in a digit
		i := strings.LastIndex(name, "p")
		if i > 0 && i < len(name)-1 && isDigits(name[i+1:]) && isDigits(name[i-1:i]) {
			return name[:i]
		}
		return name
	case hasAnyPrefix(name, "sd", "vd", "hd", "xvd"):
		trimmed := strings.TrimRight(name, "0123456789")
		if trimmed == "" {
			return name
		}
		return trimmed
	default:
		return name
	}
}

// LooksLikePartition reports whether path names a partition rather than a
// whole disk.
func LooksLikePartition(path string) bool {
	name := filepath.Base(path)
	return parentDeviceName(name) != name
}

// SameDisk reports whether a and b live on the same physical disk.
func SameDisk(a, b string) bool {
	return parentDevicePath(a) == parentDevicePath(b)
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// mountEntry is one line of /proc/self/mountinfo.
type mountEntry struct {
	MajorMinor string
	MountPoint string
	FSType     string
	Source     string
}

// readMountInfo parses a mountinfo file, e.g. /proc/self/mountinfo.
func readMountInfo(path string) ([]mountEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMountInfo(f)
}

func parseMountInfo(r io.Reader) ([]mountEntry, error) {
	var mounts []mountEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), " - ", 2)
		if len(parts) < 2 {
			continue
		}

		beforeFields := strings.Fields(parts[0])
		if len(beforeFields) < 5 {
			continue
		}
		afterFields := strings.Fields(parts[1])
		if len(afterFields) < 2 {
			continue
		}

		mounts = append(mounts, mountEntry{
			MajorMinor: beforeFields[2],
			MountPoint: unescapeMountField(beforeFields[4]),
			FSType:     afterFields[0],
			Source:     unescapeMountField(afterFields[1]),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return mounts, nil
}

// unescapeMountField decodes the octal escapes (\040 for space etc.) the
// kernel uses in mountinfo.
func unescapeMountField(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// mountPointForDevice returns the first mount point whose source device
// name starts with name (sdb matches sdb and sdb1), or "" when none does.
func mountPointForDevice(mounts []mountEntry, name string) string {
	for _, m := range mounts {
		if !strings.HasPrefix(m.Source, "/dev/") || m.MountPoint == "" {
			continue
		}
		if strings.HasPrefix(filepath.Base(m.Source), name) {
			return m.MountPoint
		}
	}
	return ""
}

// rootMount returns the mount visible at /. Later entries stack on top of
// earlier ones, so the last match wins.
func rootMount(mounts []mountEntry) (mountEntry, error) {
	for i := len(mounts) - 1; i >= 0; i-- {
		if mounts[i].MountPoint == "/" {
			return mounts[i], nil
		}
	}
	return mountEntry{}, fmt.Errorf("no mount entry for /")
}
