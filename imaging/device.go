package imaging

import "fmt"

const (
	kb = 1 << 10
	mb = 1 << 20
	gb = 1 << 30
)

// Device represents a removable block device discovered on the system.
type Device struct {
	Path       string // e.g. /dev/sdb
	Name       string // kernel name, e.g. sdb
	SizeBytes  uint64
	SizeGB     float64
	MountPoint string // first mount point found, empty if none
}

// NewDevice builds a Device from its kernel name and raw byte size.
func NewDevice(path, name string, sizeBytes uint64, mountPoint string) Device {
	return Device{
		Path:       path,
		Name:       name,
		SizeBytes:  sizeBytes,
		SizeGB:     float64(sizeBytes) / gb,
		MountPoint: mountPoint,
	}
}

// Mounted reports whether any filesystem of the device is mounted.
func (d Device) Mounted() bool {
	return d.MountPoint != ""
}

func (d Device) String() string {
	mountInfo := "[Not mounted]"
	if d.Mounted() {
		mountInfo = fmt.Sprintf("[Mounted at %s]", d.MountPoint)
	}
	return fmt.Sprintf("%-15s %.1f GB %s", d.Path, d.SizeGB, mountInfo)
}
