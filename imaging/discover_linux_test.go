//go:build linux

package imaging

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDisk struct {
	name      string
	removable string
	sectors   string
	slaves    []string
}

// fakeSysfs lays out a /sys/block and /sys/dev/block tree plus a mountinfo
// file under a temp dir and returns a discoverer reading from it.
func fakeSysfs(t *testing.T, disks []fakeDisk, mountinfo string) *SysfsDiscoverer {
	t.Helper()
	root := t.TempDir()
	d := &SysfsDiscoverer{
		SysBlockDir:    filepath.Join(root, "sys", "block"),
		SysDevBlockDir: filepath.Join(root, "sys", "dev", "block"),
		MountInfoPath:  filepath.Join(root, "mountinfo"),
		Logger:         zerolog.Nop(),
	}
	require.NoError(t, os.MkdirAll(d.SysDevBlockDir, 0o755))

	for _, disk := range disks {
		dir := filepath.Join(d.SysBlockDir, disk.name)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "slaves"), 0o755))
		writeFile(t, filepath.Join(dir, "removable"), []byte(disk.removable+"\n"))
		writeFile(t, filepath.Join(dir, "size"), []byte(disk.sectors+"\n"))
		for _, s := range disk.slaves {
			writeFile(t, filepath.Join(dir, "slaves", s), nil)
		}
	}
	writeFile(t, d.MountInfoPath, []byte(mountinfo))
	return d
}

func deviceNames(devices []Device) []string {
	names := make([]string, 0, len(devices))
	for _, d := range devices {
		names = append(names, d.Name)
	}
	return names
}

var standardDisks = []fakeDisk{
	{name: "sdq", removable: "1", sectors: "15630336"}, // boots from USB
	{name: "sdr", removable: "1", sectors: "2097152"},
	{name: "sds", removable: "1", sectors: "0"},
	{name: "sdt", removable: "0", sectors: "976773168"},
	{name: "loop0", removable: "1", sectors: "1024"},
	{name: "mmcblk9", removable: "1", sectors: "62333952"},
}

func TestDiscoverExcludesSystemDisk(t *testing.T) {
	mountinfo := strings.Join([]string{
		"22 1 8:258 / / rw,relatime shared:1 - ext4 /dev/sdq2 rw",
		"23 22 0:5 / /proc rw shared:12 - proc proc rw",
		"40 22 8:273 / /media/usb rw,nosuid shared:2 - vfat /dev/sdr1 rw",
	}, "\n")
	d := fakeSysfs(t, standardDisks, mountinfo)

	devices, err := d.Discover()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sdr", "mmcblk9"}, deviceNames(devices))

	for _, dev := range devices {
		assert.Greater(t, dev.SizeGB, 0.0)
		assert.Equal(t, "/dev/"+dev.Name, dev.Path)
		switch dev.Name {
		case "sdr":
			assert.Equal(t, uint64(gb), dev.SizeBytes)
			assert.Equal(t, "/media/usb", dev.MountPoint)
		case "mmcblk9":
			assert.False(t, dev.Mounted())
		}
	}
}

func TestDiscoverResolvesRootThroughDeviceNumber(t *testing.T) {
	mountinfo := "22 1 179:2 / / rw,relatime shared:1 - ext4 /dev/root rw\n"
	d := fakeSysfs(t, standardDisks, mountinfo)
	require.NoError(t, os.Symlink(
		"../../devices/platform/soc/mmc0/mmc_host/mmc0/block/mmcblk9/mmcblk9p2",
		filepath.Join(d.SysDevBlockDir, "179:2"),
	))

	devices, err := d.Discover()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sdq", "sdr"}, deviceNames(devices))
}

func TestDiscoverFollowsStackedDevices(t *testing.T) {
	disks := append([]fakeDisk{{name: "dm-0", removable: "0", sectors: "100", slaves: []string{"sdr2"}}}, standardDisks...)
	mountinfo := "22 1 253:0 / / rw shared:1 - ext4 /dev/dm-0 rw\n"
	d := fakeSysfs(t, disks, mountinfo)

	assert.Equal(t, "sdr", d.wholeDisk("dm-0", 0))

	devices, err := d.Discover()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"sdq", "mmcblk9"}, deviceNames(devices))
}

func TestDiscoverSystemDriveUnknown(t *testing.T) {
	tests := map[string]string{
		"no root entry":          "23 22 0:5 / /proc rw shared:12 - proc proc rw\n",
		"overlay without block":  "22 1 0:33 / / rw shared:1 - overlay overlay rw\n",
		"dev root without sysfs": "22 1 179:2 / / rw shared:1 - ext4 /dev/root rw\n",
	}
	for name, mountinfo := range tests {
		t.Run(name, func(t *testing.T) {
			d := fakeSysfs(t, standardDisks, mountinfo)
			_, err := d.Discover()
			require.ErrorIs(t, err, ErrSystemDriveUnknown)

			var discErr *DiscoveryError
			require.True(t, errors.As(err, &discErr))
			assert.Equal(t, DiscoverySystemDriveUnknown, discErr.Kind)
		})
	}
}

func TestDiscoverMissingMountTable(t *testing.T) {
	d := fakeSysfs(t, standardDisks, "")
	d.MountInfoPath = filepath.Join(t.TempDir(), "absent")

	_, err := d.Discover()
	var discErr *DiscoveryError
	require.True(t, errors.As(err, &discErr))
	assert.Equal(t, DiscoveryIO, discErr.Kind)
}

func TestDiskFromSysfsLink(t *testing.T) {
	name, err := diskFromSysfsLink("../../devices/pci0000:00/0000:00:14.0/usb2/block/sdb/sdb1")
	require.NoError(t, err)
	assert.Equal(t, "sdb", name)

	_, err = diskFromSysfsLink("../../devices/virtual/misc/foo")
	assert.Error(t, err)
}
