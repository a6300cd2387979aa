package imaging

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// ContainerKind names a volume manager or encryption layer found inside a
// partition.
type ContainerKind string

const (
	ContainerLUKS   ContainerKind = "LUKS"
	ContainerLVM2PV ContainerKind = "LVM2 PV"
	ContainerMDRAID ContainerKind = "MD RAID"
)

// Container is a detected container header.
type Container struct {
	Kind   ContainerKind
	Offset int64 // absolute byte offset of the header in the image
	Detail string
}

func (c Container) String() string {
	if c.Detail == "" {
		return string(c.Kind)
	}
	return fmt.Sprintf("%s (%s)", c.Kind, c.Detail)
}

const mdraidMagic = 0xA92B4EFC

func detectLUKS(r io.ReaderAt, offset int64) (Container, bool) {
	buf := make([]byte, 8)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return Container{}, false
	}
	if !bytes.Equal(buf[0:6], []byte{'L', 'U', 'K', 'S', 0xBA, 0xBE}) {
		return Container{}, false
	}

	ver := binary.BigEndian.Uint16(buf[6:8])
	detail := fmt.Sprintf("version %d", ver)
	if ver != 1 && ver != 2 {
		detail = fmt.Sprintf("unexpected version %d", ver)
	}
	return Container{Kind: ContainerLUKS, Offset: offset, Detail: detail}, true
}

// detectLVM2PV looks for the physical volume label, which may sit in any of
// the first four sectors.
func detectLVM2PV(r io.ReaderAt, offset int64) (Container, bool) {
	buf := make([]byte, inspectSectorSize)
	for sector := int64(0); sector < 4; sector++ {
		off := offset + sector*inspectSectorSize
		if _, err := r.ReadAt(buf, off); err != nil {
			continue
		}
		if !bytes.HasPrefix(buf, []byte("LABELONE")) {
			continue
		}
		detail := ""
		if bytes.Contains(buf, []byte("LVM2 001")) {
			detail = "LVM2 001"
		}
		return Container{Kind: ContainerLVM2PV, Offset: off, Detail: detail}, true
	}
	return Container{}, false
}

// detectMDRAID checks the v1.1/v1.2 superblock slots at the start of the
// member and the v0.90/v1.0 slots near its end.
func detectMDRAID(r io.ReaderAt, offset, length int64) (Container, bool) {
	candidates := []int64{0, 4096}
	if length > 0 {
		// v0.90: last 64 KiB-aligned block; v1.0: 8 KiB from the end.
		candidates = append(candidates, (length&^0xFFFF)-0x10000, (length-8192)&^0xFFF)
	}

	buf := make([]byte, 16)
	for _, off := range candidates {
		if off < 0 || (length > 0 && off+int64(len(buf)) > length) {
			continue
		}
		if _, err := r.ReadAt(buf, offset+off); err != nil {
			continue
		}
		if binary.LittleEndian.Uint32(buf[0:4]) != mdraidMagic && binary.BigEndian.Uint32(buf[0:4]) != mdraidMagic {
			continue
		}
		major := binary.LittleEndian.Uint32(buf[4:8])
		return Container{Kind: ContainerMDRAID, Offset: offset + off, Detail: fmt.Sprintf("metadata %d", major)}, true
	}
	return Container{}, false
}

// detectContainers reports every container header found in the partition
// spanning [offset, offset+length).
func detectContainers(r io.ReaderAt, offset, length int64) []Container {
	var found []Container
	if c, ok := detectLUKS(r, offset); ok {
		found = append(found, c)
	}
	if c, ok := detectLVM2PV(r, offset); ok {
		found = append(found, c)
	}
	if c, ok := detectMDRAID(r, offset, length); ok {
		found = append(found, c)
	}
	return found
}
