package imaging

import (
	"bytes"
	"encoding/binary"
	"io"
)

type fileSystemSignature struct {
	Name      string
	Signature []byte
	Offset    int64
}

// filesystemList holds the superblock magics checked, in order, at the start
// of a partition. More specific signatures come first.
var filesystemList = []fileSystemSignature{
	{Name: "APFS", Signature: []byte("NXSB"), Offset: 0x20},
	{Name: "Btrfs", Signature: []byte("_BHRfS_M"), Offset: 0x10040},
	{Name: "exFAT", Signature: []byte("EXFAT   "), Offset: 3},
	{Name: "NTFS", Signature: []byte("NTFS    "), Offset: 3},
	{Name: "FAT32", Signature: []byte("FAT32   "), Offset: 0x52},
	{Name: "FAT16", Signature: []byte("FAT16   "), Offset: 0x36},
	{Name: "FAT12", Signature: []byte("FAT12   "), Offset: 0x36},
	{Name: "F2FS", Signature: []byte{0x10, 0x20, 0xF5, 0xF2}, Offset: 0x400},
	{Name: "HFS+", Signature: []byte{'H', '+', 0x00, 0x04}, Offset: 0x400},
	{Name: "HFSX", Signature: []byte{'H', 'X', 0x00, 0x05}, Offset: 0x400},
	{Name: "ISO9660", Signature: []byte("CD001"), Offset: 0x8001},
	{Name: "UDF", Signature: []byte("NSR0"), Offset: 0x8801},
	{Name: "JFS", Signature: []byte("JFS1"), Offset: 0x8000},
	{Name: "Swap (Linux)", Signature: []byte("SWAPSPACE2"), Offset: 0xFF6},
	{Name: "LVM", Signature: []byte("LABELONE"), Offset: 0x200},
	{Name: "LUKS", Signature: []byte{'L', 'U', 'K', 'S', 0xBA, 0xBE}, Offset: 0},
	{Name: "NILFS2", Signature: []byte{0x34, 0x34}, Offset: 0x406},
	{Name: "ReiserFS", Signature: []byte("ReIsEr2Fs"), Offset: 0x10034},
	{Name: "SquashFS", Signature: []byte("hsqs"), Offset: 0},
	{Name: "EROFS", Signature: []byte{0xE2, 0xE1, 0xF5, 0xE0}, Offset: 0x400},
	{Name: "XFS", Signature: []byte("XFSB"), Offset: 0},
}

// detectFileSystem names the filesystem starting at offset, or "Unknown".
func detectFileSystem(r io.ReaderAt, offset int64) string {
	for _, fs := range filesystemList {
		buf := make([]byte, len(fs.Signature))
		if _, err := r.ReadAt(buf, offset+fs.Offset); err != nil {
			continue
		}
		if bytes.Equal(buf, fs.Signature) {
			return fs.Name
		}
	}
	return detectExtFilesystem(r, offset)
}

// detectExtFilesystem tells ext2/3/4 apart by the superblock feature flags.
func detectExtFilesystem(r io.ReaderAt, offset int64) string {
	const superblockOffset = 0x400
	buffer := make([]byte, 0x68)

	if _, err := r.ReadAt(buffer, offset+superblockOffset); err != nil {
		return "Unknown"
	}

	magic := binary.LittleEndian.Uint16(buffer[0x38:0x3a])
	if magic != 0xEF53 {
		return "Unknown"
	}

	compat := binary.LittleEndian.Uint32(buffer[0x5c:0x60])
	incompat := binary.LittleEndian.Uint32(buffer[0x60:0x64])
	switch {
	case incompat&0x40 != 0: // extents
		return "ext4"
	case compat&0x4 != 0: // has_journal
		return "ext3"
	default:
		return "ext2"
	}
}
