package imaging

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unicode/utf16"
)

const inspectSectorSize = 512

// Scheme is the partitioning scheme found on an image.
type Scheme string

const (
	SchemeGPT  Scheme = "GPT"
	SchemeMBR  Scheme = "MBR"
	SchemeNone Scheme = "none"
)

// Partition is one entry of an image's partition table.
type Partition struct {
	Number     int
	Type       string // MBR type byte (0x0c) or GPT type GUID
	Name       string // GPT only
	FirstLBA   uint64
	Sectors    uint64
	Bootable   bool
	Logical    bool // inside an MBR extended partition
	Filesystem string
	Containers []Container
}

// Size is the partition length in bytes.
func (p Partition) Size() uint64 {
	return p.Sectors * inspectSectorSize
}

// Layout describes what an image will put on a device.
type Layout struct {
	Scheme     Scheme
	DiskGUID   string
	Partitions []Partition
	// Filesystem and Containers are set for unpartitioned images.
	Filesystem string
	Containers []Container
	// Warnings lists non-fatal inconsistencies such as CRC mismatches.
	Warnings []string
}

type gptHeader struct {
	Signature           [8]byte
	Revision            [4]byte
	HeaderSize          uint32
	CRC32               uint32
	_                   [4]byte
	CurrentLBA          uint64
	BackupLBA           uint64
	FirstUsableLBA      uint64
	LastUsableLBA       uint64
	DiskGUID            [16]byte
	PartitionEntryLBA   uint64
	NumPartEntries      uint32
	PartEntrySize       uint32
	PartEntryArrayCRC32 uint32
}

type gptPartition struct {
	TypeGUID       [16]byte
	UniqueGUID     [16]byte
	FirstLBA       uint64
	LastLBA        uint64
	AttributeFlags uint64
	PartitionName  [72]byte
}

type mbrPartition struct {
	Status      uint8
	_           [3]byte
	Type        uint8
	_           [3]byte
	FirstSector uint32
	Sectors     uint32
}

type mbrStruct struct {
	_          [446]byte
	Partitions [4]mbrPartition
	Signature  uint16
}

// InspectFile inspects a plain (uncompressed) image file.
func InspectFile(path string) (*Layout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return Inspect(f, info.Size())
}

// Inspect reads the partition table of a raw image of the given size.
func Inspect(r io.ReaderAt, size int64) (*Layout, error) {
	if size < inspectSectorSize {
		return nil, fmt.Errorf("image too small to inspect (%d bytes)", size)
	}

	var mbr mbrStruct
	if err := binary.Read(io.NewSectionReader(r, 0, inspectSectorSize), binary.LittleEndian, &mbr); err != nil {
		return nil, fmt.Errorf("reading MBR: %w", err)
	}

	if size >= 2*inspectSectorSize {
		layout, err := inspectGPT(r, size)
		if err == nil {
			return layout, nil
		}
		if !errors.Is(err, errNoGPT) {
			return nil, err
		}
	}

	if mbr.Signature == 0xAA55 && plausibleMBR(mbr) {
		return inspectMBR(r, size, mbr)
	}

	return &Layout{
		Scheme:     SchemeNone,
		Filesystem: detectFileSystem(r, 0),
		Containers: detectContainers(r, 0, size),
	}, nil
}

var errNoGPT = errors.New("no GPT header")

func inspectGPT(r io.ReaderAt, size int64) (*Layout, error) {
	headerBytes := make([]byte, inspectSectorSize)
	if _, err := r.ReadAt(headerBytes, inspectSectorSize); err != nil {
		return nil, fmt.Errorf("reading GPT header: %w", err)
	}

	var header gptHeader
	if err := binary.Read(bytes.NewReader(headerBytes), binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("parsing GPT header: %w", err)
	}
	if string(header.Signature[:]) != "EFI PART" {
		return nil, errNoGPT
	}
	if header.HeaderSize < 92 || int(header.HeaderSize) > len(headerBytes) {
		return nil, fmt.Errorf("invalid GPT header size: %d", header.HeaderSize)
	}
	if header.PartEntrySize < 128 || header.NumPartEntries > 1024 {
		return nil, fmt.Errorf("invalid GPT entry geometry: %d entries of %d bytes", header.NumPartEntries, header.PartEntrySize)
	}

	layout := &Layout{Scheme: SchemeGPT, DiskGUID: guidToString(header.DiskGUID[:])}
	if err := validateGPTHeaderCRC(headerBytes, header.HeaderSize); err != nil {
		layout.Warnings = append(layout.Warnings, err.Error())
	}

	tableBytes := uint64(header.NumPartEntries) * uint64(header.PartEntrySize)
	tableOffset := int64(header.PartitionEntryLBA * inspectSectorSize)
	if tableOffset+int64(tableBytes) > size {
		return nil, fmt.Errorf("GPT entries at LBA %d exceed image size", header.PartitionEntryLBA)
	}
	table := make([]byte, tableBytes)
	if _, err := r.ReadAt(table, tableOffset); err != nil {
		return nil, fmt.Errorf("reading GPT entries: %w", err)
	}
	if err := validateGPTEntriesCRC(table, header.PartEntryArrayCRC32); err != nil {
		layout.Warnings = append(layout.Warnings, err.Error())
	}

	for i := uint32(0); i < header.NumPartEntries; i++ {
		off := uint64(i) * uint64(header.PartEntrySize)
		var part gptPartition
		if err := binary.Read(bytes.NewReader(table[off:off+uint64(header.PartEntrySize)]), binary.LittleEndian, &part); err != nil {
			return nil, fmt.Errorf("parsing GPT entry %d: %w", i, err)
		}
		if isAllZero(part.TypeGUID[:]) || part.LastLBA < part.FirstLBA {
			continue
		}
		layout.Partitions = append(layout.Partitions, describePartition(r, Partition{
			Number:   int(i) + 1,
			Type:     guidToString(part.TypeGUID[:]),
			Name:     decodeUTF16LE(part.PartitionName[:]),
			FirstLBA: part.FirstLBA,
			Sectors:  part.LastLBA - part.FirstLBA + 1,
		}))
	}
	return layout, nil
}

// plausibleMBR rejects boot sectors of bare filesystems (FAT without a
// partition table also ends in 0x55AA) by checking the status bytes.
func plausibleMBR(mbr mbrStruct) bool {
	used := 0
	for _, p := range mbr.Partitions {
		if p.Status != 0x00 && p.Status != 0x80 {
			return false
		}
		if p.Sectors != 0 {
			used++
		}
	}
	return used > 0
}

func inspectMBR(r io.ReaderAt, size int64, mbr mbrStruct) (*Layout, error) {
	layout := &Layout{Scheme: SchemeMBR}
	number := 1
	for _, part := range mbr.Partitions {
		if part.Sectors == 0 {
			continue
		}
		layout.Partitions = append(layout.Partitions, Partition{
			Number:   number,
			Type:     fmt.Sprintf("0x%02x", part.Type),
			FirstLBA: uint64(part.FirstSector),
			Sectors:  uint64(part.Sectors),
			Bootable: part.Status == 0x80,
		})
		number++

		if !isExtendedType(part.Type) {
			last := &layout.Partitions[len(layout.Partitions)-1]
			*last = describePartition(r, *last)
			continue
		}

		logical, err := readEBRChain(r, size, part.FirstSector)
		if err != nil {
			layout.Warnings = append(layout.Warnings, fmt.Sprintf("extended partition: %v", err))
		}
		for _, lp := range logical {
			layout.Partitions = append(layout.Partitions, describePartition(r, Partition{
				Number:   number,
				Type:     fmt.Sprintf("0x%02x", lp.Type),
				FirstLBA: uint64(lp.FirstSector),
				Sectors:  uint64(lp.Sectors),
				Logical:  true,
			}))
			number++
		}
	}
	return layout, nil
}

// describePartition fills in what lives inside p.
func describePartition(r io.ReaderAt, p Partition) Partition {
	start := int64(p.FirstLBA) * inspectSectorSize
	p.Filesystem = detectFileSystem(r, start)
	p.Containers = detectContainers(r, start, int64(p.Size()))
	return p
}

// isExtendedType checks if a partition type is an extended partition type
func isExtendedType(t byte) bool {
	switch t {
	case 0x05, 0x0F, 0x85:
		return true
	default:
		return false
	}
}

func parseMBREntryFromBytes(b []byte) mbrPartition {
	return mbrPartition{
		Status:      b[0],
		Type:        b[4],
		FirstSector: binary.LittleEndian.Uint32(b[8:12]),
		Sectors:     binary.LittleEndian.Uint32(b[12:16]),
	}
}

// readEBRChain follows the extended boot record chain and returns the
// logical partitions with absolute start sectors. Entries that fall outside
// the image are dropped.
func readEBRChain(r io.ReaderAt, sizeBytes int64, baseLBA uint32) ([]mbrPartition, error) {
	var logicalPartitions []mbrPartition
	nextEBR := uint64(baseLBA)
	maxLBA := uint64(sizeBytes) / inspectSectorSize
	buf := make([]byte, inspectSectorSize)

	for hops := 0; hops < 128; hops++ {
		if _, err := r.ReadAt(buf, int64(nextEBR)*inspectSectorSize); err != nil {
			return logicalPartitions, fmt.Errorf("read EBR at LBA %d failed: %w", nextEBR, err)
		}
		if buf[510] != 0x55 || buf[511] != 0xAA {
			return logicalPartitions, fmt.Errorf("EBR signature missing at LBA %d", nextEBR)
		}

		e1 := parseMBREntryFromBytes(buf[446:462])
		e2 := parseMBREntryFromBytes(buf[462:478])

		if e1.Type != 0x00 && e1.Sectors != 0 {
			startLBA := nextEBR + uint64(e1.FirstSector)
			endLBA := startLBA + uint64(e1.Sectors) - 1
			if endLBA < maxLBA {
				logicalPartitions = append(logicalPartitions, mbrPartition{
					Status:      e1.Status,
					Type:        e1.Type,
					FirstSector: uint32(startLBA),
					Sectors:     e1.Sectors,
				})
			}
		}

		if e2.Type == 0x00 || e2.Sectors == 0 || !isExtendedType(e2.Type) {
			break
		}
		nextEBR = uint64(baseLBA) + uint64(e2.FirstSector)
	}

	return logicalPartitions, nil
}

// guidToString formats a mixed-endian GUID.
func guidToString(b []byte) string {
	if len(b) < 16 {
		return ""
	}
	d1 := binary.LittleEndian.Uint32(b[0:4])
	d2 := binary.LittleEndian.Uint16(b[4:6])
	d3 := binary.LittleEndian.Uint16(b[6:8])
	return fmt.Sprintf("%08x-%04x-%04x-%02x%02x-%02x%02x%02x%02x%02x%02x",
		d1, d2, d3,
		b[8], b[9],
		b[10], b[11], b[12], b[13], b[14], b[15],
	)
}

// decodeUTF16LE decodes a NUL-terminated UTF-16LE partition name.
func decodeUTF16LE(b []byte) string {
	if len(b)%2 != 0 {
		b = b[:len(b)-1]
	}
	u16 := make([]uint16, 0, len(b)/2)
	for i := 0; i < len(b); i += 2 {
		v := binary.LittleEndian.Uint16(b[i : i+2])
		if v == 0 {
			break
		}
		u16 = append(u16, v)
	}
	return string(utf16.Decode(u16))
}

func isAllZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

func validateGPTHeaderCRC(headerBytes []byte, headerSize uint32) error {
	origCRC := binary.LittleEndian.Uint32(headerBytes[16:20])

	tmp := make([]byte, headerSize)
	copy(tmp, headerBytes[:headerSize])
	clear(tmp[16:20])

	if calculated := crc32.ChecksumIEEE(tmp); calculated != origCRC {
		return fmt.Errorf("GPT header CRC mismatch: calculated 0x%08X, expected 0x%08X", calculated, origCRC)
	}
	return nil
}

func validateGPTEntriesCRC(entries []byte, expectedCRC uint32) error {
	if calculated := crc32.ChecksumIEEE(entries); calculated != expectedCRC {
		return fmt.Errorf("GPT entries CRC mismatch: calculated 0x%08X, expected 0x%08X", calculated, expectedCRC)
	}
	return nil
}
