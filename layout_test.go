package main

import (
	"bytes"
	"testing"

	"dskimg/imaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintLayoutMBR(t *testing.T) {
	layout := &imaging.Layout{
		Scheme: imaging.SchemeMBR,
		Partitions: []imaging.Partition{
			{Number: 1, Type: "0x0c", FirstLBA: 2048, Sectors: 2048, Bootable: true, Filesystem: "FAT32"},
			{
				Number: 5, Type: "0x83", FirstLBA: 6144, Sectors: 4096, Logical: true, Filesystem: "ext4",
				Containers: []imaging.Container{{Kind: imaging.ContainerLUKS, Detail: "version 2"}},
			},
		},
		Warnings: []string{"extended partition chain loops"},
	}

	var out bytes.Buffer
	require.NoError(t, printLayout(&out, layout))
	assert.Equal(t, "Partition table: MBR\n"+
		"  1. Type: 0x0c, FirstSector: 2048, Sectors: 2048, FileSystem: FAT32, Total: 1.00 MB, bootable\n"+
		"  5. (logical) Type: 0x83, FirstSector: 6144, Sectors: 4096, FileSystem: ext4, Total: 2.00 MB, Container: LUKS (version 2)\n"+
		"  Warning: extended partition chain loops\n",
		out.String())
}

func TestPrintLayoutUnpartitioned(t *testing.T) {
	layout := &imaging.Layout{
		Scheme:     imaging.SchemeNone,
		Filesystem: "SquashFS",
		Containers: []imaging.Container{{Kind: imaging.ContainerLVM2PV, Detail: "LVM2 001"}},
	}

	var out bytes.Buffer
	require.NoError(t, printLayout(&out, layout))
	assert.Equal(t, "Partition table: none\nFilesystem: SquashFS\nContainer: LVM2 PV (LVM2 001)\n", out.String())
}

func TestPrintLayoutGPT(t *testing.T) {
	layout := &imaging.Layout{
		Scheme:   imaging.SchemeGPT,
		DiskGUID: "12345678-1234-1234-abcd-010203040506",
		Partitions: []imaging.Partition{
			{Number: 1, Type: "0fc63daf-8483-4772-8e79-3d69d8477de4", Name: "root", FirstLBA: 34, Sectors: 2 * gb / 512},
		},
	}

	var out bytes.Buffer
	require.NoError(t, printLayout(&out, layout))
	assert.Contains(t, out.String(), "Partition table: GPT (disk 12345678-1234-1234-abcd-010203040506)\n")
	assert.Contains(t, out.String(), "Name: root, FirstSector: 34")
	assert.Contains(t, out.String(), "Total: 2.00 GB")
}
