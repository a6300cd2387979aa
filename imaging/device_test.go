package imaging

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceString(t *testing.T) {
	unmounted := NewDevice("/dev/sdb", "sdb", 16*gb, "")
	assert.False(t, unmounted.Mounted())
	assert.Equal(t, "/dev/sdb        16.0 GB [Not mounted]", unmounted.String())

	mounted := NewDevice("/dev/mmcblk0", "mmcblk0", 31914983424, "/media/sd card")
	assert.True(t, mounted.Mounted())
	assert.Equal(t, "/dev/mmcblk0    29.7 GB [Mounted at /media/sd card]", mounted.String())
}

func TestNewDeviceSize(t *testing.T) {
	d := NewDevice("/dev/sdc", "sdc", 512*mb, "")
	assert.Equal(t, uint64(512*mb), d.SizeBytes)
	assert.InDelta(t, 0.5, d.SizeGB, 1e-9)
}

func TestAlignedBuffer(t *testing.T) {
	for _, align := range []int{1, 512, 4096} {
		buf := alignedBuffer(3*align+1, align)
		require.Len(t, buf, 3*align+1)
		assert.Equal(t, 3*align+1, cap(buf))
		assert.True(t, isAligned(buf, align), "align %d", align)
	}
}

func TestRoundUpAndPad(t *testing.T) {
	assert.Equal(t, 0, roundUp(0, 512))
	assert.Equal(t, 512, roundUp(1, 512))
	assert.Equal(t, 512, roundUp(512, 512))
	assert.Equal(t, 1024, roundUp(513, 512))
	assert.Equal(t, 7, roundUp(7, 1))

	buf := make([]byte, 1024)
	for i := range buf {
		buf[i] = 0xAA
	}
	n := padToBlock(buf, 700, 512)
	assert.Equal(t, 1024, n)
	assert.Equal(t, byte(0xAA), buf[699])
	assert.True(t, isAllZero(buf[700:1024]))
}

func TestFlag(t *testing.T) {
	var nilFlag *Flag
	assert.False(t, nilFlag.Stopped())

	f := NewFlag()
	assert.False(t, f.Stopped())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.Stop()
	}()
	wg.Wait()

	assert.True(t, f.Stopped())
	f.Stop()
	assert.True(t, f.Stopped())
}

func TestNotifyInterruptDetach(t *testing.T) {
	f := NewFlag()
	stop := NotifyInterrupt(f)
	stop()
	assert.False(t, f.Stopped())
}

func TestProgressFuncs(t *testing.T) {
	var got []string
	p := ProgressFuncs{
		OnWriteStart:    func(total uint64) { got = append(got, "start") },
		OnWriteProgress: func(done uint64) { got = append(got, "update") },
	}
	p.Start(StageWrite, 10)
	p.Update(StageWrite, 5)
	p.Start(StageVerify, 10) // unset callbacks are ignored
	p.Update(StageRead, 1)

	assert.Equal(t, []string{"start", "update"}, got)
	assert.Equal(t, "Write", StageWrite.String())
}
