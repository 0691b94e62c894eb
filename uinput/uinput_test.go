package uinput

import (
	"os"
	"path/filepath"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	wasd "github.com/luhtfiimanal/serial-wasd"
)

func TestEncodeEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		typ   uint16
		code  uint16
		value int32
	}{
		{name: "key press", typ: EvKey, code: wasd.KeyW.Code(), value: 1},
		{name: "key release", typ: EvKey, code: wasd.KeyD.Code(), value: 0},
		{name: "sync", typ: EvSyn, code: SynReport, value: 0},
		{name: "negative value", typ: 3, code: 1, value: -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			buf := EncodeEvent(tt.typ, tt.code, tt.value)
			require.Len(t, buf, EventSize)
			assert.Equal(t, make([]byte, timevalSize), buf[:timevalSize], "timestamp left for the kernel")

			typ, code, value, ok := DecodeEvent(buf)
			require.True(t, ok)
			assert.Equal(t, tt.typ, typ)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.value, value)
		})
	}

	_, _, _, ok := DecodeEvent(make([]byte, EventSize-1))
	assert.False(t, ok)
}

func TestSetupLayout(t *testing.T) {
	t.Parallel()
	// sizeof(struct uinput_setup) is encoded in UI_DEV_SETUP.
	assert.EqualValues(t, (uiDevSetup>>16)&0x3fff, unsafe.Sizeof(uinputSetup{}))
}

func TestRegistrar_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewRegistrar(filepath.Join(t.TempDir(), "missing")).Register(wasd.DefaultIdentity, wasd.Keys())
	require.Error(t, err)

	// A regular file accepts open but rejects every uinput ioctl.
	path := filepath.Join(t.TempDir(), "uinput")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	_, err = NewRegistrar(path).Register(wasd.DefaultIdentity, wasd.Keys())
	require.ErrorIs(t, err, unix.ENOTTY)
}

func TestNewRegistrar_DefaultPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, DefaultPath, NewRegistrar("").Path)
	assert.Equal(t, "/tmp/x", NewRegistrar("/tmp/x").Path)
}

func TestKeyboard_WritesFrames(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events")
	f, err := os.Create(path)
	require.NoError(t, err)

	kb := newKeyboard(f, int(f.Fd()), "test")
	require.NoError(t, wasd.Emit(kb, wasd.Command{Key: wasd.KeyA, Pressed: true}))
	require.NoError(t, wasd.Emit(kb, wasd.Command{Key: wasd.KeyA}))

	// Not a uinput node, so the destroy ioctl fails, but the file is released.
	assert.Error(t, kb.Unregister())
	assert.NoError(t, kb.Unregister())
	assert.ErrorIs(t, kb.ReportKey(wasd.KeyA.Code(), true), ErrUnregistered)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 4*EventSize)

	type ev struct {
		typ, code uint16
		value     int32
	}
	var got []ev
	for off := 0; off < len(data); off += EventSize {
		typ, code, value, ok := DecodeEvent(data[off:])
		require.True(t, ok)
		got = append(got, ev{typ, code, value})
	}
	assert.Equal(t, []ev{
		{EvKey, wasd.KeyA.Code(), 1},
		{EvSyn, SynReport, 0},
		{EvKey, wasd.KeyA.Code(), 0},
		{EvSyn, SynReport, 0},
	}, got)
}

func TestRegistrar_Uinput(t *testing.T) {
	f, err := os.OpenFile(DefaultPath, os.O_WRONLY, 0)
	if err != nil {
		t.Skipf("uinput not available: %v", err)
	}
	f.Close()

	dev, err := NewRegistrar("").Register(wasd.Identity{Name: "serial-wasd-test", BusType: wasd.BusRS232}, wasd.Keys())
	require.NoError(t, err)
	require.NoError(t, wasd.Emit(dev, wasd.Command{Key: wasd.KeyS, Pressed: true}))
	require.NoError(t, wasd.Emit(dev, wasd.Command{Key: wasd.KeyS}))
	require.NoError(t, dev.Unregister())
}
