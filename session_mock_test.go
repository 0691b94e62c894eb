package wasd_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	wasd "github.com/luhtfiimanal/serial-wasd"
	"github.com/luhtfiimanal/serial-wasd/mocks"
)

func TestSession_LifecycleOrder(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	reg := mocks.NewMockRegistrar(ctrl)
	dev := mocks.NewMockDevice(ctrl)
	tr := mocks.NewMockTransport(ctrl)

	var bound wasd.Receiver
	gomock.InOrder(
		reg.EXPECT().Register(wasd.DefaultIdentity, wasd.Keys()).Return(dev, nil),
		tr.EXPECT().Bind(gomock.Any()).DoAndReturn(func(r wasd.Receiver) error {
			bound = r
			return nil
		}),
		dev.EXPECT().ReportKey(wasd.KeyS.Code(), true).Return(nil),
		dev.EXPECT().Sync().Return(nil),
		tr.EXPECT().Unbind(),
		dev.EXPECT().Unregister().Return(nil),
	)

	s, err := wasd.Open(tr, reg, wasd.Options{})
	require.NoError(t, err)
	require.Same(t, s, bound)

	bound.Receive([]byte("S1\r\n"))
	require.NoError(t, s.Close())

	// No further calls are expected on the device.
	bound.Receive([]byte("S0\n"))
}

func TestEmit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		setup   func(s *mocks.MockSink)
		wantErr bool
	}{
		{
			name: "report then sync",
			setup: func(s *mocks.MockSink) {
				gomock.InOrder(
					s.EXPECT().ReportKey(wasd.KeyD.Code(), false).Return(nil),
					s.EXPECT().Sync().Return(nil),
				)
			},
		},
		{
			name: "report failure skips sync",
			setup: func(s *mocks.MockSink) {
				s.EXPECT().ReportKey(wasd.KeyD.Code(), false).Return(errors.New("closed"))
			},
			wantErr: true,
		},
		{
			name: "sync failure",
			setup: func(s *mocks.MockSink) {
				s.EXPECT().ReportKey(wasd.KeyD.Code(), false).Return(nil)
				s.EXPECT().Sync().Return(errors.New("closed"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			sink := mocks.NewMockSink(ctrl)
			tt.setup(sink)

			err := wasd.Emit(sink, wasd.Command{Key: wasd.KeyD})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestManager(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	reg := mocks.NewMockRegistrar(ctrl)
	dev1 := mocks.NewMockDevice(ctrl)
	dev2 := mocks.NewMockDevice(ctrl)
	tr1 := mocks.NewMockTransport(ctrl)
	tr2 := mocks.NewMockTransport(ctrl)

	reg.EXPECT().Register(gomock.Any(), gomock.Any()).Return(dev1, nil)
	reg.EXPECT().Register(gomock.Any(), gomock.Any()).Return(dev2, nil)
	tr1.EXPECT().Bind(gomock.Any()).Return(nil)
	tr2.EXPECT().Bind(gomock.Any()).Return(nil)

	mgr := wasd.NewManager(reg, wasd.Options{})
	s1, err := mgr.Open(tr1)
	require.NoError(t, err)
	s2, err := mgr.Open(tr2)
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, 2, mgr.Len())
	assert.Len(t, mgr.Sessions(), 2)

	// Sessions are independent: each feeds its own device.
	dev1.EXPECT().ReportKey(wasd.KeyW.Code(), true).Return(nil)
	dev1.EXPECT().Sync().Return(nil)
	dev2.EXPECT().ReportKey(wasd.KeyA.Code(), true).Return(nil)
	dev2.EXPECT().Sync().Return(nil)
	s1.Receive([]byte("W1\n"))
	s2.Receive([]byte("A1\n"))

	tr1.EXPECT().Unbind()
	dev1.EXPECT().Unregister().Return(nil)
	require.NoError(t, mgr.Close(s1))
	assert.Equal(t, 1, mgr.Len())

	tr2.EXPECT().Unbind()
	dev2.EXPECT().Unregister().Return(errors.New("busy"))
	err = mgr.CloseAll()
	require.Error(t, err)
	assert.Equal(t, 0, mgr.Len())
	assert.Equal(t, wasd.StateClosed, s2.State())
}

func TestManager_OpenFailure(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	reg := mocks.NewMockRegistrar(ctrl)
	tr := mocks.NewMockTransport(ctrl)
	reg.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, errors.New("no uinput"))

	mgr := wasd.NewManager(reg, wasd.Options{})
	_, err := mgr.Open(tr)
	require.ErrorIs(t, err, wasd.ErrRegister)
	assert.Zero(t, mgr.Len())
}
