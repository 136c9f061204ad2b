package transport_test

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/mirrorctl/relook/control"
	"github.com/mirrorctl/relook/geom"
	"github.com/mirrorctl/relook/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, b []byte) []transport.Message {
	t.Helper()
	r := bytes.NewReader(b)
	var out []transport.Message
	for {
		m, err := transport.Decode(r)
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, m)
	}
}

func TestMessageSizes(t *testing.T) {
	type testCase struct {
		msg  transport.Message
		size int
	}
	testCases := []testCase{
		{msg: transport.InjectKeycode{Keycode: transport.KeycodeHome}, size: 14},
		{msg: transport.InjectTouch{PointerID: 1}, size: 32},
		{msg: transport.InjectScroll{VScroll: 1}, size: 21},
		{msg: transport.BackOrScreenOn{Action: transport.ActionUp}, size: 2},
	}
	for _, tc := range testCases {
		b, err := tc.msg.MarshalBinary()
		require.NoError(t, err)
		assert.Len(t, b, tc.size)
		assert.Equal(t, tc.msg.Type(), b[0])
	}
}

func TestTouchLayout(t *testing.T) {
	b, err := transport.InjectTouch{
		Action:    transport.ActionMove,
		PointerID: transport.LookPointerID,
		Position:  transport.Position{X: 540, Y: 960, W: 1080, H: 1920},
		Pressure:  1,
		Buttons:   transport.ButtonPrimary,
	}.MarshalBinary()
	require.NoError(t, err)

	assert.Equal(t, byte(2), b[0])
	assert.Equal(t, byte(2), b[1])
	assert.Equal(t, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xfd}, b[2:10])
	assert.Equal(t, []byte{0x00, 0x00, 0x02, 0x1c}, b[10:14])
	assert.Equal(t, []byte{0x04, 0x38, 0x07, 0x80}, b[18:22])
	assert.Equal(t, []byte{0xff, 0xff}, b[22:24])
	assert.Equal(t, []byte{0, 0, 0, 1}, b[28:32])
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := transport.Decode(bytes.NewReader([]byte{0x7f, 0, 0}))
	assert.Error(t, err)

	_, err = transport.Decode(bytes.NewReader([]byte{transport.TypeInjectKeycode, 0, 0}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

var (
	frame = geom.Size{W: 1080, H: 1920}
	show  = geom.Size{W: 540, H: 960}
)

func TestDeviceForwardsPointer(t *testing.T) {
	var buf bytes.Buffer
	d := transport.NewDevice("serial", &buf, nil, nil)

	d.MouseEvent(control.MouseEvent{Type: control.MousePress, Local: geom.PointF{X: 100, Y: 200}, Button: control.Left, Buttons: control.Left}, frame, show)
	d.MouseEvent(control.MouseEvent{Type: control.MouseMove, Local: geom.PointF{X: 110, Y: 200}, Buttons: control.Left}, frame, show)
	d.MouseEvent(control.MouseEvent{Type: control.MouseMove, Local: geom.PointF{X: 120, Y: 200}}, frame, show)
	d.MouseEvent(control.MouseEvent{Type: control.MouseRelease, Local: geom.PointF{X: 9999, Y: -5}, Button: control.Left}, frame, show)

	msgs := decodeAll(t, buf.Bytes())
	require.Len(t, msgs, 3, "hover without buttons is not forwarded")

	down := msgs[0].(transport.InjectTouch)
	assert.Equal(t, transport.ActionDown, down.Action)
	assert.Equal(t, transport.Position{X: 200, Y: 400, W: 1080, H: 1920}, down.Position)
	assert.Equal(t, transport.ButtonPrimary, down.Buttons)

	move := msgs[1].(transport.InjectTouch)
	assert.Equal(t, transport.ActionMove, move.Action)
	assert.Equal(t, int32(220), move.Position.X)

	up := msgs[2].(transport.InjectTouch)
	assert.Equal(t, transport.ActionUp, up.Action)
	assert.Equal(t, transport.Position{X: 1079, Y: 0, W: 1080, H: 1920}, up.Position, "positions are clamped to the frame")
}

func TestDeviceLookPointer(t *testing.T) {
	var buf bytes.Buffer
	d := transport.NewDevice("serial", &buf, nil, nil)
	synthetic := func(x, y float64) control.MouseEvent {
		return control.MouseEvent{Type: control.MouseMove, Local: geom.PointF{X: x, Y: y}, Global: control.SyntheticGlobal}
	}

	d.MouseEvent(synthetic(0, 0), frame, show)
	d.MouseEvent(synthetic(10, -5), frame, show)
	d.MouseEvent(synthetic(10, -5), frame, show)
	d.MouseEvent(synthetic(1000, -5), frame, show)
	d.ReleaseLook()
	d.ReleaseLook()

	msgs := decodeAll(t, buf.Bytes())
	require.Len(t, msgs, 5)

	touches := make([]transport.InjectTouch, len(msgs))
	for i, m := range msgs {
		touches[i] = m.(transport.InjectTouch)
		assert.Equal(t, transport.LookPointerID, touches[i].PointerID)
	}

	assert.Equal(t, transport.ActionDown, touches[0].Action)
	assert.Equal(t, transport.Position{X: 540, Y: 960, W: 1080, H: 1920}, touches[0].Position)

	assert.Equal(t, transport.ActionMove, touches[1].Action)
	assert.Equal(t, transport.Position{X: 560, Y: 950, W: 1080, H: 1920}, touches[1].Position)

	// Leaving the frame lifts and re-centres.
	assert.Equal(t, transport.ActionUp, touches[2].Action)
	assert.Equal(t, transport.ActionDown, touches[3].Action)
	assert.Equal(t, int32(540), touches[3].Position.X)

	assert.Equal(t, transport.ActionUp, touches[4].Action)
}

func TestDeviceKeys(t *testing.T) {
	var buf bytes.Buffer
	d := transport.NewDevice("serial", &buf, nil, nil)

	d.PostGoHome()
	d.PostGoBack()
	d.KeyEvent(control.KeyEvent{Code: 29, Pressed: true, MetaState: 1}, frame, show)
	d.WheelEvent(control.WheelEvent{Local: geom.PointF{X: 270, Y: 480}, DeltaY: -1}, frame, show)

	msgs := decodeAll(t, buf.Bytes())
	require.Len(t, msgs, 6)
	assert.Equal(t, transport.InjectKeycode{Action: transport.ActionDown, Keycode: transport.KeycodeHome}, msgs[0])
	assert.Equal(t, transport.InjectKeycode{Action: transport.ActionUp, Keycode: transport.KeycodeHome}, msgs[1])
	assert.Equal(t, transport.BackOrScreenOn{Action: transport.ActionDown}, msgs[2])
	assert.Equal(t, transport.BackOrScreenOn{Action: transport.ActionUp}, msgs[3])
	assert.Equal(t, transport.InjectKeycode{Action: transport.ActionDown, Keycode: 29, MetaState: 1}, msgs[4])

	scroll := msgs[5].(transport.InjectScroll)
	assert.Equal(t, transport.Position{X: 540, Y: 960, W: 1080, H: 1920}, scroll.Position)
	assert.InDelta(t, -1.0, scroll.VScroll, 0.01)
}

func TestCustomKeymapFlag(t *testing.T) {
	d := transport.NewDevice("serial", io.Discard, nil, nil)
	assert.False(t, d.IsCurrentCustomKeymap())
	d.SetCustomKeymap(true)
	assert.True(t, d.IsCurrentCustomKeymap())
}

func handshake(t *testing.T, clientPassword, serverPassword string) (net.Conn, net.Conn, error, error) {
	t.Helper()
	c, s := net.Pipe()
	t.Cleanup(func() {
		_ = c.Close()
		_ = s.Close()
	})

	type result struct {
		conn net.Conn
		err  error
	}
	serverDone := make(chan result, 1)
	go func() {
		conn, err := transport.Secure(s, serverPassword, false)
		if err != nil {
			_ = s.Close()
		}
		serverDone <- result{conn, err}
	}()
	client, clientErr := transport.Secure(c, clientPassword, true)
	sr := <-serverDone
	return client, sr.conn, clientErr, sr.err
}

func TestSecureRoundTrip(t *testing.T) {
	client, server, clientErr, serverErr := handshake(t, "hunter2", "hunter2")
	require.NoError(t, clientErr)
	require.NoError(t, serverErr)

	msg, err := transport.InjectKeycode{Action: transport.ActionDown, Keycode: transport.KeycodeBack}.MarshalBinary()
	require.NoError(t, err)

	go func() { _, _ = client.Write(msg) }()
	got, err := transport.Decode(server)
	require.NoError(t, err)
	assert.Equal(t, transport.InjectKeycode{Action: transport.ActionDown, Keycode: transport.KeycodeBack}, got)

	go func() { _, _ = server.Write([]byte("pong")) }()
	reply := make([]byte, 4)
	_, err = io.ReadFull(client, reply)
	require.NoError(t, err)
	assert.Equal(t, []byte("pong"), reply)
}

func TestSecureWrongPassword(t *testing.T) {
	_, _, clientErr, serverErr := handshake(t, "hunter2", "letmein")
	assert.ErrorIs(t, serverErr, transport.ErrUnauthorized)
	assert.ErrorIs(t, clientErr, transport.ErrUnauthorized)
}

func TestDeriveKey(t *testing.T) {
	_, err := transport.DeriveKey("")
	assert.Error(t, err)

	a, err := transport.DeriveKey("pw")
	require.NoError(t, err)
	b, err := transport.DeriveKey("pw")
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.Equal(t, a, b)

	s1 := transport.DeriveSessionKey(a, []byte{1}, []byte{2})
	s2 := transport.DeriveSessionKey(a, []byte{1}, []byte{3})
	assert.NotEqual(t, s1, s2)
}

func TestWrapConnRejectsBadKey(t *testing.T) {
	c, s := net.Pipe()
	defer c.Close()
	defer s.Close()
	_, err := transport.WrapConn(c, []byte{1, 2, 3}, true)
	assert.Error(t, err)
}
