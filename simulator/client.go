package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/rpc"
	"reflect"
	"time"

	"github.com/rs/zerolog"
	"github.com/ugorji/go/codec"
	"github.com/zeu5/driving-rl/types"
)

const (
	DefaultAddr    = "127.0.0.1:41451"
	DefaultTimeout = 3600 * time.Second
)

// Client talks msgpack-rpc to the simulator's car API
type Client struct {
	addr    string
	timeout time.Duration
	rpc     *rpc.Client
	logger  zerolog.Logger
}

var _ types.Simulator = &Client{}

func newHandle() *codec.MsgpackHandle {
	mh := &codec.MsgpackHandle{WriteExt: true}
	mh.RawToString = true
	mh.MapType = reflect.TypeOf(map[string]interface{}(nil))
	return mh
}

// Dial opens a connection to the simulator. The timeout bounds every later call.
func Dial(ctx context.Context, addr string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := &net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: dialing %s: %v", types.ErrConnectionLost, addr, err)
	}
	return &Client{
		addr:    addr,
		timeout: timeout,
		rpc:     rpc.NewClientWithCodec(codec.MsgpackSpecRpc.ClientCodec(conn, newHandle())),
		logger:  logger.With().Str("component", "simulator").Str("addr", addr).Logger(),
	}, nil
}

// call issues one request and waits for the reply, the call timeout or the context
func (c *Client) call(ctx context.Context, method string, reply interface{}, args ...interface{}) error {
	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	call := c.rpc.Go(method, codec.MsgpackSpecRpcMultiArgs(args), reply, make(chan *rpc.Call, 1))
	select {
	case <-call.Done:
		if call.Error == nil {
			return nil
		}
		if errors.Is(call.Error, rpc.ErrShutdown) || errors.Is(call.Error, io.EOF) || errors.Is(call.Error, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: %s: %v", types.ErrConnectionLost, method, call.Error)
		}
		var netErr net.Error
		if errors.As(call.Error, &netErr) {
			return fmt.Errorf("%w: %s: %v", types.ErrConnectionLost, method, call.Error)
		}
		return fmt.Errorf("%s: %w", method, call.Error)
	case <-timer.C:
		c.logger.Warn().Str("method", method).Dur("timeout", c.timeout).Msg("simulator call timed out")
		return fmt.Errorf("%w: %s timed out after %s", types.ErrConnectionLost, method, c.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Ping(ctx context.Context) error {
	var ok bool
	return c.call(ctx, "ping", &ok)
}

func (c *Client) EnableAPIControl(ctx context.Context, enabled bool) error {
	var ignored interface{}
	return c.call(ctx, "enableApiControl", &ignored, enabled)
}

func (c *Client) SetPose(ctx context.Context, pose types.Pose, resetKinematics bool) error {
	var ignored interface{}
	return c.call(ctx, "simSetPose", &ignored, toWirePose(pose), resetKinematics)
}

func (c *Client) SetControls(ctx context.Context, controls types.Controls) error {
	var ignored interface{}
	return c.call(ctx, "setCarControls", &ignored, toWireControls(controls))
}

func (c *Client) VehicleState(ctx context.Context) (types.VehicleState, error) {
	state := wireCarState{}
	if err := c.call(ctx, "getCarState", &state); err != nil {
		return types.VehicleState{}, err
	}
	return state.toVehicleState(), nil
}

func (c *Client) CollisionInfo(ctx context.Context) (types.CollisionInfo, error) {
	info := wireCollisionInfo{}
	if err := c.call(ctx, "getCollisionInfo", &info); err != nil {
		return types.CollisionInfo{}, err
	}
	return types.CollisionInfo{HasCollided: info.HasCollided}, nil
}

// Image requests one uncompressed scene image from the front camera
func (c *Client) Image(ctx context.Context) (types.RawImage, error) {
	responses := make([]wireImageResponse, 0, 1)
	requests := []wireImageRequest{{CameraID: 0, ImageType: sceneImage}}
	if err := c.call(ctx, "simGetImages", &responses, requests); err != nil {
		return types.RawImage{}, err
	}
	if len(responses) == 0 {
		return types.RawImage{}, errors.New("simGetImages returned no image")
	}
	r := responses[0]
	return types.RawImage{Width: r.Width, Height: r.Height, Data: r.ImageData}, nil
}

func (c *Client) Close() error {
	return c.rpc.Close()
}

func (c *Client) Addr() string {
	return c.addr
}
