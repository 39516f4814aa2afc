package remote

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/sim-state/go-engine/internal/physics"
)

// #region config
// Config holds the remote backend connection settings.
type Config struct {
	Addr        string
	CallTimeout time.Duration // deadline of every RPC
}

// DefaultConfig returns the settings used by the commands.
func DefaultConfig() Config {
	return Config{
		Addr:        "localhost:50061",
		CallTimeout: 2 * time.Second,
	}
}
// #endregion config

// #region client-struct
// Client is a physics.Backend served by a remote Server.
type Client struct {
	conn   *grpc.ClientConn
	config Config
}
// #endregion client-struct

// #region constructor
// NewClient connects to a remote physics backend. Extra options are appended
// after the default insecure transport credentials.
func NewClient(config Config, opts ...grpc.DialOption) (*Client, error) {
	dial := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(config.Addr, dial...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", config.Addr, err)
	}
	return &Client{conn: conn, config: config}, nil
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
// #endregion close

// #region invoke
func (c *Client) invoke(method string, in *structpb.Struct) (*structpb.Struct, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.CallTimeout)
	defer cancel()
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}
// #endregion invoke

// #region backend
func (c *Client) Step() error {
	if _, err := c.invoke("Step", &structpb.Struct{}); err != nil {
		return fmt.Errorf("step rpc: %w", err)
	}
	return nil
}

func (c *Client) ContactPoints(body physics.BodyID) ([]physics.ContactPoint, error) {
	out, err := c.invoke("ContactPoints", bodyRequest(body))
	if err != nil {
		return nil, fmt.Errorf("contact points rpc: %w", err)
	}
	return decodeContacts(out)
}

func (c *Client) LinkWorldPose(body physics.BodyID, link string) (physics.Pose, bool, error) {
	out, err := c.invoke("LinkWorldPose", linkRequest(body, link))
	if err != nil {
		return physics.Pose{}, false, fmt.Errorf("link pose rpc: %w", err)
	}
	return decodePose(out)
}

func (c *Client) BodyPose(body physics.BodyID) (physics.Pose, bool, error) {
	out, err := c.invoke("BodyPose", bodyRequest(body))
	if err != nil {
		return physics.Pose{}, false, fmt.Errorf("body pose rpc: %w", err)
	}
	return decodePose(out)
}

func (c *Client) BodyAABB(body physics.BodyID) (physics.AABB, bool, error) {
	out, err := c.invoke("BodyAABB", bodyRequest(body))
	if err != nil {
		return physics.AABB{}, false, fmt.Errorf("body aabb rpc: %w", err)
	}
	return decodeAABB(out)
}
// #endregion backend
