package docker

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// Client reads the console output of the game server containers.
type Client struct {
	cli *client.Client
}

func NewClient() (*Client, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

func (c *Client) ContainerStatus(ctx context.Context, id string) (string, error) {
	resp, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return "unknown", err
	}
	return resp.State.Status, nil
}

// IsTTY reports whether the container runs with a TTY, which determines
// whether its logs carry stream headers.
func (c *Client) IsTTY(ctx context.Context, id string) (bool, error) {
	resp, err := c.cli.ContainerInspect(ctx, id)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", id, err)
	}
	return resp.Config != nil && resp.Config.Tty, nil
}

// ContainerLogs follows the container's stdout and stderr starting tail
// lines back ("all" for everything).
func (c *Client) ContainerLogs(ctx context.Context, id string, tail string) (io.ReadCloser, error) {
	return c.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     true,
		Tail:       tail,
	})
}

// Demux copies a non-TTY log stream to w with the multiplexing headers
// stripped. Each frame is
//
//	[stream_type(1)][0][0][0][size(4 big-endian)][payload]
func Demux(w io.Writer, r io.Reader) error {
	header := make([]byte, 8)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read log header: %w", err)
		}

		size := binary.BigEndian.Uint32(header[4:8])
		if size == 0 {
			continue
		}
		if _, err := io.CopyN(w, r, int64(size)); err != nil {
			return fmt.Errorf("read log payload: %w", err)
		}
	}
}
