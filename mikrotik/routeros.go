package mikrotik

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-routeros/routeros/v3"
)

// DialRouterOS opens a RouterOS API session and logs in.
func DialRouterOS(ctx context.Context, addr Address) (Conn, error) {
	timeout := remaining(ctx, addr.Timeout())
	client, err := routeros.DialTimeout(addr.HostPort(), addr.User, addr.Password, timeout)
	if err != nil {
		return nil, err
	}
	return &routerosConn{client: client}, nil
}

type routerosConn struct {
	client *routeros.Client
}

func (c *routerosConn) Run(words []string) ([]map[string]string, error) {
	reply, err := c.client.RunArgs(words)
	if err != nil {
		var devErr *routeros.DeviceError
		if errors.As(err, &devErr) {
			msg := devErr.Error()
			if devErr.Sentence != nil {
				if m := devErr.Sentence.Map["message"]; m != "" {
					msg = m
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrCommandFailure, msg)
		}
		return nil, err
	}

	rows := make([]map[string]string, 0, len(reply.Re))
	for _, re := range reply.Re {
		row := make(map[string]string, len(re.Map))
		for k, v := range re.Map {
			row[k] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *routerosConn) Close() error {
	c.client.Close()
	return nil
}
