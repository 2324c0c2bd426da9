package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Client publishes job lifecycle events to NATS
type Client struct {
	conn *nats.Conn
}

func NewClient(url string) (*Client, error) {
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Client{conn: conn}, nil
}

// PublishJobCreated announces a freshly persisted pending job
func (c *Client) PublishJobCreated(msg *JobCreatedMessage) error {
	return c.publish(JobCreatedSubject, msg)
}

// PublishJobStatus announces a status transition
func (c *Client) PublishJobStatus(msg *JobStatusMessage) error {
	return c.publish(JobStatusSubject, msg)
}

func (c *Client) publish(subject string, msg interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", subject, err)
	}

	if err := c.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return nil
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}
