package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const requestTimeout = 2 * time.Minute

// daemonClient talks to the REST API of the daemon.
type daemonClient struct {
	baseURL string
	client  *http.Client
}

func newDaemonClient(address string) *daemonClient {
	if !strings.HasPrefix(address, "http://") &&
		!strings.HasPrefix(address, "https://") {
		address = "http://" + address
	}
	return &daemonClient{
		baseURL: strings.TrimSuffix(address, "/"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

func (c *daemonClient) watchDescriptor(req map[string]interface{}) (map[string]interface{}, error) {
	reply := map[string]interface{}{}
	if err := c.do(http.MethodPost, "/v1/watchdescriptor", req, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *daemonClient) listDescriptors() (map[string]interface{}, error) {
	reply := map[string]interface{}{}
	if err := c.do(http.MethodGet, "/v1/listdescriptors", nil, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *daemonClient) deleteDescriptor(name string) (string, error) {
	var reply struct {
		Message string `json:"message"`
	}
	if err := c.do(
		http.MethodPost, "/v1/deletedescriptor", map[string]string{"name": name}, &reply,
	); err != nil {
		return "", err
	}
	return reply.Message, nil
}

func (c *daemonClient) blockAdded(hash string, height uint32) error {
	req := map[string]interface{}{
		"block_added": map[string]interface{}{
			"hash":   hash,
			"height": height,
		},
	}
	return c.do(http.MethodPost, "/v1/blockadded", req, nil)
}

func (c *daemonClient) addWebhook(topic, endpoint, secret string) (string, error) {
	req := map[string]string{
		"topic":    topic,
		"endpoint": endpoint,
		"secret":   secret,
	}
	var reply struct {
		Id string `json:"id"`
	}
	if err := c.do(http.MethodPost, "/v1/webhooks", req, &reply); err != nil {
		return "", err
	}
	return reply.Id, nil
}

func (c *daemonClient) removeWebhook(id string) error {
	return c.do(
		http.MethodDelete, "/v1/webhooks/"+url.PathEscape(id), nil, nil,
	)
}

func (c *daemonClient) listWebhooks(topic string) ([]interface{}, error) {
	path := "/v1/webhooks"
	if len(topic) > 0 {
		path += "?topic=" + url.QueryEscape(topic)
	}
	reply := make([]interface{}, 0)
	if err := c.do(http.MethodGet, path, nil, &reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (c *daemonClient) do(method, path string, body, reply interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errReply struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(buf, &errReply); err == nil && len(errReply.Error) > 0 {
			return fmt.Errorf("%s", errReply.Error)
		}
		return fmt.Errorf("daemon replied with status %d", resp.StatusCode)
	}

	if reply == nil || len(bytes.TrimSpace(buf)) <= 0 {
		return nil
	}
	return json.Unmarshal(buf, reply)
}
