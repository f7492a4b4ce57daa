package httpapi

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreconsensus/bridge/pkg/chrono"
)

// Client is an abci.Backend implementation that talks to a remote
// backend's Handlers over HTTP, for the split-process deployment where the
// ABCI bridge and the backend run as separate binaries.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient builds a Client against baseURL (e.g. "http://127.0.0.1:8090").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, hc: &http.Client{Timeout: 10 * time.Second}}
}

func (c *Client) Info() (uint64, [32]byte, error) {
	resp, err := c.hc.Get(c.baseURL + "/abci/info")
	if err != nil {
		return 0, [32]byte{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, [32]byte{}, fmt.Errorf("httpapi: info: %s", resp.Status)
	}
	var body infoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, [32]byte{}, err
	}
	raw, err := hex.DecodeString(body.Root)
	if err != nil {
		return 0, [32]byte{}, err
	}
	var root [32]byte
	copy(root[:], raw)
	return body.Height, root, nil
}

func (c *Client) CheckEnvelope(envBytes []byte, now chrono.Timestamp) error {
	resp, err := c.hc.Post(c.baseURL+"/abci/checkTx", "application/cbor", bytes.NewReader(envBytes))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpapi: check_tx rejected: %s", resp.Status)
	}
	return nil
}

func (c *Client) BeginBlock(ctx context.Context) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/abci/beginBlock", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("httpapi: begin_block: %s", resp.Status)
	}
	var body beginBlockResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Height, nil
}

// DeliverEnvelope forwards a raw COSE envelope to the backend's deliver
// endpoint and returns its CBOR response payload.
func (c *Client) DeliverEnvelope(ctx context.Context, envBytes []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/abci/deliverTx", bytes.NewReader(envBytes))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/cbor")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("httpapi: deliver_tx: %s: %s", resp.Status, body)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) EndBlock(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/abci/endBlock", nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("httpapi: end_block: %s", resp.Status)
	}
	return nil
}

func (c *Client) Commit(ctx context.Context) ([32]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/abci/commit", nil)
	if err != nil {
		return [32]byte{}, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return [32]byte{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return [32]byte{}, fmt.Errorf("httpapi: commit: %s", resp.Status)
	}
	var body commitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return [32]byte{}, err
	}
	raw, err := hex.DecodeString(body.Root)
	if err != nil {
		return [32]byte{}, err
	}
	var root [32]byte
	copy(root[:], raw)
	return root, nil
}

func (c *Client) Query(key []byte) ([]byte, error) {
	resp, err := c.hc.Get(c.baseURL + "/abci/query?key=" + string(key))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("httpapi: query: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) MigrationActive(name string, height uint64) bool {
	resp, err := c.hc.Get(fmt.Sprintf("%s/migrations/active?name=%s&height=%d", c.baseURL, name, height))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	var body migrationActiveResponse
	if json.NewDecoder(resp.Body).Decode(&body) != nil {
		return false
	}
	return body.Active
}
