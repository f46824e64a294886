package tracsdk

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/imroc/req/v3"

	"github.com/tracsync/tracsync/internal/version"
)

// rpcPath is the authenticated XML-RPC endpoint the Trac plugin serves.
const rpcPath = "/login/rpc"

var ErrNoServerURL = errors.New("tracsdk: server url missing")

var tracUserAgent = fmt.Sprintf("%s/%s (%s; %s; %s)",
	version.AppName, version.Version, version.Revision, runtime.GOOS, runtime.GOARCH)

// Config carries the connection settings for one Trac instance.
type Config struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Client talks XML-RPC to a Trac instance with the XmlRpcPlugin installed.
// All methods are safe for concurrent use.
type Client struct {
	http *req.Client
}

func New(cfg *Config) (*Client, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, ErrNoServerURL
	}

	client := req.C().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetCommonRetryCount(3).
		SetCommonRetryFixedInterval(1 * time.Second).
		SetUserAgent(tracUserAgent).
		SetCommonContentType("text/xml").
		SetCommonBasicAuth(cfg.Username, cfg.Password)

	return &Client{http: client}, nil
}

// Validate probes the RPC endpoint and returns the reported API version.
func (c *Client) Validate(ctx context.Context) (string, error) {
	result, err := c.call(ctx, "system.getAPIVersion")
	if err != nil {
		return "", fmt.Errorf("validate rpc endpoint: %w", err)
	}
	parts := result.ArrayVals()
	segments := make([]string, 0, len(parts))
	for i := range parts {
		segments = append(segments, fmt.Sprintf("%d", parts[i].IntVal()))
	}
	return strings.Join(segments, "."), nil
}

func (c *Client) call(ctx context.Context, method string, args ...any) (*rpcValue, error) {
	payload, err := encodeMethodCall(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", method, err)
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetBodyBytes(payload).
		Post(rpcPath)
	if err != nil {
		return nil, fmt.Errorf("http request error: %s %w", method, err)
	}
	if res.IsErrorState() {
		return nil, fmt.Errorf("tracsdk: %s returned HTTP %d", method, res.GetStatusCode())
	}

	body, err := res.ToBytes()
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", method, err)
	}
	return decodeMethodResponse(body)
}
