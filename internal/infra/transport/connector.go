package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"mcpchat/internal/domain"
	"mcpchat/internal/infra/telemetry"
)

type ConnectorOptions struct {
	Logger        *zap.Logger
	ClientName    string
	ClientVersion string
	MaxRetries    int
}

// Connector opens MCP client sessions to providers over stdio or
// streamable HTTP.
type Connector struct {
	client     *mcp.Client
	logger     *zap.Logger
	maxRetries int
}

func NewConnector(opts ConnectorOptions) *Connector {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	name := opts.ClientName
	if name == "" {
		name = domain.DefaultClientName
	}
	version := opts.ClientVersion
	if version == "" {
		version = domain.DefaultClientVersion
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = domain.DefaultHTTPMaxRetries
	}
	return &Connector{
		client:     mcp.NewClient(&mcp.Implementation{Name: name, Version: version}, nil),
		logger:     logger.Named("transport"),
		maxRetries: maxRetries,
	}
}

func (c *Connector) Connect(ctx context.Context, spec domain.ProviderSpec) (domain.Session, error) {
	switch spec.Transport {
	case "", domain.TransportStdio:
		return c.connectStdio(ctx, spec)
	case domain.TransportHTTP:
		return c.connectHTTP(ctx, spec)
	default:
		return nil, fmt.Errorf("unsupported transport %q for provider %q", spec.Transport, spec.Name)
	}
}

func (c *Connector) connectStdio(ctx context.Context, spec domain.ProviderSpec) (domain.Session, error) {
	cmd, cleanup, err := buildCommand(ctx, spec)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("launching provider",
		telemetry.ProviderField(spec.Name),
		zap.String("command", spec.Command),
		zap.Strings("args", spec.Args),
		zap.Any("env", telemetry.RedactMap(spec.Env)),
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	downstream := c.logger.With(
		zap.String(telemetry.FieldLogSource, telemetry.LogSourceDownstream),
		telemetry.ProviderField(spec.Name),
		zap.String(telemetry.FieldLogStream, "stderr"),
	)

	// Drain stderr from the start so a chatty provider cannot stall the
	// handshake on a full pipe.
	go mirrorStderr(stderr, downstream)

	session, err := c.ConnectTransport(ctx, spec.Name, &mcp.CommandTransport{Command: cmd}, cleanup)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, fmt.Errorf("start command: %w", classifyStartError(err))
	}
	return session, nil
}

func (c *Connector) connectHTTP(ctx context.Context, spec domain.ProviderSpec) (domain.Session, error) {
	endpoint := strings.TrimSpace(spec.URL)
	if endpoint == "" {
		return nil, fmt.Errorf("url is required for http provider %q", spec.Name)
	}
	client, err := buildHTTPClient(spec)
	if err != nil {
		return nil, err
	}
	transport := &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: client,
		MaxRetries: c.maxRetries,
	}
	session, err := c.ConnectTransport(ctx, spec.Name, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("connect streamable http: %w", err)
	}
	return session, nil
}

// ConnectTransport runs the initialize handshake over an arbitrary
// transport. cleanup runs after the session closes.
func (c *Connector) ConnectTransport(ctx context.Context, name string, transport mcp.Transport, cleanup func()) (domain.Session, error) {
	started := time.Now()
	cs, err := c.client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("provider initialized",
		telemetry.ProviderField(name),
		telemetry.DurationField(time.Since(started)),
	)
	return newSession(name, cs, cleanup), nil
}

var _ domain.Connector = (*Connector)(nil)
