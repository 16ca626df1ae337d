package acquisition

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "hotload-client"
)

// Client talks to the release service on behalf of one deployment.
type Client struct {
	cfg        Config
	httpClient *http.Client
	rest       *resty.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// New creates a Client scoped to cfg.
func New(cfg Config, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := &Client{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient != nil {
		c.rest = resty.NewWithClient(c.httpClient)
	} else {
		c.rest = resty.New()
	}
	c.rest.
		SetBaseURL(strings.TrimRight(cfg.ServerURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return c
}

// Config returns the configuration the client was created with.
func (c *Client) Config() Config {
	return c.cfg
}

// QueryUpdate asks the release service whether a package newer than current
// exists. It returns nil, nil when no update is available. A response with
// UpdateAppVersion set carries only AppVersion: the update exists but needs
// a newer binary.
func (c *Client) QueryUpdate(ctx context.Context, current QueryPackage) (*UpdateCheckResponse, error) {
	const op = "update check"

	if current.AppVersion == "" {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: app version is required", ErrInvalidPackage)}
	}

	params := map[string]string{
		"deploymentKey": c.cfg.DeploymentKey,
		"appVersion":    current.AppVersion,
	}
	if current.PackageHash != "" {
		params["packageHash"] = current.PackageHash
	}
	if current.Label != "" {
		params["label"] = current.Label
	}
	if current.IsCompanion {
		params["isCompanion"] = "true"
	}
	if c.cfg.ClientUniqueID != "" {
		params["clientUniqueId"] = c.cfg.ClientUniqueID
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/updateCheck")
	if err != nil {
		return nil, &Error{Op: op, Err: err}
	}
	if err := mapHTTPError(op, resp); err != nil {
		return nil, err
	}

	body := resp.Body()
	if err := validateUpdateCheck(body); err != nil {
		return nil, &Error{Op: op, Err: err}
	}

	var envelope updateCheckEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}

	info := envelope.UpdateInfo
	switch {
	case info.UpdateAppVersion:
		return &UpdateCheckResponse{UpdateAppVersion: true, AppVersion: info.AppVersion, IsAvailable: info.IsAvailable}, nil
	case !info.IsAvailable:
		return nil, nil
	default:
		return info, nil
	}
}

// ReportDeploy records that a package (or, when report.Package is nil, a new
// binary version) became active on this device.
func (c *Client) ReportDeploy(ctx context.Context, report DeployReport) error {
	const op = "deploy report"

	body := deploymentStatusReport{
		AppVersion:                c.cfg.AppVersion,
		ClientUniqueID:            c.cfg.ClientUniqueID,
		DeploymentKey:             c.cfg.DeploymentKey,
		PreviousLabelOrAppVersion: report.PreviousLabelOrAppVersion,
		PreviousDeploymentKey:     report.PreviousDeploymentKey,
	}

	if pkg := report.Package; pkg != nil {
		switch report.Status {
		case DeploymentSucceeded, DeploymentFailed:
			body.Status = string(report.Status)
		default:
			return &Error{Op: op, Err: fmt.Errorf("%w: unrecognized status %q", ErrInvalidPackage, report.Status)}
		}
		body.Label = pkg.Label
		if pkg.AppVersion != "" {
			body.AppVersion = pkg.AppVersion
		}
	}

	return c.post(ctx, op, "/reportStatus/deploy", body)
}

// ReportDownload records that pkg was downloaded by this device.
func (c *Client) ReportDownload(ctx context.Context, pkg DeployedPackage) error {
	return c.post(ctx, "download report", "/reportStatus/download", downloadReport{
		ClientUniqueID: c.cfg.ClientUniqueID,
		DeploymentKey:  c.cfg.DeploymentKey,
		Label:          pkg.Label,
	})
}

func (c *Client) post(ctx context.Context, op, path string, body any) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	return mapHTTPError(op, resp)
}

func mapHTTPError(op string, resp *resty.Response) error {
	if resp.StatusCode() >= http.StatusOK && resp.StatusCode() < http.StatusMultipleChoices {
		return nil
	}

	msg := strings.TrimSpace(string(resp.Body()))
	if msg == "" {
		msg = http.StatusText(resp.StatusCode())
	}
	return &Error{Op: op, StatusCode: resp.StatusCode(), Message: msg}
}
