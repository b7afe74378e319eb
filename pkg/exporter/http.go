package exporter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/hyp3rd/ewrap"
	"github.com/klauspost/compress/gzip"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/protobuf/proto"

	"github.com/hyp3rd/otlplog/pkg/config"
)

const (
	contentTypeProtobuf = "application/x-protobuf"
	maxResponseBody     = 64 << 10
)

type httpTransport struct {
	client  *http.Client
	url     string
	headers map[string]string
	gzip    bool
	timeout timeoutFunc
}

func newHTTPTransport(cfg config.ExporterConfig, headers map[string]string, client *http.Client) (*httpTransport, error) {
	if client == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()

		if !cfg.Plaintext() {
			tlsCfg, err := cfg.TLS.Build()
			if err != nil && !errors.Is(err, config.ErrTLSNotEnabled) {
				return nil, err
			}

			if tlsCfg != nil {
				transport.TLSClientConfig = tlsCfg
			}
		}

		client = &http.Client{Transport: transport}
	}

	return &httpTransport{
		client:  client,
		url:     cfg.HTTPURL(),
		headers: headers,
		gzip:    cfg.Compression == "gzip",
		timeout: withTimeout(cfg.Timeout),
	}, nil
}

func (*httpTransport) name() string { return config.TransportHTTP }

func (t *httpTransport) send(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (int64, error) {
	body, err := proto.Marshal(req)
	if err != nil {
		return 0, ewrap.Wrap(err, "marshal export request")
	}

	if t.gzip {
		body, err = gzipBody(body)
		if err != nil {
			return 0, err
		}
	}

	ctx, cancel := t.timeout(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return 0, ewrap.Wrap(err, "build export request")
	}

	for k, v := range t.headers {
		httpReq.Header.Set(k, v)
	}

	httpReq.Header.Set("Content-Type", contentTypeProtobuf)

	if t.gzip {
		httpReq.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return 0, ewrap.Wrapf(err, "post %s", t.url)
	}

	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, ewrap.Wrap(err, "read export response")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return 0, ewrap.Newf("http export failed with status %d: %s", resp.StatusCode, truncate(string(payload), 256))
	}

	if len(payload) == 0 {
		return 0, nil
	}

	var out collogspb.ExportLogsServiceResponse
	if proto.Unmarshal(payload, &out) != nil {
		return 0, nil
	}

	return out.GetPartialSuccess().GetRejectedLogRecords(), nil
}

func (t *httpTransport) shutdown(context.Context) error {
	t.client.CloseIdleConnections()

	return nil
}

func gzipBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)

	_, err := zw.Write(body)
	if err != nil {
		return nil, ewrap.Wrap(err, "gzip export request")
	}

	err = zw.Close()
	if err != nil {
		return nil, ewrap.Wrap(err, "gzip export request")
	}

	return buf.Bytes(), nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}

	return s[:limit] + "..."
}

type timeoutFunc func(context.Context) (context.Context, context.CancelFunc)

func withTimeout(timeout time.Duration) timeoutFunc {
	return func(ctx context.Context) (context.Context, context.CancelFunc) {
		if timeout <= 0 {
			return context.WithCancel(ctx)
		}

		return context.WithTimeout(ctx, timeout)
	}
}
