package exporter

import (
	"context"
	"crypto/tls"
	"errors"

	"github.com/hyp3rd/ewrap"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	grpcgzip "google.golang.org/grpc/encoding/gzip"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/hyp3rd/otlplog/pkg/config"
)

type grpcTransport struct {
	conn     *grpc.ClientConn
	client   collogspb.LogsServiceClient
	callOpts []grpc.CallOption
	timeout  timeoutFunc
}

func newGRPCTransport(cfg config.ExporterConfig, headers map[string]string, extra []grpc.DialOption) (*grpcTransport, error) {
	creds, err := grpcCredentials(cfg)
	if err != nil {
		return nil, err
	}

	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if len(headers) > 0 {
		dialOpts = append(dialOpts, grpc.WithUnaryInterceptor(headerInterceptor(headers)))
	}

	dialOpts = append(dialOpts, extra...)

	conn, err := grpc.NewClient(cfg.GRPCTarget(), dialOpts...)
	if err != nil {
		return nil, ewrap.Wrapf(err, "create grpc client for %s", cfg.GRPCTarget())
	}

	var callOpts []grpc.CallOption
	if cfg.Compression == "gzip" {
		callOpts = append(callOpts, grpc.UseCompressor(grpcgzip.Name))
	}

	return &grpcTransport{
		conn:     conn,
		client:   collogspb.NewLogsServiceClient(conn),
		callOpts: callOpts,
		timeout:  withTimeout(cfg.Timeout),
	}, nil
}

func grpcCredentials(cfg config.ExporterConfig) (credentials.TransportCredentials, error) {
	if cfg.Plaintext() {
		return insecure.NewCredentials(), nil
	}

	tlsCfg, err := cfg.TLS.Build()
	if err != nil && !errors.Is(err, config.ErrTLSNotEnabled) {
		return nil, err
	}

	if tlsCfg == nil {
		tlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return credentials.NewTLS(tlsCfg), nil
}

func headerInterceptor(headers map[string]string) grpc.UnaryClientInterceptor {
	pairs := make([]string, 0, len(headers)*2)
	for k, v := range headers {
		pairs = append(pairs, k, v)
	}

	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx = metadata.AppendToOutgoingContext(ctx, pairs...)

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

func (*grpcTransport) name() string { return config.TransportGRPC }

func (t *grpcTransport) send(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (int64, error) {
	ctx, cancel := t.timeout(ctx)
	defer cancel()

	resp, err := t.client.Export(ctx, req, t.callOpts...)
	if err != nil {
		return 0, ewrap.Wrapf(err, "grpc export failed with code %s", status.Code(err))
	}

	if partial := resp.GetPartialSuccess(); partial != nil {
		return partial.GetRejectedLogRecords(), nil
	}

	return 0, nil
}

func (t *grpcTransport) shutdown(context.Context) error {
	err := t.conn.Close()
	if err != nil {
		return ewrap.Wrap(err, "close grpc connection")
	}

	return nil
}
