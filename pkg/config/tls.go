package config

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/hyp3rd/ewrap"
)

// ErrTLSNotEnabled is returned by TLSConfig.Build when no TLS option is set.
var ErrTLSNotEnabled = ewrap.New("tls is not enabled").WithContext(
	&ewrap.ErrorContext{
		Severity: ewrap.SeverityError,
		Type:     ewrap.ErrorTypeConfiguration,
	},
)

// Enabled reports whether any TLS option is set.
func (c TLSConfig) Enabled() bool {
	return c.CAFile != "" || c.CertFile != "" || c.KeyFile != "" || c.Insecure
}

// Build loads the configured CA and client certificate into a tls.Config.
func (c TLSConfig) Build() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, ErrTLSNotEnabled
	}

	tlsCfg := &tls.Config{
		MinVersion: tls.VersionTLS12,
		//nolint:gosec // allow insecure skip verify via config.
		InsecureSkipVerify: c.Insecure,
	}

	if c.CAFile != "" {
		data, err := os.ReadFile(c.CAFile)
		if err != nil {
			return nil, ewrap.Wrapf(err, "read ca file %s", c.CAFile)
		}

		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(data) {
			return nil, ewrap.Newf("failed to parse ca file %s", c.CAFile)
		}

		tlsCfg.RootCAs = pool
	}

	if c.CertFile != "" || c.KeyFile != "" {
		if c.CertFile == "" || c.KeyFile == "" {
			return nil, ewrap.New("tls cert_file and key_file must both be set")
		}

		cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
		if err != nil {
			return nil, ewrap.Wrap(err, "load tls client certificate")
		}

		tlsCfg.Certificates = []tls.Certificate{cert}
	}

	return tlsCfg, nil
}
