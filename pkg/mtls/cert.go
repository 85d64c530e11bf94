package mtls

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// Client authentication modes for LoadServerTLSConfig
const (
	ClientAuthRequire = "require"
	ClientAuthRequest = "request"
	ClientAuthNone    = "none"
)

func loadCertPool(caCertPath string) (*x509.CertPool, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to append CA certificate from %s", caCertPath)
	}

	return pool, nil
}

// LoadClientTLSConfig creates a TLS configuration for the console client.
// Empty client cert and key paths give server-only verification.
func LoadClientTLSConfig(caCertPath, clientCertPath, clientKeyPath, serverName string) (*tls.Config, error) {
	pool, err := loadCertPool(caCertPath)
	if err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS13,
	}

	if clientCertPath != "" || clientKeyPath != "" {
		clientCert, err := tls.LoadX509KeyPair(clientCertPath, clientKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{clientCert}
	}

	return cfg, nil
}

// LoadServerTLSConfig creates a TLS configuration for the daemon.
// With "require", certificates are verified when given and the HTTP
// middleware rejects requests without one.
func LoadServerTLSConfig(caCertPath, serverCertPath, serverKeyPath, clientAuthMode string) (*tls.Config, error) {
	pool, err := loadCertPool(caCertPath)
	if err != nil {
		return nil, err
	}

	serverCert, err := tls.LoadX509KeyPair(serverCertPath, serverKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	var clientAuth tls.ClientAuthType
	switch clientAuthMode {
	case ClientAuthRequire, ClientAuthRequest:
		clientAuth = tls.VerifyClientCertIfGiven
	case ClientAuthNone, "":
		clientAuth = tls.NoClientCert
	default:
		return nil, fmt.Errorf("unknown client auth mode %q", clientAuthMode)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientCAs:    pool,
		ClientAuth:   clientAuth,
		MinVersion:   tls.VersionTLS13,
	}, nil
}
