package transport

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/lineflux/qdbsender/internal/config"
	qerr "github.com/lineflux/qdbsender/errors"
)

// loadRootPool reads tls_roots as a PEM bundle of trusted CA certificates.
// password is accepted for configuration-grammar symmetry with the Java
// client's PKCS#12 keystore support, but a bare PEM bundle has no
// passphrase to apply it to; it is ignored here and this restriction is
// noted in DESIGN.md rather than silently pretending to honor it.
func loadRootPool(path, password string) (*x509.CertPool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, qerr.Wrap(qerr.TlsError, "failed to read tls_roots file", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(raw) {
		return nil, qerr.Newf(qerr.TlsError, "tls_roots %q contained no usable certificates", path)
	}
	_ = password
	return pool, nil
}

// buildTLSConfig constructs the *tls.Config an https or tcps connection
// dials with, or returns nil for a plaintext scheme. Shared by the HTTP
// and TCP transports so tls_verify/tls_roots behave identically on both.
func buildTLSConfig(o *config.Options) (*tls.Config, error) {
	if !o.Scheme.IsTLS() {
		return nil, nil
	}
	conf := &tls.Config{MinVersion: tls.VersionTLS12}
	if o.TLSVerify == config.TLSVerifyUnsafeOff {
		conf.InsecureSkipVerify = true //nolint:gosec // explicit opt-in via tls_verify=unsafe_off
	}
	if o.TLSRoots != "" {
		pool, err := loadRootPool(o.TLSRoots, o.TLSRootsPassword)
		if err != nil {
			return nil, err
		}
		conf.RootCAs = pool
	}
	return conf, nil
}
