// ABOUTME: tsnet listener setup so the HTTP server can join a tailnet as its own node
// ABOUTME: Supports plain :80, HTTPS with Tailscale or file-based certs, and public Funnel

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"
)

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "coven-helpdesk", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

func (s *Server) listenTailscale(ctx context.Context) (net.Listener, error) {
	tsCfg := s.tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetServer.Up(ctx)
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(status)

	ln, err := s.tailscaleHTTPListener()
	if err != nil {
		_ = s.tsnetServer.Close()
		return nil, err
	}
	return ln, nil
}

func (s *Server) logTailscaleStatus(status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", s.tailscale.Hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

func (s *Server) tailscaleHTTPListener() (net.Listener, error) {
	tsCfg := s.tailscale
	switch {
	case tsCfg.Funnel:
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS || tsCfg.CertFile != "":
		return s.tailscaleTLSListener()
	default:
		ln, err := s.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

func (s *Server) tailscaleTLSListener() (net.Listener, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if s.tailscale.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(s.tailscale.CertFile, s.tailscale.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading tailscale TLS cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	} else {
		lc, err := s.tsnetServer.LocalClient()
		if err != nil {
			return nil, fmt.Errorf("getting tailscale local client: %w", err)
		}
		tlsCfg.GetCertificate = lc.GetCertificate
	}

	s.logger.Info("enabling HTTPS on tailscale :443", "cert_file", s.tailscale.CertFile)
	ln, err := s.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	return tls.NewListener(ln, tlsCfg), nil
}
