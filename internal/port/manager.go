// Package port picks the listen address for the mock cart backend. Locally a
// busy preferred port falls through to the next free port in a range; in
// containers the configured port is used as is.
package port

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/itsneelabh/gocart/pkg/logger"
)

// Environment is the detected deployment environment.
type Environment string

const (
	EnvLocal      Environment = "local"
	EnvDocker     Environment = "docker"
	EnvKubernetes Environment = "kubernetes"
)

// Options configures a Manager. Range is written "8089-8099" and defaults to
// ten ports starting at Port.
type Options struct {
	Host  string
	Port  int
	Range string
}

// Strategy describes how the port was chosen.
type Strategy struct {
	Port         int
	AutoDiscover bool
	Source       string
	Environment  Environment
}

type Manager struct {
	opts   Options
	env    Environment
	logger logger.Logger
}

func NewManager(opts Options, log logger.Logger) *Manager {
	if opts.Port == 0 {
		opts.Port = 8089
	}
	if opts.Range == "" {
		opts.Range = fmt.Sprintf("%d-%d", opts.Port, opts.Port+10)
	}
	return &Manager{
		opts:   opts,
		env:    detectEnvironment(),
		logger: logger.OrNoOp(log).WithComponent("port"),
	}
}

func detectEnvironment() Environment {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" ||
		fileExists("/var/run/secrets/kubernetes.io/serviceaccount/token") {
		return EnvKubernetes
	}
	if os.Getenv("COMPOSE_PROJECT_NAME") != "" || fileExists("/.dockerenv") {
		return EnvDocker
	}
	return EnvLocal
}

func (m *Manager) Environment() Environment {
	return m.env
}

// Strategy decides the port without binding it.
func (m *Manager) Strategy() Strategy {
	if m.env != EnvLocal {
		return Strategy{Port: m.opts.Port, Source: string(m.env) + "-fixed", Environment: m.env}
	}
	if m.available(m.opts.Port) {
		return Strategy{Port: m.opts.Port, Source: "configured", Environment: m.env}
	}

	start, end := m.parseRange()
	for p := start; p <= end; p++ {
		if p != m.opts.Port && m.available(p) {
			return Strategy{Port: p, AutoDiscover: true, Source: "auto-discovery", Environment: m.env}
		}
	}
	// Nothing free in range; let the OS pick.
	return Strategy{Port: 0, AutoDiscover: true, Source: "os-assigned", Environment: m.env}
}

// Listen binds the port chosen by Strategy.
func (m *Manager) Listen() (net.Listener, error) {
	s := m.Strategy()

	l, err := net.Listen("tcp", m.Address(s.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", m.Address(s.Port), err)
	}

	bound := l.Addr().(*net.TCPAddr).Port
	m.logger.Info("Port selected", map[string]interface{}{
		"port":          bound,
		"configured":    m.opts.Port,
		"auto_discover": s.AutoDiscover,
		"source":        s.Source,
		"environment":   string(s.Environment),
	})
	return l, nil
}

func (m *Manager) Address(port int) string {
	return net.JoinHostPort(m.opts.Host, strconv.Itoa(port))
}

// PublicURL is the URL to print for humans.
func (m *Manager) PublicURL(port int) string {
	host := m.opts.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

func (m *Manager) parseRange() (int, int) {
	parts := strings.Split(m.opts.Range, "-")
	if len(parts) == 2 {
		start, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		end, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 == nil && err2 == nil && start > 0 && start <= end && end <= 65535 {
			return start, end
		}
	}

	m.logger.Warn("Invalid port range, scanning ten ports after the configured one", map[string]interface{}{
		"range": m.opts.Range,
	})
	return m.opts.Port, m.opts.Port + 10
}

func (m *Manager) available(port int) bool {
	l, err := net.Listen("tcp", m.Address(port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

func fileExists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}
