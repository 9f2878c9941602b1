package kube

import (
	"bufio"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// proxyAddrPattern matches the listen address kubectl proxy prints on
// startup, e.g. "Starting to serve on 127.0.0.1:43521".
var proxyAddrPattern = regexp.MustCompile(`Starting to serve on 127\.0\.0\.1:(\d+)`)

// PortForward runs `kubectl proxy` for one kubeconfig and exposes the local
// port the proxy listens on. The child is killed on Close.
type PortForward struct {
	kubeconfig string
	cmd        *exec.Cmd
	port       int
	log        zerolog.Logger
}

// NewPortForward prepares a proxy for the given kubeconfig path.
func NewPortForward(kubeconfig string, log zerolog.Logger) *PortForward {
	return &PortForward{
		kubeconfig: kubeconfig,
		log:        log,
	}
}

// Start launches kubectl proxy on an ephemeral port and waits for it to
// announce its listen address.
func (p *PortForward) Start() error {
	args := []string{"proxy", "--port=0"}
	if p.kubeconfig != "" {
		args = append(args, "--kubeconfig", p.kubeconfig)
	}

	cmd := exec.Command("kubectl", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("kube: proxy stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("kube: start kubectl proxy: %w", err)
	}
	p.cmd = cmd

	portCh := make(chan int, 1)
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if m := proxyAddrPattern.FindStringSubmatch(line); m != nil {
				port, _ := strconv.Atoi(m[1])
				portCh <- port
				break
			}
		}
		// Keep draining so the child never blocks on a full pipe.
		for scanner.Scan() {
		}
	}()

	select {
	case port := <-portCh:
		p.port = port
		p.log.Debug().Int("port", port).Str("kubeconfig", p.kubeconfig).Msg("kubectl proxy ready")
		return nil
	case <-time.After(30 * time.Second):
		_ = cmd.Process.Kill()
		return fmt.Errorf("kube: kubectl proxy did not announce a port")
	}
}

// Port returns the local port the proxy listens on.
func (p *PortForward) Port() int { return p.port }

// URL returns the local base URL of the proxied API server.
func (p *PortForward) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", p.port)
}

// Close terminates the proxy child process.
func (p *PortForward) Close() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil {
		return err
	}
	_, _ = p.cmd.Process.Wait()
	return nil
}
