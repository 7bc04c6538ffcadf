package integration

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	// revive:disable:dot-imports
	. "github.com/onsi/gomega"
	// revive:enable:dot-imports
)

const (
	echoPort    = 3169
	metricsPort = 3168
)

var (
	echoBinary     string
	runningServers = make(map[int]*exec.Cmd)
)

func echoURL(port int, path string) string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", port, path)
}

func startEchoServer(port, metricsPort int, logfile *os.File, extraEnv ...string) error {
	host := "127.0.0.1"

	cmd := exec.Command(echoBinary)

	cmd.Env = append(cmd.Environ(), fmt.Sprintf("ECHO_HOST=%s", host))
	cmd.Env = append(cmd.Env, fmt.Sprintf("ECHO_PORT=%d", port))
	cmd.Env = append(cmd.Env, fmt.Sprintf("ECHO_METRICS_PORT=%d", metricsPort))
	cmd.Env = append(cmd.Env, extraEnv...)

	if os.Getenv("ECHO_DEBUG_TESTS") != "" {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stderr = logfile
	}

	err := cmd.Start()
	if err != nil {
		return err
	}

	waitForServerUp(net.JoinHostPort(host, strconv.Itoa(port)))

	runningServers[port] = cmd
	return nil
}

// stopEchoServer interrupts the server under test and checks that it drains
// and exits cleanly rather than being killed by the signal.
func stopEchoServer(port int) {
	cmd := runningServers[port]
	if cmd != nil && cmd.Process != nil {
		err := cmd.Process.Signal(syscall.SIGINT)
		Expect(err).NotTo(HaveOccurred())

		state, err := cmd.Process.Wait()
		Expect(err).NotTo(HaveOccurred())
		Expect(state.ExitCode()).To(Equal(0), "server should exit 0 after draining")
	}
	delete(runningServers, port)
}

func waitForServerUp(addr string) {
	for i := 0; i < 20; i++ {
		conn, err := net.Dial("tcp", addr)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	panic("Server not accepting connections after 20 attempts")
}
