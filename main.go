package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/opsmirror/echo-go/echo"
	"github.com/opsmirror/echo-go/handlers"
	"github.com/opsmirror/echo-go/logger"
	"github.com/opsmirror/echo-go/tlsutil"
)

const drainTimeout = 10 * time.Second

func usage() {
	helpstring := `
echo-go %s
Usage: %s [-version]

Flags:
  -version          Print version and exit

The following environment variables and defaults are available:

ECHO_HOST=::                 Host or IP address to listen on
ECHO_PORT=8080               Port on which to serve echo requests
ECHO_METRICS=true            Whether to serve Prometheus metrics
ECHO_METRICS_PORT=9090       Port on which to serve Prometheus metrics
ECHO_METRICS_USE_TLS=false   Serve metrics over TLS using the same certificate
ECHO_LOG_LEVEL=info          Log verbosity: trace, debug, info, warn or error
ECHO_TLS_CERT=               Path to a PEM certificate; with ECHO_TLS_KEY, serve TLS
ECHO_TLS_KEY=                Path to a PEM private key
ECHO_SKIP_LOGGING_FOR=       Comma or semicolon separated request path patterns that
                             should not be logged, e.g.
                             'some/endpoint; another/endpoint\?with=some-param'

Timeouts: (values must be parseable by https://pkg.go.dev/time#ParseDuration)

ECHO_READ_TIMEOUT=60s   See https://cs.opensource.google/go/go/+/master:src/net/http/server.go?q=symbol:ReadTimeout
ECHO_WRITE_TIMEOUT=60s  See https://cs.opensource.google/go/go/+/master:src/net/http/server.go?q=symbol:WriteTimeout
`
	fmt.Fprintf(os.Stderr, helpstring, echo.VersionInfo(), os.Args[0])
	const ErrUsage = 64
	os.Exit(ErrUsage)
}

func getenv(key string, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func getenvBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", key, err)
		os.Exit(1)
	}
	return v
}

func getenvDuration(key string, defaultVal string) time.Duration {
	s := getenv(key, defaultVal)
	d, err := time.ParseDuration(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", key, err)
		os.Exit(1)
	}
	return d
}

func scheme(tls bool) string {
	if tls {
		return "https"
	}
	return "http"
}

func listenAndServeOrFatal(srv *http.Server, log zerolog.Logger) {
	var err error
	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msgf("failed to serve on %s", srv.Addr)
	}
}

func main() {
	returnVersion := flag.Bool("version", false, "Print version and exit")
	flag.Usage = usage
	flag.Parse()

	fmt.Fprintf(os.Stderr, "echo-go %s\n", echo.VersionInfo())
	if *returnVersion {
		os.Exit(0)
	}

	writer, err := logger.NewSentryWriter()
	if err != nil {
		panic(err)
	}
	defer logger.Flush(2 * time.Second)
	defer func() {
		_ = writer.Close()
	}()

	log := logger.New(zerolog.MultiLevelWriter(os.Stderr, writer), getenv("ECHO_LOG_LEVEL", "info"))

	var (
		host          = strings.Trim(getenv("ECHO_HOST", "::"), "[]")
		port          = getenv("ECHO_PORT", "8080")
		metricsOn     = getenvBool("ECHO_METRICS", true)
		metricsPort   = getenv("ECHO_METRICS_PORT", "9090")
		metricsUseTLS = getenvBool("ECHO_METRICS_USE_TLS", false)
		tlsCert       = os.Getenv("ECHO_TLS_CERT")
		tlsKey        = os.Getenv("ECHO_TLS_KEY")
		readTimeout   = getenvDuration("ECHO_READ_TIMEOUT", "60s")
		writeTimeout  = getenvDuration("ECHO_WRITE_TIMEOUT", "60s")
	)

	log.Info().Msgf("read timeout: %v", readTimeout)
	log.Info().Msgf("write timeout: %v", writeTimeout)
	log.Info().Msgf("GOMAXPROCS value of %d", runtime.GOMAXPROCS(0))

	var tlsConfig *tls.Config
	if tlsCert != "" || tlsKey != "" {
		if tlsCert == "" || tlsKey == "" {
			log.Fatal().Msg("ECHO_TLS_CERT and ECHO_TLS_KEY must be set together")
		}
		loader, err := tlsutil.NewCertLoader(tlsCert, tlsKey, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load TLS certificate")
		}
		defer loader.Stop()
		tlsConfig = &tls.Config{GetCertificate: loader.GetCertificate}
	}

	handlers.RegisterMetrics(prometheus.DefaultRegisterer)

	unlogged := handlers.ParseUnloggedPatterns(os.Getenv("ECHO_SKIP_LOGGING_FOR"), log)
	echoServer := &http.Server{
		Addr:         net.JoinHostPort(host, port),
		Handler:      handlers.Measure(handlers.NewEchoHandler(log, unlogged)),
		TLSConfig:    tlsConfig,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	servers := []*http.Server{echoServer}
	go listenAndServeOrFatal(echoServer, log)
	log.Info().Msgf("echo-go server listening at %s://%s", scheme(tlsConfig != nil), echoServer.Addr)

	if metricsOn {
		metricsServer := &http.Server{
			Addr:         net.JoinHostPort(host, metricsPort),
			Handler:      handlers.NewAPIHandler(log),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		}
		if metricsUseTLS {
			if tlsConfig == nil {
				log.Warn().Msg("ECHO_METRICS_USE_TLS is set but no certificate is configured, serving metrics over plain HTTP")
			}
			metricsServer.TLSConfig = tlsConfig
		}

		servers = append(servers, metricsServer)
		go listenAndServeOrFatal(metricsServer, log)
		log.Info().Msgf("serving Prometheus metrics at %s://%s/metrics", scheme(metricsServer.TLSConfig != nil), metricsServer.Addr)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Info().Msgf("%s received, draining in-flight requests", sig)

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msgf("failed to drain connections on %s", srv.Addr)
		}
	}
	log.Info().Msg("shutdown complete")
}
