package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mlueckert/mist-exporter/mist/misttest"
	"golang.org/x/sync/errgroup"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v2"
)

const defaultToken = "mock-token"

// AuthConfig lists the API tokens the mock accepts.
type AuthConfig struct {
	Tokens []string `yaml:"tokens"`
}

func loadAuthConfig(filename string) (*AuthConfig, error) {
	data, err := os.ReadFile(filename) //nolint:gosec // Test data files are controlled by developer
	if err != nil {
		return nil, err
	}

	var authConfig AuthConfig
	if err := yaml.Unmarshal(data, &authConfig); err != nil {
		return nil, err
	}
	if len(authConfig.Tokens) == 0 {
		return nil, fmt.Errorf("%s lists no tokens", filename)
	}
	return &authConfig, nil
}

func loadCaptureFile(handler *misttest.Handler, filename string, logger *slog.Logger) error {
	file, err := os.Open(filename) //nolint:gosec // Test data files are controlled by developer
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	endpoints, err := misttest.ReadCapture(file)
	if err != nil {
		return fmt.Errorf("%s: %w", filename, err)
	}
	handler.Load(endpoints)
	logger.Info("loaded capture", slog.String("file", filename), slog.Int("endpoints", len(endpoints)))
	return nil
}

// delayed simulates network latency.
func delayed(next http.Handler, d time.Duration) http.Handler {
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(d):
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
		}
	})
}

func debugHandler(handler *misttest.Handler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests := handler.Requests()
		if len(requests) > 100 {
			requests = requests[len(requests)-100:]
		}
		response := map[string]any{
			"total_endpoints": handler.Paths(),
			"recent_requests": requests,
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Warn("failed to encode debug response", slog.Any("error", err))
		}
	}
}

func main() {
	app := kingpin.New("mock-server", "Serves captured Mist API responses for exporter development.")
	var (
		files       = app.Flag("file", "Capture file to load. Repeatable.").Strings()
		dataDir     = app.Flag("dir", "Directory whose *.txt capture files are loaded.").String()
		org         = app.Flag("org", "Capture name to load from tools/mock-server/testdata/<org>/").String()
		port        = app.Flag("port", "Port to listen on (HTTP)").Default("8080").String()
		httpsPort   = app.Flag("https-port", "Port to listen on (HTTPS)").Default("8443").String()
		delay       = app.Flag("delay", "Response delay to simulate network latency").Default("0s").Duration()
		authFile    = app.Flag("auth", "YAML file listing accepted API tokens (default: "+defaultToken+")").String()
		certFile    = app.Flag("cert", "Path to TLS certificate file (generated if not provided)").String()
		keyFile     = app.Flag("key", "Path to TLS key file (generated if not provided)").String()
		enableHTTP  = app.Flag("http", "Enable HTTP server").Default("true").Bool()
		enableHTTPS = app.Flag("https", "Enable HTTPS server").Default("false").Bool()
		debug       = app.Flag("debug", "Enable the /debug endpoint and debug logging").Bool()
	)
	kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	tokens := []string{defaultToken}
	if *authFile != "" {
		auth, err := loadAuthConfig(*authFile)
		if err != nil {
			logger.Error("failed to load auth config", slog.Any("error", err))
			os.Exit(1)
		}
		tokens = auth.Tokens
	}
	logger.Info("accepting API tokens", slog.Int("tokens", len(tokens)))

	sources := append([]string(nil), *files...)
	if *org != "" {
		*dataDir = filepath.Join("tools", "mock-server", "testdata", *org)
	}
	if *dataDir != "" {
		matches, err := filepath.Glob(filepath.Join(*dataDir, "*.txt"))
		if err != nil || len(matches) == 0 {
			logger.Error("no capture files found", slog.String("dir", *dataDir))
			os.Exit(1)
		}
		sources = append(sources, matches...)
	}
	if len(sources) == 0 {
		logger.Error("please specify --file, --dir or --org")
		os.Exit(1)
	}

	handler := misttest.NewHandler(logger, tokens...)
	for _, source := range sources {
		if err := loadCaptureFile(handler, source, logger); err != nil {
			logger.Error("failed to load capture", slog.Any("error", err))
			os.Exit(1)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", delayed(handler, *delay))
	if *debug {
		mux.HandleFunc("/debug", debugHandler(handler, logger))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	var servers []*http.Server
	if *enableHTTP {
		servers = append(servers, &http.Server{
			Addr:              ":" + *port,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}
	if *enableHTTPS {
		tlsConfig, err := getTLSConfig(*certFile, *keyFile, logger)
		if err != nil {
			logger.Error("failed to set up TLS", slog.Any("error", err))
			os.Exit(1)
		}
		servers = append(servers, &http.Server{
			Addr:              ":" + *httpsPort,
			Handler:           mux,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	for _, srv := range servers {
		g.Go(func() error {
			var err error
			if srv.TLSConfig != nil {
				logger.Info("starting HTTPS mock Mist API", slog.String("addr", srv.Addr))
				err = srv.ListenAndServeTLS("", "")
			} else {
				logger.Info("starting HTTP mock Mist API", slog.String("addr", srv.Addr))
				err = srv.ListenAndServe()
			}
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
		return nil
	})

	logger.Info("point mist_exporter at the mock",
		slog.String("baseurl", "http://localhost:"+*port+"/api/v1"),
		slog.String("api_token", tokens[0]),
	)
	if err := g.Wait(); err != nil {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// getTLSConfig loads the given key pair or generates a self-signed one.
func getTLSConfig(certFile, keyFile string, logger *slog.Logger) (*tls.Config, error) {
	var cert tls.Certificate
	var err error

	if certFile != "" && keyFile != "" {
		cert, err = tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate: %w", err)
		}
		logger.Info("using existing certificate", slog.String("file", certFile))
	} else {
		cert, err = generateSelfSignedCert()
		if err != nil {
			return nil, fmt.Errorf("failed to generate certificate: %w", err)
		}
		logger.Info("generated self-signed certificate, run the exporter with --ignore_ssl")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func generateSelfSignedCert() (tls.Certificate, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return tls.Certificate{}, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Mock Mist API"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	if err != nil {
		return tls.Certificate{}, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
	return tls.X509KeyPair(certPEM, keyPEM)
}
