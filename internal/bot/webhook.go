package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"tg-support-relay/internal/config"
	"tg-support-relay/internal/logger"
)

// WebhookServer is the single HTTP server shared by every tenant bot;
// each tenant mounts its own secret path on the mux.
type WebhookServer struct {
	mux      *http.ServeMux
	server   *http.Server
	endpoint string
	certFile string
	keyFile  string
}

func NewWebhookServer(cfg *config.Config) (*WebhookServer, error) {
	webhook := cfg.Bot.Webhook
	if webhook.Endpoint == "" {
		return nil, fmt.Errorf("webhook endpoint is required")
	}
	if (webhook.CertFile == "" || webhook.KeyFile == "") && !strings.HasPrefix(webhook.Endpoint, "https://") {
		return nil, fmt.Errorf("HTTPS configuration required: set cert_file and key_file in config or use a HTTPS proxy")
	}

	listenPort := webhook.ListenPort
	if listenPort == "" {
		listenPort = "8443"
		logger.Infof("Using default listen port: %s", listenPort)
	}

	mux := http.NewServeMux()
	return &WebhookServer{
		mux: mux,
		server: &http.Server{
			Addr:     "0.0.0.0:" + listenPort,
			Handler:  mux,
			ErrorLog: log.New(logger.GetRotatingLogWriter(cfg, "webhook"), "[HTTP] ", log.LstdFlags),
		},
		endpoint: strings.TrimSuffix(webhook.Endpoint, "/"),
		certFile: webhook.CertFile,
		keyFile:  webhook.KeyFile,
	}, nil
}

// URLFor returns the externally visible URL for a mounted path.
func (ws *WebhookServer) URLFor(path string) string {
	return ws.endpoint + path
}

// Start blocks serving webhook requests until Shutdown.
func (ws *WebhookServer) Start() error {
	logger.Infof("Starting HTTP server on %s", ws.server.Addr)

	if ws.certFile != "" && ws.keyFile != "" {
		logger.Infof("Using TLS with cert: %s, key: %s", ws.certFile, ws.keyFile)
		return ws.server.ListenAndServeTLS(ws.certFile, ws.keyFile)
	}

	logger.Infof("WARNING: Running without TLS. Make sure you have a HTTPS proxy in front of this server")
	return ws.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (ws *WebhookServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}
