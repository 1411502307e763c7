package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"agcubio-server/config"
	"agcubio-server/game"
	"agcubio-server/network"
	"agcubio-server/stats"
)

var upgrader = websocket.Upgrader{
	// browser clients are served from anywhere
	CheckOrigin:       func(r *http.Request) bool { return true },
	ReadBufferSize:    network.PacketSize,
	WriteBufferSize:   4096,
	EnableCompression: true,
}

// loadOptions reads path, writing the defaults there first when it does not
// exist. A broken file is logged and the defaults are used.
func loadOptions(path string) config.Options {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := config.WriteDefault(path); err != nil {
			log.Printf("write default options: %v", err)
		}
	}
	opts, err := config.Load(path)
	if err != nil {
		log.Printf("%v; using defaults", err)
		opts = config.Default()
	}
	if err := config.ApplyEnv(&opts); err != nil {
		log.Printf("environment overrides: %v", err)
	}
	return opts
}

func openStore(dsn string) (stats.Store, error) {
	if dsn == "" {
		return stats.NewMemoryStore(), nil
	}
	return stats.OpenSQLite(dsn)
}

// newMux serves the health probe and the websocket entry to srv.
func newMux(srv *game.Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("ws upgrade error: %v", err)
			return
		}
		s := network.Adopt(network.WebSocketConn(ws), srv.Handshake)
		log.Printf("conn %s: websocket client from %s", s.Session, s.RemoteAddr())
	})
	return mux
}

func main() {
	optionsPath := flag.String("options", "agcubio-options.json", "world options file")
	flag.Parse()

	opts := loadOptions(*optionsPath)
	if err := opts.Validate(); err != nil {
		log.Fatalf("options: %v", err)
	}

	store, err := openStore(opts.StatsDSN)
	if err != nil {
		log.Fatalf("stats store: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := game.New(opts, store)

	gameAddr := fmt.Sprintf(":%d", opts.GamePortNumber)
	ln, err := network.Listen(ctx, srv.Handshake, gameAddr)
	if err != nil {
		log.Fatalf("game listener: %v", err)
	}

	web := &http.Server{
		Addr:        fmt.Sprintf(":%d", opts.WebPortNumber),
		Handler:     newMux(srv),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		if err := web.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("web server: %v", err)
		}
	}()

	log.Printf("server listening on %s (web %s, world %dx%d, heartbeat %v)",
		ln.Addr(), web.Addr, opts.Width, opts.Height, opts.Heartbeat)

	runErr := srv.Run(ctx)
	if runErr != nil {
		log.Printf("game loop: %v", runErr)
	}

	log.Println("shutting down")
	ln.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := web.Shutdown(shutdownCtx); err != nil {
		log.Printf("web shutdown: %v", err)
	}
	srv.Close()
	if err := store.Close(); err != nil {
		log.Printf("stats store close: %v", err)
	}

	if runErr != nil {
		os.Exit(1)
	}
	log.Println("server stopped")
}
