package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ohowland/sldcore/internal/pkg/database/mongodb"
	"github.com/ohowland/sldcore/internal/pkg/datastreams/mqtt"
	"github.com/ohowland/sldcore/internal/pkg/datastreams/natshandler"
	"github.com/ohowland/sldcore/internal/pkg/datastreams/sqldb"
	"github.com/ohowland/sldcore/internal/pkg/msg"
	"github.com/ohowland/sldcore/internal/pkg/store"
	"github.com/ohowland/sldcore/internal/pkg/web"
	"github.com/ohowland/sldcore/internal/pkg/webservice"
)

// stopper is a running event handler.
type stopper interface {
	Stop()
}

func main() {
	log.Println("[Main] Starting sldcore v0.1.0")
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	configDir := os.Getenv("SLDCORE_CONFIG")
	if configDir == "" {
		configDir = "./config"
	}

	log.Println("[Main] Building Store")
	diagram, err := store.New()
	if err != nil {
		panic(err)
	}

	log.Println("[Main] Linking Event Handlers")
	handlers := linkHandlers(configDir, diagram)

	log.Println("[Main] Building Webservice")
	server, err := webservice.New(filepath.Join(configDir, "webservice.json"), diagram)
	if err != nil {
		panic(err)
	}
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Println("[Main]", err)
			sigs <- syscall.SIGTERM
		}
	}()

	<-sigs
	log.Println("[Main] Stopping system")
	for _, h := range handlers {
		h.Stop()
	}
}

// linkHandlers starts every handler whose config file is present. A missing
// config disables that handler.
func linkHandlers(configDir string, system msg.Publisher) []stopper {
	handlers := make([]stopper, 0)
	exists := func(path string) bool {
		_, err := os.Stat(path)
		return err == nil
	}

	if path := filepath.Join(configDir, "database", "mongodb_config.json"); exists(path) {
		h, err := mongodb.New(path, system)
		if err != nil {
			panic(err)
		}
		go h.Process()
		handlers = append(handlers, &h)
		log.Println("[Main] Connected MongoDB Service")
	}

	if path := filepath.Join(configDir, "datastreams", "nats.json"); exists(path) {
		h, err := natshandler.New(path, system)
		if err != nil {
			panic(err)
		}
		go h.Process()
		handlers = append(handlers, &h)
		log.Println("[Main] Connected NATS Stream")
	}

	if path := filepath.Join(configDir, "datastreams", "mqtt.json"); exists(path) {
		h, err := mqtt.New(path, system)
		if err != nil {
			panic(err)
		}
		go h.Process()
		handlers = append(handlers, &h)
		log.Println("[Main] Connected MQTT Stream")
	}

	if path := filepath.Join(configDir, "datastreams", "sqldb.json"); exists(path) {
		h, err := sqldb.New(path, system)
		if err != nil {
			panic(err)
		}
		go h.Process()
		handlers = append(handlers, &h)
		log.Println("[Main] Connected SQL Journal")
	}

	if path := filepath.Join(configDir, "webhook.json"); exists(path) {
		h, err := web.New(path, system)
		if err != nil {
			panic(err)
		}
		go h.Process()
		handlers = append(handlers, &h)
		log.Println("[Main] Connected Webhook")
	}
	return handlers
}
