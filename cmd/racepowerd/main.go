package main

import (
	"flag"
	"net/http"
	"time"

	"racepower-backend/lib/configutil"
	"racepower-backend/lib/serviceutil"
	"racepower-backend/lib/zwiftpower"
	"racepower-backend/services/racedata"
)

type Config struct {
	Port            int    `json:"port"`
	BaseUrl         string `json:"base_url"`
	AuthBaseUrl     string `json:"auth_base_url"`
	ActivityBaseUrl string `json:"activity_base_url"`
	TimeoutSeconds  int    `json:"timeout_seconds"`
	Workers         int    `json:"workers"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	svc := racedata.NewService(racedata.ServiceOptions{
		Client: zwiftpower.ClientOptions{
			BaseUrl:         cfg.BaseUrl,
			AuthBaseUrl:     cfg.AuthBaseUrl,
			ActivityBaseUrl: cfg.ActivityBaseUrl,
			Timeout:         time.Duration(cfg.TimeoutSeconds) * time.Second,
			Workers:         cfg.Workers,
		},
	})

	mux := http.NewServeMux()
	RegisterRoutes(mux, svc)

	go serviceutil.StartHttpServer(cfg.Port, mux)
	<-ctx.Done()
}
