// Package dashboard hosts the realtime side: one synchronizer per connected
// dashboard session, streaming order snapshots and alert commands.
package dashboard

import (
	"context"
	"net/http"
	"strconv"

	"github.com/CesarCrz/cEatsv2-sub000/internal/common/config"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/db"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/httpx"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/metrics"
	"github.com/CesarCrz/cEatsv2-sub000/internal/common/mq"
	dash "github.com/CesarCrz/cEatsv2-sub000/internal/dashboard"
	"github.com/CesarCrz/cEatsv2-sub000/internal/feed"
	"github.com/CesarCrz/cEatsv2-sub000/internal/store"
)

func Run(ctx context.Context, cfg config.App, port int) error {
	conn, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer conn.Close()

	// The dashboard never writes orders, but declaring the topology up
	// front means a dashboard can come up before the first api instance.
	client, err := mq.Dial(cfg.Rabbit)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := client.Ping(); err != nil {
		return err
	}
	if err := client.DeclareAll(); err != nil {
		return err
	}

	orders := store.NewOrders(conn, feed.NewPublisher(client))
	hub := dash.NewHub()
	defer hub.Shutdown()

	h := dash.NewHandler(hub, orders, orders, feed.NewRabbitFeed(cfg.Rabbit), cfg.Dashboard)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", metrics.Handler())

	srv := httpx.New(":"+strconv.Itoa(port), mux)
	return srv.Run(ctx)
}
