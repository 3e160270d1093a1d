package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jakeliukayak/queue/internal/config"
	"github.com/jakeliukayak/queue/internal/httpapi"
	"github.com/jakeliukayak/queue/internal/hub"
	"github.com/jakeliukayak/queue/internal/livesync"
	"github.com/jakeliukayak/queue/internal/models"
	"github.com/jakeliukayak/queue/internal/notify"
	"github.com/jakeliukayak/queue/internal/queue"
	"github.com/jakeliukayak/queue/internal/store/postgres"
	"github.com/jakeliukayak/queue/internal/telemetry"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfg := config.Load()

	shutdownTelemetry := telemetry.Setup(telemetry.Config{
		ServiceName: "queue-service",
		Endpoint:    cfg.OTLPEndpoint,
		Insecure:    cfg.OTLPInsecure,
	})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTelemetry(ctx)
	}()

	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	st := postgres.NewStore(pool)

	dispatcher := notify.NewDispatcher(
		notify.NewSMSSender(notify.SMSConfig{
			Provider:   cfg.SMSProvider,
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFrom,
		}),
		notify.NewEmailSender(notify.EmailConfig{
			Provider: cfg.EmailProvider,
			APIKey:   cfg.ResendAPIKey,
			From:     cfg.EmailFrom,
		}),
		notify.DispatcherConfig{
			QueueName:          cfg.QueueName,
			DefaultCountryCode: cfg.DefaultCountryCode,
		},
	)

	engine := queue.NewEngine(st, dispatcher)
	handler := httpapi.NewHandler(engine)

	h := hub.New()
	feed := livesync.NewFeed(st, livesync.Config{
		PollInterval: cfg.ChangePollInterval,
		BatchSize:    cfg.ChangeBatchSize,
	})
	waitingSub := feed.SubscribeWaiting(func(waiting []models.Ticket) {
		payload, err := json.Marshal(waiting)
		if err != nil {
			log.Printf("marshal waiting view: %v", err)
			return
		}
		h.Broadcast(payload, hub.ViewQueue)
	})
	defer waitingSub.Cancel()
	calledSub := feed.SubscribeCalled(func(ticket *models.Ticket) {
		payload, err := json.Marshal(ticket)
		if err != nil {
			log.Printf("marshal called view: %v", err)
			return
		}
		h.Broadcast(payload, hub.ViewCalled)
	})
	defer calledSub.Cancel()

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	sockjsHandler := sockjs.NewHandler("/realtime", sockjs.DefaultOptions, func(session sockjs.Session) {
		client := &hub.Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
		h.Register(client)
		defer h.Unregister(client)

		go func() {
			for msg := range client.Send {
				_ = session.Send(string(msg))
			}
		}()

		for {
			msg, err := session.Recv()
			if err != nil {
				return
			}
			parsed, ok := hub.ParseSubscribe([]byte(msg))
			if !ok {
				continue
			}
			if parsed.Action == "unsubscribe" {
				h.UpdateView(client, "")
			} else {
				h.UpdateView(client, parsed.View)
			}
		}
	})
	mux.Handle("/realtime/", sockjsHandler)

	otelHandler := otelhttp.NewHandler(httpapi.LoggingMiddleware(mux), "queue-service")
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      otelHandler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	go feed.Run(ctx)

	go func() {
		if cfg.CompletionInterval <= 0 {
			return
		}
		ticker := time.NewTicker(cfg.CompletionInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				count, err := st.CompleteDue(sweepCtx, cfg.CompletionDelay, cfg.CompletionBatchSize)
				cancel()
				if err != nil {
					log.Printf("completion sweep error: %v", err)
					continue
				}
				if count > 0 {
					log.Printf("completion sweep closed %d tickets", count)
				}
			}
		}
	}()

	go func() {
		log.Printf("queue-service listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancelBackground()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
