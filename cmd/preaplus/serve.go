package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/sesampe/preaplus/intake"
	"github.com/sesampe/preaplus/internal/logutil"
	"github.com/sesampe/preaplus/whatsapp"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the WhatsApp webhook server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			bind := strings.TrimSpace(flagOrViperString(cmd, "bind", "server.bind"))
			if bind == "" {
				bind = "0.0.0.0"
			}
			port := flagOrViperInt(cmd, "port", "server.port")
			if port <= 0 {
				port = 8080
			}

			verifyToken := flagOrViperString(cmd, "verify-token", "whatsapp.verify_token")
			waToken := flagOrViperString(cmd, "wa-token", "whatsapp.token")
			waPhoneID := flagOrViperString(cmd, "wa-phone-id", "whatsapp.phone_number_id")
			if strings.TrimSpace(waToken) == "" || strings.TrimSpace(waPhoneID) == "" {
				return fmt.Errorf("missing whatsapp.token or whatsapp.phone_number_id (flags or %s_WHATSAPP_* env)", envPrefix)
			}

			reg, err := registryFromFlags(cmd)
			if err != nil {
				return err
			}
			store, stateDir, err := storeFromFlags(cmd, logger)
			if err != nil {
				return err
			}

			sink, err := sinkFromFlags(stateDir, logger)
			if err != nil {
				return err
			}

			engine := intake.NewEngine(intake.EngineOptions{
				Registry: reg,
				Store:    store,
				Remote:   remoteFromViper(logger),
				Sink:     sink,
				Logger:   logger,
			})
			sender := whatsapp.NewSender(
				flagOrViperString(cmd, "wa-base-url", "whatsapp.base_url"),
				waToken, waPhoneID,
				flagOrViperDuration(cmd, "wa-timeout", "whatsapp.timeout"),
			)

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)

			r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"ok":   true,
					"time": time.Now().Format(time.RFC3339Nano),
				})
			})
			r.Get("/webhook", func(w http.ResponseWriter, req *http.Request) {
				challenge, ok := whatsapp.VerifySubscription(req.URL.Query(), verifyToken)
				if !ok {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
				_, _ = w.Write([]byte(challenge))
			})
			r.Post("/webhook", func(w http.ResponseWriter, req *http.Request) {
				messages, err := whatsapp.DecodeWebhook(req.Body)
				if err != nil {
					logger.Warn("webhook_decode_failed", "error", err)
					// 200 regardless: the platform retries on non-2xx and
					// a malformed payload will not get better.
					w.WriteHeader(http.StatusOK)
					return
				}
				for _, msg := range messages {
					go handleInbound(engine, sender, logger, msg)
				}
				w.WriteHeader(http.StatusOK)
			})

			addr := fmt.Sprintf("%s:%d", bind, port)
			logger.Info("server_listening", "addr", addr)
			return http.ListenAndServe(addr, r)
		},
	}

	cmd.Flags().String("bind", "0.0.0.0", "Bind address.")
	cmd.Flags().Int("port", 8080, "Listen port.")
	cmd.Flags().String("verify-token", "", "Webhook verification token.")
	cmd.Flags().String("wa-token", "", "WhatsApp Cloud API access token.")
	cmd.Flags().String("wa-phone-id", "", "WhatsApp business phone number id.")
	cmd.Flags().String("wa-base-url", "", "WhatsApp API base URL override.")
	cmd.Flags().Duration("wa-timeout", 15*time.Second, "WhatsApp API request timeout.")
	cmd.Flags().String("modules-file", "", "YAML file with module prompt overrides.")
	cmd.Flags().String("state-dir", "", "Directory for session snapshots and completed records (empty = in-memory).")

	return cmd
}

// handleInbound runs one message through the engine and sends the replies.
// Send failures are logged and never roll back dialogue state.
func handleInbound(engine *intake.Engine, sender *whatsapp.Sender, logger *slog.Logger, msg whatsapp.InboundText) {
	// runs outside the HTTP handler, so the router's Recoverer cannot catch it
	defer func() {
		if r := recover(); r != nil {
			logger.Error("turn_panicked", "subject", msg.From, "panic", r)
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	turn, err := engine.HandleInbound(ctx, msg.From, msg.MessageID, msg.Text)
	if err != nil {
		logger.Error("turn_failed", "subject", msg.From, "error", err)
		return
	}
	for _, reply := range turn.Replies {
		if err := sender.SendText(ctx, msg.From, reply); err != nil {
			logger.Error("send_failed", "subject", msg.From, "error", err)
		}
	}
}
