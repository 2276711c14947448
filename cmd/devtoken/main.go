// Command devtoken prints a signed bearer token for local testing. It refuses
// to run when APP_ENV is production.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	jwttoken "donorlink/internal/jwt_token"
	"donorlink/internal/platform/config"
)

func main() {
	subject := flag.String("sub", "", "donor or requester id")
	phone := flag.String("phone", "", "phone number claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		slog.Error("devtoken is disabled in production")
		os.Exit(1)
	}

	svc, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		slog.Error("failed to build token service", "error", err)
		os.Exit(1)
	}
	token, err := svc.GenerateAccessToken(*subject, *phone, *ttl)
	if err != nil {
		slog.Error("failed to issue token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
