package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	myGrpc "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/grpc"
	myHttp "github.com/Miraines/MoonyAndStarry/credential-service/internal/adapters/transport/http"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/app/auth/jwt"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/app/auth/password"
	appsvc "github.com/Miraines/MoonyAndStarry/credential-service/internal/app/auth/service"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/config"
	lg "github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/log"
	"github.com/Miraines/MoonyAndStarry/credential-service/internal/infra/server"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load config", zap.Error(err))
	}

	zapLog := lg.Must(cfg.LogLevel)
	defer zapLog.Sync()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(rootCtx, cfg, zapLog)
	if err != nil {
		zapLog.Fatal("failed to open credential store", zap.Error(err))
	}
	defer st.Close()

	hasher, err := password.New(cfg.HashAlgorithm, cfg.HashWorkFactor, cfg.PasswordPepper)
	if err != nil {
		zapLog.Fatal("failed to init password hasher", zap.Error(err))
	}
	jwtUtil, err := jwt.NewJWTUtil(cfg)
	if err != nil {
		zapLog.Fatal("failed to init JWT util", zap.Error(err))
	}
	svc, err := appsvc.New(st.accounts, hasher, jwtUtil, cfg, validator.New())
	if err != nil {
		zapLog.Fatal("failed to init auth service", zap.Error(err))
	}

	grpcHandler := myGrpc.NewHandler(svc, st.health, zapLog)

	gin.SetMode(gin.ReleaseMode)
	router := myHttp.NewRouter(rootCtx, myHttp.NewHandler(svc, cfg, zapLog, st.health))
	srv := &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		return server.StartGRPCServer(ctx, cfg, grpcHandler, zapLog)
	})

	g.Go(func() error {
		zapLog.Info("HTTP server listening",
			zap.String("addr", cfg.HTTPAddress),
			zap.Bool("tls", cfg.TLSEnabled()),
		)
		var err error
		if cfg.TLSEnabled() {
			err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zapLog.Info("shutdown signal received")

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctxShutdown)
	})

	if err := g.Wait(); err != nil {
		zapLog.Error("server terminated", zap.Error(err))
		os.Exit(1)
	}
}
