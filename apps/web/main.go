package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-portal/apps/shared"
	"github.com/trezcool/masomo-portal/apps/web/echo"
	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/portal"
	"github.com/trezcool/masomo-portal/services/logger"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "PORTAL : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	defer logger.Close()

	ctx := context.Background()
	stack, err := shared.NewAuthStack(ctx, conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up auth: %v", err), err)
	}
	defer func() {
		if err = stack.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing session storage: %v", err), err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)

	p := portal.New(stack.Client, logger)
	p.Init(ctx)
	if usr, ok := p.User(); ok {
		logger.Info(fmt.Sprintf("resumed session of %s", usr.Email), usr)
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	expvar.Publish("authState", expvar.Func(func() interface{} { return stack.Client.State().String() }))

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start Portal

	server, err := echoweb.NewServer(echoweb.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Portal:     p,
		Validate:   validate,
		Translator: translator,
		Metrics:    echoweb.NewMetrics(),
	})
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up server: %v", err), err)
	}

	go server.Start()
	logger.Info(fmt.Sprintf("portal listening on http://%s", conf.Server.Address))

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}
