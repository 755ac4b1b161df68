package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
	"github.com/spf13/cobra"
	"github.com/yizucodes/interview-agent/app/client/cartesia"
	"github.com/yizucodes/interview-agent/app/client/embedding"
	"github.com/yizucodes/interview-agent/app/client/roomrtc"
	"github.com/yizucodes/interview-agent/app/client/speechkit"
	"github.com/yizucodes/interview-agent/app/config"
	"github.com/yizucodes/interview-agent/app/service/gate"
	"github.com/yizucodes/interview-agent/app/service/ingest"
	"github.com/yizucodes/interview-agent/app/service/interview"
	"github.com/yizucodes/interview-agent/app/service/retrieval"
	"github.com/yizucodes/interview-agent/app/service/session"
	"github.com/yizucodes/interview-agent/app/service/store"
	"github.com/yizucodes/interview-agent/app/service/tokensrv"
	"github.com/yizucodes/interview-agent/app/service/voice"
	"github.com/yizucodes/interview-agent/app/util/mylog"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "interview-agent",
		Short: "Voice-based technical interview agent",
	}

	rootCmd.AddCommand(serveCmd(), ingestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the interview agent and token server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func ingestCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a project documentation file into the vector store",
		Run: func(cmd *cobra.Command, args []string) {
			runIngest(file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the documentation file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runServe() {
	di := do.New()
	defer di.Shutdown()
	defer log.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	provideAll(di)
	do.Provide(di, speechkit.NewClient)
	do.Provide(di, cartesia.NewClient)
	do.Provide(di, interview.New)
	do.Provide(di, voice.New)
	do.Provide(di, session.New)
	do.Provide(di, tokensrv.New)

	slog.Info("Service started")

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		log.Info("Shutting down...")

		cancel()
	}()

	go do.MustInvoke[*session.Service](di).Dispatch(appCtx)

	go func() {
		if err := do.MustInvoke[*tokensrv.Service](di).Run(appCtx); err != nil {
			slog.Error("Token server stopped", "error", err)
			cancel()
		}
	}()

	<-appCtx.Done()
}

func runIngest(file string) {
	di := do.New()
	defer di.Shutdown()

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	if err = mylog.Init(cfg); err != nil {
		log.Fatalf("logging init failed: %v", err)
	}

	provideAll(di)
	do.Provide(di, ingest.New)

	if err = do.MustInvoke[*ingest.Service](di).Run(appCtx, file); err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	slog.Info("Ingest finished", "file", file)
}

func provideAll(di *do.Injector) {
	do.Provide(di, roomrtc.NewClient)
	do.Provide(di, embedding.NewClient)
	do.Provide(di, store.New)
	do.Provide(di, retrieval.New)
	do.Provide(di, gate.New)
}
