package serve

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/dStream/cmd/util"
	"github.com/ValentinKolb/dStream/lib/session"
	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/ValentinKolb/dStream/rpc/server"
	vm "github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"
)

var (
	ServeCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start a streaming endpoint",
		Long: `Start a streaming endpoint that accepts websocket connections on /api/messages and optionally a local pipe.
Inbound activities are answered by an echo processor. The websocket endpoint and the pipe each hold one peer at a time: a new websocket peer replaces the previous websocket peer, a pipe peer never replaces a websocket peer. Conversations are shared between both. The configuration can be set via command line flags or environment variables. The format of the environment variables is DSTREAM_<flag> (e.g. DSTREAM_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupStreamFlags(ServeCmd)

	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, common.DefaultStreamConfig().Endpoint, cmdUtil.WrapString("The address on which websocket connections and metrics are served"))

	key = "pipe"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Also accept connections on this pipe (unix socket path or windows pipe name)"))

	key = "user-agent"
	ServeCmd.PersistentFlags().String(key, common.DefaultUserAgent, cmdUtil.WrapString("The user agent reported by the version endpoint"))
}

// processConfig binds the command line flags to viper
func processConfig(cmd *cobra.Command, _ []string) error {
	return cmdUtil.BindCommandFlags(cmd)
}

// run starts the http server (and pipe listener) and blocks until SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	config, err := cmdUtil.GetStreamConfig()
	if err != nil {
		return err
	}

	// websocket and pipe peers get their own connection and share the conversations
	sessions := session.NewRegistry()
	opts := []server.Option{
		server.WithCredentials(cmdUtil.GetCredentials()),
		server.WithSessionRegistry(sessions),
	}

	h, err := server.NewStreamingHandler(config, cmdUtil.EchoProcessor, opts...)
	if err != nil {
		return err
	}
	defer h.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle(common.PathMessages, h)
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		vm.WritePrometheus(w, true)
	})

	srv := &http.Server{
		Addr:    config.Endpoint,
		Handler: mux,
	}

	errCh := make(chan error, 2)

	if config.PipeName != "" {
		pipeHandler, err := server.NewStreamingHandler(config, cmdUtil.EchoProcessor, opts...)
		if err != nil {
			return err
		}
		defer pipeHandler.Close()

		go func() {
			cmdUtil.Logger.Infof("Listening on pipe %s", config.PipeName)
			if err := pipeHandler.ListenPipe(ctx, config.PipeName); err != nil {
				errCh <- err
			}
		}()
	}

	go func() {
		cmdUtil.Logger.Infof("Listening on %s", config.Endpoint)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		cmdUtil.Logger.Infof("Shutting down")
	case err := <-errCh:
		return err
	}

	// websocket handlers block until their connection is gone, so close it first
	h.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
