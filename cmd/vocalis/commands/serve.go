package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haivivi/vocalis/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service",
	Long: `Run the HTTP service until interrupted.

Routes:
  POST   /process_audio   classify uploaded files (5 s segments)
  GET    /audio_results   verdict log
  POST   /enroll          enroll a speaker
  POST   /verify          verify a speaker
  GET    /users           list enrolled users
  GET    /users/{name}    check enrollment
  DELETE /users/{name}    delete a voiceprint
  GET    /healthz         liveness

Examples:
  vocalis serve --addr :8000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.pipeline(true)
	if err != nil {
		return err
	}
	rs, err := a.resultStore()
	if err != nil {
		return err
	}
	enr, err := a.enroller()
	if err != nil {
		return err
	}
	ver, err := a.verifier()
	if err != nil {
		return err
	}

	srv := server.New(server.Deps{
		Pipeline: p,
		Results:  rs,
		Enroller: enr,
		Verifier: ver,
		Speaker:  a.speakerLoader(),
	},
		server.WithMaxUpload(a.cfg.Server.MaxUpload()),
		server.WithLogger(a.logger),
	)

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("vocalis listening", "addr", addr)
	return srv.ListenAndServe(ctx, addr)
}
