// Command server answers probability queries over a generated table and
// reloads it when the file changes.
package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xtding233/dicepool-tables/internal/config"
	"github.com/xtding233/dicepool-tables/internal/server"
	"github.com/xtding233/dicepool-tables/internal/watch"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

var (
	addr      = flag.String("listen", ":8080", "HTTP listening address")
	grpcAddr  = flag.String("grpc", ":8081", "gRPC health listening address (empty disables)")
	tablePath = flag.String("table", config.DefaultOutput, "probability table artifact")
	interval  = flag.Duration("watch", 5*time.Second, "artifact poll interval (0 disables reload)")
	logLevel  = flag.String("log.level", "info", "log level (trace debug info warn error)")

	log = logrus.WithField("module", "server")
)

func main() {
	flag.Parse()
	if err := config.ConfigureLogging(*logLevel); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(*tablePath, log)
	w := watch.NewArtifactWatcher(*tablePath, *interval, func(st watch.Stamp) { srv.OnChange(st.Path) }, log)
	// prime before loading so a write in between is still reported
	w.Prime()
	if err := srv.Reload(); err != nil {
		// keep serving 503s until the artifact appears
		log.WithError(err).Warn("initial load failed")
	}
	if *interval > 0 {
		go func() { _ = w.Run(ctx) }()
	}

	var gs *grpc.Server
	if *grpcAddr != "" {
		lis, err := net.Listen("tcp", *grpcAddr)
		if err != nil {
			log.Fatalf("grpc listen: %v", err)
		}
		gs = grpc.NewServer()
		healthpb.RegisterHealthServer(gs, srv.Health())
		go func() {
			if err := gs.Serve(lis); err != nil {
				log.WithError(err).Error("grpc serve")
			}
		}()
		log.Infof("grpc health listening on %s ...", *grpcAddr)
	}

	hs := &http.Server{Addr: *addr, Handler: srv.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
		if gs != nil {
			gs.GracefulStop()
		}
	}()

	log.Infof("listening on %s ...", *addr)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
