// Command fairtrace runs the supply-chain traceability ledger as an HTTP
// service, or replays the farm-to-shelf scenario in the terminal.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"fairtrace/internal/adapters/ledger"
	"fairtrace/internal/blob"
	"fairtrace/internal/config"
	"fairtrace/internal/core"
	"fairtrace/internal/infra/persistence/memory"
	"fairtrace/internal/obs"
	"fairtrace/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(execute(os.Args, os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	app := newApp(stdout, stderr)
	if err := app.Run(args); err != nil {
		var coder cli.ExitCoder
		if errors.As(err, &coder) {
			if msg := coder.Error(); msg != "" {
				_, _ = fmt.Fprintln(stderr, msg)
			}
			return coder.ExitCode()
		}
		_, _ = fmt.Fprintf(stderr, "fairtrace: %v\n", err)
		return 1
	}
	return 0
}

func newApp(stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "fairtrace",
		Usage:     "farm-to-shelf product traceability ledger",
		Writer:    stdout,
		ErrWriter: stderr,
		// exit codes are handled by execute
		ExitErrHandler: func(*cli.Context, error) {},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "serve the ledger HTTP API (configured through FAIRTRACE_* variables)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Usage: "listen address, overrides FAIRTRACE_HTTP_ADDR"},
				},
				Action: func(c *cli.Context) error { return serve(c, stderr) },
			},
			{
				Name:  "demo",
				Usage: "register one product, move it to the shelf and print its trace and the ledger",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "farmer", Value: "Ram", Usage: "farmer registering the product"},
					&cli.StringFlag{Name: "product", Value: "Organic Coffee", Usage: "product name"},
					&cli.StringFlag{Name: "base-price", Value: "100.00", Usage: "farmer price (INR)"},
					&cli.StringFlag{Name: "distributor-price", Value: "150.00", Usage: "distributor price (INR)"},
					&cli.StringFlag{Name: "retail-price", Value: "220.00", Usage: "consumer price (INR)"},
					&cli.BoolFlag{Name: "trace", Usage: "emit JSON spans for every service operation to stderr"},
				},
				Action: func(c *cli.Context) error { return demo(c, stdout, stderr) },
			},
		},
	}
}

// server bundles everything serve starts and later tears down.
type server struct {
	logger  *logrus.Logger
	handler http.Handler
	archive domain.ArchiveSink
}

func (s *server) close() error {
	if s.archive == nil {
		return nil
	}
	return s.archive.Close()
}

// shutdownOps drains HTTP before closing the archive. gfshutdown runs map
// entries concurrently, so the two steps share one operation: in-flight
// requests may still be mirroring committed entries.
func (s *server) shutdownOps(httpServer *http.Server) map[string]gfshutdown.Operation {
	return map[string]gfshutdown.Operation{
		"http": func(ctx context.Context) error {
			s.logger.Info("draining http server")
			err := httpServer.Shutdown(ctx)
			if cerr := s.close(); err == nil {
				err = cerr
			}
			return err
		},
	}
}

func buildServer(ctx context.Context, cfg config.Config, logOut io.Writer) (*server, error) {
	logger, err := obs.NewLogger(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := core.NewPrometheusRecorder(registry)
	if err != nil {
		return nil, err
	}
	archive, err := core.OpenArchive(ctx, cfg.Archive())
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	exports, err := blob.Open(ctx, cfg.Blob())
	if err != nil {
		if archive != nil {
			_ = archive.Close()
		}
		return nil, errors.Wrap(err, "open blob store")
	}

	store := core.NewMemoryStore(core.NewDefaultRulesEngine(), memory.WithIDPrefix(cfg.IDPrefix))
	svc := core.NewService(store,
		core.WithLogger(obs.NewServiceLogger(logger)),
		core.WithMetricsRecorder(recorder),
		core.WithArchive(archive),
	)
	h := ledger.NewHandler(svc)
	h.Exports = ledger.NewExporter(svc, exports)
	h.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	h.Logger = logger.WithField("component", "http")

	logger.WithFields(logrus.Fields{
		"archive": cfg.ArchiveDrivers,
		"blob":    exports.Driver(),
	}).Info("ledger service ready")
	return &server{logger: logger, handler: h.Router(), archive: archive}, nil
}

func serve(c *cli.Context, logOut io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if c.IsSet("addr") {
		cfg.HTTPAddr = c.String("addr")
	}
	s, err := buildServer(c.Context, cfg, logOut)
	if err != nil {
		return err
	}
	ln, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		_ = s.close()
		return errors.Wrapf(err, "listen on %s", cfg.HTTPAddr)
	}
	httpServer := &http.Server{Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.WithError(err).Error("http server stopped")
		}
	}()
	s.logger.WithField("addr", ln.Addr().String()).Info("listening")

	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.ShutdownTimeout, s.shutdownOps(httpServer))
	if code := <-wait; code != 0 {
		return cli.Exit("shutdown did not complete cleanly", code)
	}
	s.logger.Info("shutdown complete")
	return nil
}

func parsePrice(c *cli.Context, flag string) (decimal.Decimal, error) {
	p, err := decimal.NewFromString(c.String(flag))
	if err != nil {
		return decimal.Decimal{}, cli.Exit(fmt.Sprintf("invalid --%s %q", flag, c.String(flag)), 2)
	}
	return p, nil
}

func demo(c *cli.Context, stdout, stderr io.Writer) error {
	var prices [3]decimal.Decimal
	for i, flag := range []string{"base-price", "distributor-price", "retail-price"} {
		p, err := parsePrice(c, flag)
		if err != nil {
			return err
		}
		prices[i] = p
	}
	var opts []core.ServiceOption
	if c.Bool("trace") {
		opts = append(opts, core.WithTracer(core.NewJSONTracer(stderr)))
	}
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), opts...)
	ctx := c.Context

	product, err := svc.Register(ctx, core.RegisterInput{FarmerName: c.String("farmer"), ProductName: c.String("product"), Price: prices[0]})
	if err != nil {
		return err
	}
	if _, err := svc.PurchaseFromFarmer(ctx, product.ID, prices[1]); err != nil {
		return err
	}
	if _, err := svc.PurchaseFromDistributor(ctx, product.ID, prices[2]); err != nil {
		return err
	}

	report, err := svc.Trace(ctx, product.ID)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Trace for %s (%s)\n", report.ProductID, report.ProductName)
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}

	records, err := svc.Ledger(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, "\nLedger")
	return printLedger(stdout, records)
}

func printLedger(w io.Writer, records []domain.TransferRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "Timestamp\tProductID\tProductName\tOwner\tPrice (INR)\tAction\tPreviousOwner")
	for _, r := range records {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Timestamp.Format(ledger.ExportTimeLayout), r.ProductID, r.ProductName, r.Owner,
			ledger.FormatINR(r.Price), r.Action, r.PreviousOwner)
	}
	return tw.Flush()
}
