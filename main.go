package main

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron"

	"github.com/Krishiv200719/Airline-delay-visual-analytics/chart"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/config"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/datapush"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/dataset"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/datasource/email"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/datasource/file"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/export"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/processor"
	"github.com/Krishiv200719/Airline-delay-visual-analytics/storage"
)

const defaultHistBins = 50

const usageText = `Airline delay analytics.

Usage: %s <command> [flags]

Commands:
  summary   load the data directory and print dataset totals
  stats     aggregate delay statistics by airline, airport or month
  charts    render bar, histogram and heatmap PNGs
  export    write aggregate statistics to CSV and XLSX
  filter    dump the flights matching the given criteria
  report    summary, charts and exports in one run, optionally mailed
  watch     keep watching the data directory, regenerate on change
  fetch     pull data attachments from the configured mailbox

Run '%s <command> -h' for the flags of a single command.
`

func usage() {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, usageText, prog, prog)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "summary":
		err = cmdSummary(args)
	case "stats":
		err = cmdStats(args)
	case "charts":
		err = cmdCharts(args)
	case "export":
		err = cmdExport(args)
	case "filter":
		err = cmdFilter(args)
	case "report":
		err = cmdReport(args)
	case "watch":
		err = cmdWatch(args)
	case "fetch":
		err = cmdFetch(args)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app bundles what every subcommand needs.
type app struct {
	cfg    *config.Config
	dcfg   *config.DataConfig
	log    *storage.Logger
	loader *file.Loader
}

func newApp(configDir string) (*app, error) {
	cfg, dcfg, err := config.LoadConfig(configDir, "config.json", "dataconfig.json")
	usedDefaults := false
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		cfg, dcfg = config.Default(), config.DefaultData()
		usedDefaults = true
	}

	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	if usedDefaults {
		logger.Warning(fmt.Sprintf("no configuration under %s, using built-in defaults", configDir))
	}

	return &app{
		cfg:    cfg,
		dcfg:   dcfg,
		log:    logger,
		loader: file.NewLoader(cfg, dcfg, logger),
	}, nil
}

func (a *app) close() {
	a.log.Close()
}

func (a *app) loadDataset(glob string) (*dataset.DelayDataset, *file.LoadReport, error) {
	if glob != "" {
		a.cfg.InputGlob = glob
	}
	return a.loader.LoadDir()
}

func (a *app) outputDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return a.cfg.OutputDir
}

// filterFlags are the record criteria shared by stats and filter.
type filterFlags struct {
	airline     string
	airport     string
	month       string
	minDelay    string
	maxDelay    string
	delayedOnly bool
	noCancelled bool
}

func registerFilterFlags(fs *flag.FlagSet) *filterFlags {
	f := &filterFlags{}
	fs.StringVar(&f.airline, "airline", "", "carrier code, e.g. UA")
	fs.StringVar(&f.airport, "airport", "", "airport code, matches either end of the route")
	fs.StringVar(&f.month, "month", "", "month name or number, e.g. March or 3")
	fs.StringVar(&f.minDelay, "min-delay", "", "minimum delay in minutes")
	fs.StringVar(&f.maxDelay, "max-delay", "", "maximum delay in minutes")
	fs.BoolVar(&f.delayedOnly, "delayed", false, "keep delayed flights only")
	fs.BoolVar(&f.noCancelled, "exclude-cancelled", false, "drop cancelled flights")
	return f
}

func (f *filterFlags) options() (dataset.FilterOptions, error) {
	opts := dataset.FilterOptions{
		Airline:          f.airline,
		Airport:          f.airport,
		Month:            f.month,
		DelayedOnly:      f.delayedOnly,
		ExcludeCancelled: f.noCancelled,
	}
	if f.minDelay != "" {
		v, err := strconv.Atoi(f.minDelay)
		if err != nil {
			return opts, fmt.Errorf("bad -min-delay %q", f.minDelay)
		}
		opts.MinDelay = &v
	}
	if f.maxDelay != "" {
		v, err := strconv.Atoi(f.maxDelay)
		if err != nil {
			return opts, fmt.Errorf("bad -max-delay %q", f.maxDelay)
		}
		opts.MaxDelay = &v
	}
	return opts, nil
}

// applyFilters narrows ds by the active criteria, logging what was asked.
func applyFilters(a *app, ds *dataset.DelayDataset, f *filterFlags) (*dataset.DelayDataset, error) {
	opts, err := f.options()
	if err != nil {
		return nil, err
	}
	crit := opts.Describe()
	if len(crit) == 0 {
		return ds, nil
	}
	a.log.Info("filtering: " + strings.Join(crit, ", "))
	return ds.Filter(opts)
}

func cmdSummary(args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	configDir := fs.String("config", "config", "configuration directory")
	input := fs.String("input", "", "override the input file glob, e.g. '2024-*.csv'")
	fs.Parse(args)

	a, err := newApp(*configDir)
	if err != nil {
		return err
	}
	defer a.close()

	ds, rep, err := a.loadDataset(*input)
	if err != nil {
		return err
	}

	s, err := processor.Summarize(ds)
	if err != nil {
		return err
	}

	fmt.Print(formatSummary(s, rep))
	return nil
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configDir := fs.String("config", "config", "configuration directory")
	by := fs.String("by", "airline", "grouping: airline, airport or month")
	ff := registerFilterFlags(fs)
	fs.Parse(args)

	dim, err := processor.ParseDimension(*by)
	if err != nil {
		return err
	}

	a, err := newApp(*configDir)
	if err != nil {
		return err
	}
	defer a.close()

	ds, _, err := a.loadDataset("")
	if err != nil {
		return err
	}

	ds, err = applyFilters(a, ds, ff)
	if err != nil {
		return err
	}

	stats, err := processor.GroupStats(ds, dim)
	if err != nil {
		return err
	}

	printStats(dim, stats)
	return nil
}

func cmdCharts(args []string) error {
	fs := flag.NewFlagSet("charts", flag.ExitOnError)
	configDir := fs.String("config", "config", "configuration directory")
	out := fs.String("out", "", "output directory (default from config)")
	only := fs.String("only", "", "render a single kind: bar, hist or heatmap")
	bins := fs.Int("bins", defaultHistBins, "histogram bin count")
	fs.Parse(args)

	switch *only {
	case "", "bar", "hist", "heatmap":
	default:
		return fmt.Errorf("unknown chart kind %q", *only)
	}

	a, err := newApp(*configDir)
	if err != nil {
		return err
	}
	defer a.close()

	ds, _, err := a.loadDataset("")
	if err != nil {
		return err
	}

	files, err := renderCharts(a, ds, a.outputDir(*out), *only, *bins)
	if err != nil {
		return err
	}

	fmt.Printf("%d charts written to %s\n", len(files), a.outputDir(*out))
	return nil
}

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configDir := fs.String("config", "config", "configuration directory")
	out := fs.String("out", "", "output directory (default from config)")
	format := fs.String("format", "both", "csv, xlsx or both")
	fs.Parse(args)

	switch *format {
	case "csv", "xlsx", "both":
	default:
		return fmt.Errorf("unknown export format %q", *format)
	}

	a, err := newApp(*configDir)
	if err != nil {
		return err
	}
	defer a.close()

	ds, _, err := a.loadDataset("")
	if err != nil {
		return err
	}

	files, err := exportStats(a, ds, a.outputDir(*out), *format)
	if err != nil {
		return err
	}

	fmt.Printf("%d files written to %s\n", len(files), a.outputDir(*out))
	return nil
}

func cmdFilter(args []string) error {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	configDir := fs.String("config", "config", "configuration directory")
	out := fs.String("out", "", "write records here (.csv or .xlsx); stdout when empty")
	ff := registerFilterFlags(fs)
	fs.Parse(args)

	a, err := newApp(*configDir)
	if err != nil {
		return err
	}
	defer a.close()

	ds, _, err := a.loadDataset("")
	if err != nil {
		return err
	}

	filtered, err := applyFilters(a, ds, ff)
	if err != nil {
		return err
	}

	if *out == "" {
		df := filtered.Frame()
		if err := df.WriteCSV(os.Stdout); err != nil {
			return fmt.Errorf("writing records: %w", err)
		}
		return nil
	}

	ex := export.NewExporter(a.cfg, a.log)
	if strings.EqualFold(filepath.Ext(*out), ".xlsx") {
		err = ex.RecordsXLSX(filtered, *out)
	} else {
		err = ex.RecordsCSV(filtered, *out)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%d of %d flights matched, written to %s\n", filtered.Len(), ds.Len(), *out)
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configDir := fs.String("config", "config", "configuration directory")
	out := fs.String("out", "", "output directory (default from config)")
	sendMail := fs.Bool("email", false, "mail the report artifacts to the configured recipients")
	fs.Parse(args)

	a, err := newApp(*configDir)
	if err != nil {
		return err
	}
	defer a.close()

	ds, rep, err := a.loadDataset("")
	if err != nil {
		return err
	}

	s, err := processor.Summarize(ds)
	if err != nil {
		return err
	}
	summary := formatSummary(s, rep)
	fmt.Print(summary)

	outDir := a.outputDir(*out)
	artifacts, err := renderCharts(a, ds, outDir, "", defaultHistBins)
	if err != nil {
		return err
	}
	exports, err := exportStats(a, ds, outDir, "both")
	if err != nil {
		return err
	}
	artifacts = append(artifacts, exports...)

	if *sendMail {
		p := datapush.NewPusher(a.cfg, a.log)
		if err := p.SendReport(summary, artifacts); err != nil {
			return err
		}
	}

	fmt.Printf("report written to %s (%d files)\n", outDir, len(artifacts))
	return nil
}

func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configDir := fs.String("config", "config", "configuration directory")
	out := fs.String("out", "", "output directory (default from config)")
	ivl := fs.Duration("interval", 0, "rescan cadence (default from config)")
	httpAddr := fs.String("http", "", "serve live logs at this address, e.g. :8080")
	fs.Parse(args)

	a, err := newApp(*configDir)
	if err != nil {
		return err
	}
	defer a.close()

	interval := time.Duration(a.cfg.Watch.Interval)
	if *ivl != 0 {
		interval = *ivl
	}
	outDir := a.outputDir(*out)

	holder := &dataset.Holder{}
	reload := func(trigger string) {
		ds, _, err := a.loader.LoadDir()
		if err != nil {
			a.log.Error(fmt.Sprintf("reload failed (%s): %v", trigger, err))
			return
		}
		holder.Set(ds)
		a.log.Info(fmt.Sprintf("dataset reloaded (%s): %d flights", trigger, ds.Len()))
	}
	reload("startup")

	monitor, err := file.NewFileMonitor(a.cfg.DataDir, a.cfg.InputGlob)
	if err != nil {
		return fmt.Errorf("starting file monitor: %w", err)
	}
	go func() {
		if err := monitor.Watch(func(path string) {
			reload("changed " + filepath.Base(path))
		}); err != nil {
			a.log.Error("file monitor stopped: " + err.Error())
		}
	}()

	c := cron.New()
	spec := fmt.Sprintf("@every %s", interval)
	err = c.AddFunc(spec, func() {
		reload("periodic rescan")
		if ds := holder.Get(); ds != nil && ds.Len() > 0 {
			if _, err := renderCharts(a, ds, outDir, "", defaultHistBins); err != nil {
				a.log.Error("chart regeneration: " + err.Error())
			}
			if _, err := exportStats(a, ds, outDir, "both"); err != nil {
				a.log.Error("stats export: " + err.Error())
			}
		}
		if err := a.log.CheckRotate(a.cfg); err != nil {
			a.log.Warning("log rotation: " + err.Error())
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling rescan: %w", err)
	}

	if a.cfg.Email.Server != "" {
		client := email.NewEmailClient(a.cfg.Email.Server, a.cfg.Email.Username, a.cfg.Email.Password)
		handler := email.NewAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir, a.log)
		mailSpec := fmt.Sprintf("@every %s", time.Duration(a.cfg.Email.CheckInterval))
		err = c.AddFunc(mailSpec, func() {
			if _, err := email.CheckAndProcessEmails(client, handler, a.cfg.Email.TargetSubject, a.log); err != nil {
				a.log.Error("mailbox check: " + err.Error())
			}
		})
		if err != nil {
			return fmt.Errorf("scheduling mailbox check: %w", err)
		}
	}

	if *httpAddr != "" {
		go serveLogs(a.log, *httpAddr)
	}

	c.Start()
	a.log.Info(fmt.Sprintf("watching %s (rescan every %s), Ctrl+C to stop", a.cfg.DataDir, interval))
	fmt.Printf("watching %s, Ctrl+C to stop\n", a.cfg.DataDir)

	waitForShutdown(a.log)
	monitor.Close()
	c.Stop()
	return nil
}

func cmdFetch(args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	configDir := fs.String("config", "config", "configuration directory")
	fs.Parse(args)

	a, err := newApp(*configDir)
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Email.Server == "" {
		return fmt.Errorf("email is not configured (set email.server in config.json)")
	}

	client := email.NewEmailClient(a.cfg.Email.Server, a.cfg.Email.Username, a.cfg.Email.Password)
	handler := email.NewAttachmentHandler(a.cfg.Email.TargetSubject, a.cfg.DataDir, a.log)

	msg, err := email.CheckAndProcessEmails(client, handler, a.cfg.Email.TargetSubject, a.log)
	if err != nil {
		return err
	}
	if msg == nil {
		fmt.Println("no new data mail")
		return nil
	}

	fmt.Printf("fetched %q from %s (%d attachments) into %s\n",
		msg.Subject, msg.From, len(msg.Attachments), a.cfg.DataDir)
	return nil
}

// renderCharts writes the chart set for ds under outDir and returns the
// file paths. only narrows to one kind, empty means all.
func renderCharts(a *app, ds *dataset.DelayDataset, outDir, only string, bins int) ([]string, error) {
	r := chart.NewRenderer(a.cfg, a.dcfg, a.log)
	var files []string

	want := func(kind string) bool { return only == "" || only == kind }

	if want("bar") {
		for _, dim := range []processor.Dimension{
			processor.DimAirline, processor.DimAirport, processor.DimMonth,
		} {
			stats, err := processor.GroupStats(ds, dim)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(outDir, fmt.Sprintf("delay_by_%s.png", dim))
			if err := r.DelayBar(stats, dim, path); err != nil {
				return nil, err
			}
			files = append(files, path)
		}

		path := filepath.Join(outDir, "delay_categories.png")
		if err := r.CategoryBars(ds, path); err != nil {
			return nil, err
		}
		files = append(files, path)
	}

	if want("hist") {
		path := filepath.Join(outDir, "delay_histogram.png")
		if err := r.DelayHistogram(ds, bins, path); err != nil {
			return nil, err
		}
		files = append(files, path)
	}

	if want("heatmap") {
		pairs := []struct{ row, col processor.Dimension }{
			{processor.DimAirline, processor.DimMonth},
			{processor.DimAirport, processor.DimAirline},
		}
		for _, pr := range pairs {
			pt, err := processor.Pivot(ds, pr.row, pr.col)
			if err != nil {
				return nil, err
			}
			path := filepath.Join(outDir, fmt.Sprintf("heatmap_%s_%s.png", pr.row, pr.col))
			if err := r.DelayHeatMap(pt, path); err != nil {
				return nil, err
			}
			files = append(files, path)
		}
	}

	return files, nil
}

// exportStats writes the per-dimension stat tables under outDir and
// returns the file paths.
func exportStats(a *app, ds *dataset.DelayDataset, outDir, format string) ([]string, error) {
	ex := export.NewExporter(a.cfg, a.log)
	var files []string

	for _, dim := range []processor.Dimension{
		processor.DimAirline, processor.DimAirport, processor.DimMonth,
	} {
		stats, err := processor.GroupStats(ds, dim)
		if err != nil {
			return nil, err
		}

		if format == "csv" || format == "both" {
			path := filepath.Join(outDir, fmt.Sprintf("stats_by_%s.csv", dim))
			if err := ex.StatsCSV(stats, dim, path); err != nil {
				return nil, err
			}
			files = append(files, path)
		}
		if format == "xlsx" || format == "both" {
			path := filepath.Join(outDir, fmt.Sprintf("stats_by_%s.xlsx", dim))
			if err := ex.StatsXLSX(stats, dim, path); err != nil {
				return nil, err
			}
			files = append(files, path)
		}
	}

	return files, nil
}

func formatSummary(s *processor.Summary, rep *file.LoadReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Flights:       %d (%d cancelled)\n", s.TotalFlights, s.Overall.CancelledCount)
	fmt.Fprintf(&b, "Airlines:      %d (%s)\n", len(s.Airlines), strings.Join(s.Airlines, ", "))
	fmt.Fprintf(&b, "Airports:      %d (%s)\n", len(s.Airports), strings.Join(s.Airports, ", "))
	fmt.Fprintf(&b, "Months:        %s\n", strings.Join(s.Months, ", "))
	fmt.Fprintf(&b, "Schedule span: %s .. %s\n",
		s.From.Format("2006-01-02"), s.To.Format("2006-01-02"))
	fmt.Fprintf(&b, "Mean delay:    %.2f min\n", s.Overall.Mean)
	fmt.Fprintf(&b, "Median delay:  %.2f min\n", s.Overall.Median)
	fmt.Fprintf(&b, "Max delay:     %.2f min\n", s.Overall.Max)
	fmt.Fprintf(&b, "On-time:       %.2f%%\n", s.Overall.OnTimePct)
	fmt.Fprintf(&b, "Delayed:       %.2f%%\n", s.Overall.DelayedPct)
	if rep != nil && rep.RowsDropped > 0 {
		fmt.Fprintf(&b, "Rows dropped:  %d of %d read\n", rep.RowsDropped, rep.RowsRead)
	}
	return b.String()
}

func printStats(dim processor.Dimension, stats []processor.AggregateStat) {
	if len(stats) == 0 {
		fmt.Println("no matching flights")
		return
	}

	fmt.Printf("%-16s %8s %10s %9s %9s %9s %9s %9s %9s %9s\n",
		string(dim), "flights", "cancelled", "mean", "median", "min", "max", "std", "ontime%", "delayed%")
	for _, s := range stats {
		fmt.Printf("%-16s %8d %10d %9.2f %9.2f %9.2f %9.2f %9.2f %9.2f %9.2f\n",
			s.Key, s.Count, s.CancelledCount, s.Mean, s.Median,
			s.Min, s.Max, s.StdDev, s.OnTimePct, s.DelayedPct)
	}
}

// serveLogs streams log entries over HTTP for anyone tailing a watch
// run from a browser.
func serveLogs(logger *storage.Logger, addr string) {
	http.HandleFunc("/logs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		logChan := logger.Subscribe()
		for {
			select {
			case msg := <-logChan:
				if _, err := fmt.Fprint(w, msg); err != nil {
					return
				}
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
			case <-r.Context().Done():
				return
			}
		}
	})

	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Error("log endpoint: " + err.Error())
	}
}

func waitForShutdown(logger *storage.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("received signal " + sig.String() + ", shutting down...")
}
