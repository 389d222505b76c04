package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/amoylab/janus/internal/domain"
	"github.com/amoylab/janus/internal/inspect"
	"github.com/amoylab/janus/pkg/utils"
)

var (
	callTarget  string
	callTimeout time.Duration

	watchTarget string
	watchEnable string
	watchCount  int

	serveAddr       string
	serveAutoAttach bool
)

var (
	callCmd = &cobra.Command{
		Use:   "call <method> [params-json]",
		Short: "Send one command and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runCall,
	}

	targetsCmd = &cobra.Command{
		Use:   "targets",
		Short: "List debuggable targets",
		Args:  cobra.NoArgs,
		RunE:  runTargets,
	}

	watchCmd = &cobra.Command{
		Use:   "watch <pattern>",
		Short: "Print events matching pattern (*, Domain.*, Domain or Domain.event)",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Stay connected and serve the inspect API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
)

func init() {
	callCmd.Flags().StringVarP(&callTarget, "target", "t", "", "attach to this target and send the command in its session")
	callCmd.Flags().DurationVar(&callTimeout, "timeout", 0, "call timeout, defaults to client.call_timeout")

	watchCmd.Flags().StringVarP(&watchTarget, "target", "t", "", "attach to this target and watch its session only")
	watchCmd.Flags().StringVar(&watchEnable, "enable", "", "domains to enable first, e.g. Page,Network")
	watchCmd.Flags().IntVarP(&watchCount, "count", "n", 0, "exit after this many events")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "inspect listen address, defaults to inspect.addr")
	serveCmd.Flags().BoolVar(&serveAutoAttach, "auto-attach", false, "auto-attach to new targets in flattened mode")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func connectedApp(ctx context.Context) (*app, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	var params json.RawMessage
	if len(args) == 2 {
		params = json.RawMessage(args[1])
		if !json.Valid(params) {
			return fmt.Errorf("params are not valid JSON: %s", args[1])
		}
	}

	a, err := connectedApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := ""
	if callTarget != "" {
		if sessionID, err = a.client.Attach(ctx, callTarget); err != nil {
			return err
		}
	}
	result, err := a.client.Call(ctx, sessionID, args[0], params, callTimeout)
	if err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func printJSON(cmd *cobra.Command, raw json.RawMessage) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := cmd.OutOrStdout().Write(buf.Bytes())
	return err
}

func runTargets(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := connectedApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	targets, err := domain.NewTarget(a.client).GetTargets(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TARGET ID\tTYPE\tATTACHED\tTITLE\tURL")
	for _, t := range targets {
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", t.TargetID, t.Type, t.Attached, utils.Truncate(t.Title, 40), t.URL)
	}
	return w.Flush()
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := connectedApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionID := ""
	if watchTarget != "" {
		if sessionID, err = a.client.Attach(ctx, watchTarget); err != nil {
			return err
		}
	}
	sub, err := a.client.Subscribe(ctx, sessionID, args[0])
	if err != nil {
		return err
	}
	for _, d := range utils.SplitByMultipleDelimiters(watchEnable, ",", " ") {
		if _, err := a.client.Call(ctx, sessionID, d+".enable", nil, 0); err != nil {
			return fmt.Errorf("enable %s: %w", d, err)
		}
	}

	out := cmd.OutOrStdout()
	seen := 0
	for evt := range sub.Events() {
		line, err := json.Marshal(evt)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(line))
		seen++
		if watchCount > 0 && seen >= watchCount {
			return nil
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sub.Err()
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := connectedApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if serveAutoAttach {
		target := domain.NewTarget(a.client)
		if err := target.SetAutoAttach(ctx, true, false); err != nil {
			return err
		}
		// a new connection starts with auto-attach off
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-a.reconnected:
					if err := target.SetAutoAttach(ctx, true, false); err != nil {
						a.logger.Warn("failed to re-enable auto-attach", zap.Error(err))
					}
				}
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	cfg := a.cfg.Inspect
	cfg.Addr = utils.FirstNonEmpty(serveAddr, cfg.Addr)
	srv := inspect.New(a.logger, cfg, a.client, a.sinks.Memory(), a.metrics)

	a.logger.Info("serving", zap.String("url", a.cfg.Client.URL), zap.String("inspect_addr", cfg.Addr))
	return srv.Run(ctx)
}
