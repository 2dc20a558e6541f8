package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/seantiz/mori/internal/api"
	"github.com/seantiz/mori/internal/config"
	"github.com/seantiz/mori/internal/frontend"
	"github.com/seantiz/mori/internal/memory"
	"github.com/seantiz/mori/internal/model"
	"github.com/seantiz/mori/internal/session"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	Iterations  int
	MetricsAddr string
	Serve       bool
	Capacity    uint64
	TensorSize  uint64
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run demo training iterations through the swapping layer",
		Long: `Run a three-operator model (o1 -> o2 -> o3) forward and backward for a
number of iterations. Every allocation and data access is reported to the
backend, and the backend's schedule is replayed by the executor in the
following iteration.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDemo(ctx, rootOpts, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().IntVarP(&opts.Iterations, "iterations", "n", 2, "number of training iterations")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve the debug HTTP API on this address")
	cmd.Flags().BoolVar(&opts.Serve, "serve", false, "keep serving the debug API after the run until interrupted")
	cmd.Flags().Uint64Var(&opts.Capacity, "capacity", 0, "simulated device memory in bytes (0 = unlimited)")
	cmd.Flags().Uint64Var(&opts.TensorSize, "tensor-size", 1024, "size of each operator's tensor in bytes")

	return cmd
}

// demoOperators is the o1 -> o2 -> o3 chain, one in/out tensor each.
func demoOperators(size uint64) []model.OperatorStatus {
	names := []string{"o1", "o2", "o3"}
	ops := make([]model.OperatorStatus, len(names))
	for i, name := range names {
		var prevs, posts []string
		if i > 0 {
			prevs = []string{names[i-1]}
		}
		if i < len(names)-1 {
			posts = []string{names[i+1]}
		}
		ops[i] = model.NewOperatorStatus(name, prevs, posts, model.NewTensorStatus("t", size, model.MemoryInOut))
	}
	return ops
}

func runDemo(ctx context.Context, rootOpts *RootOptions, opts *RunOptions, out, errOut io.Writer) (err error) {
	if opts.Iterations < 1 {
		return fmt.Errorf("invalid --iterations %d: must be at least 1", opts.Iterations)
	}

	cfg := config.Load()
	s, err := loadSettings(rootOpts, cfg)
	if err != nil {
		return err
	}
	logger := rootOpts.newLogger(errOut, cfg)
	defer func() { _ = logger.Flush() }()

	f, err := frontend.New(s)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()
	manager := memory.NewSimulated(opts.Capacity)
	if err := f.SetMemoryManager(manager); err != nil {
		return err
	}
	if err := f.SetLogger(logger); err != nil {
		return err
	}
	if err := f.Init(); err != nil {
		return err
	}

	info, err := f.Backend()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "frontend %s: %s backend %s\n", f.ID(), info.Kind, info.Path)

	ops := demoOperators(opts.TensorSize)
	for _, op := range ops {
		if err := f.RegisterOperator(op); err != nil {
			return err
		}
	}

	sess, err := f.Session()
	if err != nil {
		return err
	}
	if err := sess.Init(); err != nil {
		return err
	}

	addr := opts.MetricsAddr
	if addr == "" {
		addr = cfg.MetricsAddr
	}
	serverDone := make(chan error, 1)
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	if addr != "" {
		srv := api.NewServer(addr, f.Statuses(), f.Broker(), api.Info{ID: f.ID(), Backend: info},
			config.NewLogger(errOut, rootOpts.level(cfg), cfg.LogFormat))
		go func() { serverDone <- srv.Run(serverCtx) }()
	} else {
		close(serverDone)
	}

	for i := 0; i < opts.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := iterate(sess, ops); err != nil {
			return fmt.Errorf("iteration %d: %w", i, err)
		}
		n, err := sess.IncreaseIteration()
		if err != nil {
			return err
		}
		if err := f.UpdateSchedule(); err != nil {
			return err
		}
		fmt.Fprintf(out, "iteration %d done: %d schedule events, %d device bytes in use\n",
			n, len(f.Schedule()), manager.DeviceUsed())
	}

	if addr != "" && opts.Serve {
		fmt.Fprintf(out, "serving debug API on %s until interrupted\n", addr)
		<-ctx.Done()
	}
	stopServer()
	if serr := <-serverDone; serr != nil {
		return serr
	}
	return nil
}

// iterate runs one forward and backward pass. The executor moves to the next
// operator whenever the running operator changes.
func iterate(sess *session.Session, ops []model.OperatorStatus) error {
	current := ""
	enter := func(op string) error {
		if current != "" && op != current {
			if err := sess.NextOperator(); err != nil {
				return err
			}
		}
		current = op
		return nil
	}

	for _, op := range ops {
		if err := enter(op.Name); err != nil {
			return err
		}
		if err := sess.AllocateMemory(op.Name, "t"); err != nil {
			return err
		}
		err := sess.WithData(op.Name, func() error {
			return sess.SetMemoryDataAssigned(op.Name, "t")
		})
		if err != nil {
			return err
		}
	}

	for i := len(ops) - 1; i >= 0; i-- {
		name := ops[i].Name
		if err := enter(name); err != nil {
			return err
		}
		err := sess.WithData(name, func() error {
			return sess.SetMemoryDataAcquired(name, "t")
		})
		if err != nil {
			return err
		}
		if err := sess.FreeMemory(name, "t"); err != nil {
			return err
		}
	}
	return nil
}
