package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	asynqlib "github.com/hibiken/asynq"
	redislib "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	taskq "creatorhub-platform/pkg/asynq"
	"creatorhub-platform/pkg/config"
	"creatorhub-platform/pkg/db"
	"creatorhub-platform/pkg/gateway"
	"creatorhub-platform/pkg/logger"
	"creatorhub-platform/pkg/sequence"
	"creatorhub-platform/services/chat"
	"creatorhub-platform/services/contract"
	"creatorhub-platform/services/creator"
	"creatorhub-platform/services/notification"
	"creatorhub-platform/services/offer"
	"creatorhub-platform/services/payment"
	"creatorhub-platform/services/task"
	"creatorhub-platform/services/timeline"
)

// app bundles the manually wired services the commands run against.
type app struct {
	offers    *offer.Service
	timelines *timeline.Service
	payments  *payment.Processor
	tasks     *task.Service
}

func buildApp() (*app, error) {
	cfg := config.LoadConfig()
	logger.New(logger.ConfigParams{Cfg: cfg})

	gdb := db.New(cfg, db.Dialect(cfg))

	rdb := redislib.NewClient(&redislib.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}

	seq := sequence.NewRedisGenerator(sequence.Params{Redis: rdb})
	gw := gateway.NewClient(gateway.ClientParams{Cfg: cfg})

	creators := creator.NewService(creator.ServiceParams{DB: gdb})
	chats := chat.NewService(chat.ServiceParams{DB: gdb, Node: node})
	notifier := notification.NewService(notification.ServiceParams{DB: gdb, Node: node, Chat: chats})
	contracts := contract.NewService(contract.ServiceParams{DB: gdb, Node: node, Seq: seq})
	timelines := timeline.NewService(timeline.ServiceParams{DB: gdb, Node: node, Creators: creators, Notifier: notifier})
	offers := offer.NewService(offer.ServiceParams{
		DB:        gdb,
		Node:      node,
		Creators:  creators,
		Contracts: contracts,
		Timelines: timelines,
		Chat:      chats,
		Notifier:  notifier,
	})
	payments := payment.NewProcessor(payment.ProcessorParams{
		DB:        gdb,
		Node:      node,
		Gateway:   gw,
		Seq:       seq,
		Creators:  creators,
		Contracts: contracts,
		Notifier:  notifier,
	})
	tasks := task.NewService(task.Params{
		DB:        gdb,
		Node:      node,
		Asynq:     asynqlib.NewClientFromRedisClient(rdb),
		Offers:    offers,
		Timelines: timelines,
		Payments:  payments,
	})

	return &app{
		offers:    offers,
		timelines: timelines,
		payments:  payments,
		tasks:     tasks,
	}, nil
}

// runSweep executes fn under a job audit record and prints its summary line.
func runSweep(a *app, name string, fn func(context.Context) (string, error)) error {
	var out string
	err := a.tasks.RunSweep(context.Background(), name, func(ctx context.Context) (string, error) {
		s, ferr := fn(ctx)
		out = s
		return s, ferr
	})
	if out != "" {
		fmt.Println(out)
	}
	return err
}

func newExpireOffersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offers:expire",
		Short: "Expire pending offers past their 48h window",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			return runSweep(a, taskq.OfferExpireTask, func(ctx context.Context) (string, error) {
				count, err := a.offers.ExpireDue(ctx, time.Now())
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("expired=%d", count), nil
			})
		},
	}
}

func newCheckDeadlinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "milestones:check-deadlines",
		Aliases: []string{"timeline:check-deadlines"},
		Short:   "Flag overdue milestones, apply penalties and suspensions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			return runSweep(a, taskq.TimelineCheckTask, func(ctx context.Context) (string, error) {
				summary, err := a.timelines.CheckDeadlines(ctx, time.Now())
				if err != nil {
					return "", err
				}
				return summary.String(), nil
			})
		},
	}
}

func newProcessPaymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "payments:process",
		Short: "Charge pending contract payments through the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			return runSweep(a, taskq.PaymentBatchTask, func(ctx context.Context) (string, error) {
				result, err := a.payments.RunPaymentBatch(ctx)
				if err != nil {
					return "", err
				}
				return result.String(), nil
			})
		},
	}
}

func newProcessWithdrawalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdrawals:process",
		Short: "Transfer pending withdrawals to creator bank accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			return runSweep(a, taskq.WithdrawalBatchTask, func(ctx context.Context) (string, error) {
				result, err := a.payments.RunWithdrawalBatch(ctx)
				if err != nil {
					return "", err
				}
				return result.String(), nil
			})
		},
	}
}

func newVerifyWithdrawalsCmd() *cobra.Command {
	var (
		id        string
		status    string
		method    string
		startDate string
		endDate   string
		detailed  bool
	)

	cmd := &cobra.Command{
		Use:   "withdrawals:verify",
		Short: "Audit withdrawals against bank snapshots and sanity rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}

			filter := payment.VerifyFilter{ID: id, Status: status, Method: method}
			if startDate != "" {
				t, err := time.Parse("2006-01-02", startDate)
				if err != nil {
					return fmt.Errorf("invalid --start-date: %w", err)
				}
				filter.StartDate = &t
			}
			if endDate != "" {
				t, err := time.Parse("2006-01-02", endDate)
				if err != nil {
					return fmt.Errorf("invalid --end-date: %w", err)
				}
				end := t.Add(24*time.Hour - time.Nanosecond)
				filter.EndDate = &end
			}

			report, err := a.payments.VerifyWithdrawals(cmd.Context(), filter)
			if err != nil {
				return err
			}

			fmt.Printf("total=%d passed=%d failed=%d pending=%d\n",
				report.Total, report.Passed, report.Failed, report.Pending)

			for _, r := range report.Results {
				if r.Outcome == payment.OutcomePassed && !detailed {
					continue
				}
				line := fmt.Sprintf("%s %s %s %s %s",
					r.Withdrawal.ID, r.Withdrawal.Code, r.Withdrawal.Status,
					r.Withdrawal.Amount.StringFixed(2), r.Outcome)
				if len(r.Reasons) > 0 {
					line += " (" + strings.Join(r.Reasons, "; ") + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "verify a single withdrawal by id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&method, "method", "", "filter by payout method")
	cmd.Flags().StringVar(&startDate, "start-date", "", "requested on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "requested on or before (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include passing withdrawals in the listing")

	return cmd
}

func main() {
	root := &cobra.Command{
		Use:           "workflowctl",
		Short:         "Run marketplace workflow sweeps and audits by hand",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newExpireOffersCmd(),
		newCheckDeadlinesCmd(),
		newProcessPaymentsCmd(),
		newProcessWithdrawalsCmd(),
		newVerifyWithdrawalsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
