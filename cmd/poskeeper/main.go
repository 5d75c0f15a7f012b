package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/wurt83ow/poskeeper-client/pkg/appcontext"
	"github.com/wurt83ow/poskeeper-client/pkg/bdkeeper"
	"github.com/wurt83ow/poskeeper-client/pkg/client"
	"github.com/wurt83ow/poskeeper-client/pkg/config"
	"github.com/wurt83ow/poskeeper-client/pkg/dualstore"
	"github.com/wurt83ow/poskeeper-client/pkg/encription"
	"github.com/wurt83ow/poskeeper-client/pkg/errs"
	"github.com/wurt83ow/poskeeper-client/pkg/gksync"
	"github.com/wurt83ow/poskeeper-client/pkg/logger"
	"github.com/wurt83ow/poskeeper-client/pkg/models"
	"github.com/wurt83ow/poskeeper-client/pkg/netwatch"
	"github.com/wurt83ow/poskeeper-client/pkg/shift"
	"github.com/wurt83ow/poskeeper-client/pkg/syncinfo"
	"github.com/wurt83ow/poskeeper-client/pkg/syncqueue"
	"github.com/wurt83ow/poskeeper-client/pkg/users"
)

type app struct {
	opt     *config.Options
	log     *logrus.Logger
	db      *sql.DB
	queue   *syncqueue.Queue
	checker netwatch.Checker

	products  *dualstore.Router[models.Product]
	materials *dualstore.Router[models.Material]
	discounts *dualstore.Router[models.Discount]
	recipes   *dualstore.Router[models.Recipe]
	expenses  *dualstore.Router[models.Expense]
	accounts  *dualstore.Router[models.User]

	engine    *shift.Engine
	usersSvc  *users.Service
	syncMgr   *syncinfo.SyncManager
	replayers map[string]syncqueue.Replayer
}

func newApp() (*app, error) {
	opt := config.NewConfig()
	log := logger.NewLogger(opt.LogLevel)

	db, err := bdkeeper.Open(opt.DatabaseFile)
	if err != nil {
		return nil, err
	}

	keeper := bdkeeper.NewKeeper(db)
	queue := syncqueue.New(db, log)
	remote := gksync.NewClient(opt.ServerURL, opt.RequestTimeout)
	checker := netwatch.NewHTTPChecker(opt.ServerURL, opt.RequestTimeout, opt.AssumeOnline, log)
	validate := validator.New()

	a := &app{opt: opt, log: log, db: db, queue: queue, checker: checker}

	a.products = dualstore.NewRouter[models.Product](
		gksync.NewStore[models.Product](remote),
		bdkeeper.NewStore[models.Product](keeper, queue),
		checker, validate, log, opt.SyncWithServer,
	).WithCheck(func(p models.Product) error {
		if p.Price.IsNegative() {
			return errs.Validation("product price cannot be negative")
		}
		return nil
	})

	a.materials = dualstore.NewRouter[models.Material](
		gksync.NewStore[models.Material](remote),
		bdkeeper.NewStore[models.Material](keeper, queue),
		checker, validate, log, opt.SyncWithServer,
	).WithCheck(func(m models.Material) error {
		if m.Stock.IsNegative() || m.UnitCost.IsNegative() {
			return errs.Validation("material stock and cost cannot be negative")
		}
		return nil
	})

	a.discounts = dualstore.NewRouter[models.Discount](
		gksync.NewStore[models.Discount](remote),
		bdkeeper.NewStore[models.Discount](keeper, queue),
		checker, validate, log, opt.SyncWithServer,
	).WithCheck(func(d models.Discount) error {
		if d.Percent.IsNegative() || d.Percent.GreaterThan(decimal.NewFromInt(100)) {
			return errs.Validation("discount percent must be between 0 and 100")
		}
		return nil
	})

	a.recipes = dualstore.NewRouter[models.Recipe](
		gksync.NewStore[models.Recipe](remote),
		bdkeeper.NewStore[models.Recipe](keeper, queue),
		checker, validate, log, opt.SyncWithServer,
	)

	a.expenses = dualstore.NewRouter[models.Expense](
		gksync.NewStore[models.Expense](remote),
		bdkeeper.NewStore[models.Expense](keeper, queue),
		checker, validate, log, opt.SyncWithServer,
	).WithCheck(func(e models.Expense) error {
		if e.Amount.IsNegative() {
			return errs.Validation("expense amount cannot be negative")
		}
		return nil
	})

	a.accounts = dualstore.NewRouter[models.User](
		gksync.NewStore[models.User](remote),
		bdkeeper.NewStore[models.User](keeper, queue),
		checker, validate, log, opt.SyncWithServer,
	)

	shifts := dualstore.NewRouter[models.Shift](
		gksync.NewStore[models.Shift](remote),
		bdkeeper.NewStore[models.Shift](keeper, queue),
		checker, validate, log, opt.SyncWithServer,
	)
	txns := dualstore.NewRouter[models.Transaction](
		gksync.NewStore[models.Transaction](remote),
		bdkeeper.NewStore[models.Transaction](keeper, queue),
		checker, validate, log, opt.SyncWithServer,
	)

	a.engine = shift.NewEngine(shifts, txns, opt.MaxCashAmount, log)
	a.usersSvc = users.NewService(a.accounts, encription.NewEnc(), log)

	a.syncMgr, err = syncinfo.NewSyncManager(opt.SyncStatePath)
	if err != nil {
		db.Close()
		return nil, err
	}

	// Transactions are owned by the sales subsystem and never written
	// through this client, so they need no replayer.
	a.replayers = map[string]syncqueue.Replayer{
		"products":  gksync.NewStore[models.Product](remote),
		"materials": gksync.NewStore[models.Material](remote),
		"discounts": gksync.NewStore[models.Discount](remote),
		"recipes":   gksync.NewStore[models.Recipe](remote),
		"expenses":  gksync.NewStore[models.Expense](remote),
		"users":     gksync.NewStore[models.User](remote),
		"shifts":    gksync.NewStore[models.Shift](remote),
	}

	return a, nil
}

func (a *app) close() {
	a.db.Close()
}

func (a *app) drain(ctx context.Context) {
	report, err := a.queue.Drain(ctx, a.replayers)
	if err != nil {
		a.log.WithError(err).Error("queue drain failed")
		return
	}
	if err := a.syncMgr.Record(syncinfo.SyncInfo{
		LastSync:  time.Now().UTC(),
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
	}); err != nil {
		a.log.WithError(err).Warn("failed to persist sync state")
	}
}

func main() {
	var tenantID, userID string
	var a *app

	root := &cobra.Command{
		Use:           "poskeeper",
		Short:         "Offline-first point-of-sale terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.close()
			}
		},
	}
	root.PersistentFlags().StringVar(&tenantID, "tenant", os.Getenv("POS_TENANT"), "tenant id of this terminal")
	root.PersistentFlags().StringVar(&userID, "user", os.Getenv("POS_USER"), "id of the signed-in user")

	session := func() context.Context {
		return appcontext.WithSession(context.Background(), tenantID, userID)
	}

	shiftCmd := &cobra.Command{Use: "shift", Short: "Manage the cash shift"}
	shiftCmd.AddCommand(
		&cobra.Command{
			Use:   "open",
			Short: "Open a shift, prompting for the opening cash",
			RunE: func(cmd *cobra.Command, args []string) error {
				term, err := client.NewTerminal(a.engine, a.log)
				if err != nil {
					return err
				}
				defer term.Close()
				return term.OpenShift(session())
			},
		},
		&cobra.Command{
			Use:   "close",
			Short: "Close the active shift, prompting for the counted cash",
			RunE: func(cmd *cobra.Command, args []string) error {
				term, err := client.NewTerminal(a.engine, a.log)
				if err != nil {
					return err
				}
				defer term.Close()
				return term.CloseShift(session())
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the active shift",
			RunE: func(cmd *cobra.Command, args []string) error {
				term, err := client.NewTerminal(a.engine, a.log)
				if err != nil {
					return err
				}
				defer term.Close()
				return term.ShiftStatus(session())
			},
		},
	)
	root.AddCommand(shiftCmd)

	syncCmd := &cobra.Command{Use: "sync", Short: "Manage the offline sync queue"}
	syncCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Replay pending operations against the server",
			RunE: func(cmd *cobra.Command, args []string) error {
				a.drain(cmd.Context())
				info := a.syncMgr.Get()
				fmt.Printf("Replayed %d operations, %d failed\n", info.Succeeded, info.Failed)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show pending operations and the last sync result",
			RunE: func(cmd *cobra.Command, args []string) error {
				pending, err := a.queue.Len(cmd.Context())
				if err != nil {
					return err
				}
				info := a.syncMgr.Get()
				if info.LastSync.IsZero() {
					fmt.Printf("%d operations pending, never synced\n", pending)
				} else {
					fmt.Printf("%d operations pending, last sync %s (%d ok, %d failed)\n",
						pending, info.LastSync.Format(time.RFC3339), info.Succeeded, info.Failed)
				}
				return nil
			},
		},
	)
	root.AddCommand(syncCmd)

	root.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Watch connectivity and replay the queue when it returns",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			watcher := netwatch.NewWatcher(a.checker, a.opt.PollInterval, a.drain, a.log)
			watcher.Run(ctx)
			return nil
		},
	})

	productCmd := &cobra.Command{Use: "product", Short: "Manage products"}
	var productName, productSKU, productPrice string
	addProduct := &cobra.Command{
		Use:   "add",
		Short: "Add a product",
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := decimal.NewFromString(productPrice)
			if err != nil {
				return fmt.Errorf("not a valid price: %q", productPrice)
			}
			p, err := a.products.Create(session(), models.Product{
				ID:        models.NewID(),
				TenantID:  tenantID,
				Name:      productName,
				SKU:       productSKU,
				Price:     price,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Added product %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	addProduct.Flags().StringVar(&productName, "name", "", "product name")
	addProduct.Flags().StringVar(&productSKU, "sku", "", "stock keeping unit")
	addProduct.Flags().StringVar(&productPrice, "price", "0", "unit price")
	productCmd.AddCommand(
		addProduct,
		&cobra.Command{
			Use:   "list",
			Short: "List products",
			RunE: func(cmd *cobra.Command, args []string) error {
				items, err := a.products.List(session())
				if err != nil {
					return err
				}
				for _, p := range items {
					fmt.Printf("%s  %-24s %s\n", p.ID, p.Name, p.Price.String())
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a product",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				deleted, err := a.products.Delete(session(), args[0], tenantID)
				if err != nil {
					return err
				}
				if !deleted {
					fmt.Println("No such product")
				}
				return nil
			},
		},
	)
	root.AddCommand(productCmd)

	userCmd := &cobra.Command{Use: "user", Short: "Manage terminal accounts"}
	var username, password, role string
	addUser := &cobra.Command{
		Use:   "add",
		Short: "Register an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := a.usersSvc.Register(session(), username, password, role)
			if err != nil {
				return err
			}
			fmt.Printf("Registered %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}
	addUser.Flags().StringVar(&username, "username", "", "login name")
	addUser.Flags().StringVar(&password, "password", "", "password")
	addUser.Flags().StringVar(&role, "role", "cashier", "owner, manager or cashier")
	userCmd.AddCommand(addUser)
	root.AddCommand(userCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
