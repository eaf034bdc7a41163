package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/vuquang/nhatro/internal/event"
	"github.com/vuquang/nhatro/internal/eventbus"
	"github.com/vuquang/nhatro/internal/export"
	"github.com/vuquang/nhatro/internal/seed"
	"github.com/vuquang/nhatro/internal/server"
	"github.com/vuquang/nhatro/internal/store"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "nhatro",
		Short: "Billing and settlement engine for rental housing",
	}

	rootCmd.AddCommand(
		serveCmd(),
		migrateCmd(),
		seedCmd(),
		exportCmd(),
		importCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultDSN() string {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	return "file:nhatro.db"
}

func openDB(ctx context.Context) (*store.DB, error) {
	db, err := store.Open(defaultDSN())
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := seed.Catalog(ctx, db); err != nil {
				return err
			}
			if err := seed.LateFee(ctx, db); err != nil {
				return err
			}

			bus := eventbus.New(256)
			bus.Subscribe("log", eventbus.NewLogConsumer())
			bus.Start(ctx)

			recorder := event.NewStoreRecorder(db)
			recorder.SetPublisher(bus)

			if port == 0 {
				port = 8080
				if p := os.Getenv("PORT"); p != "" {
					if v, err := strconv.Atoi(p); err == nil {
						port = v
					}
				}
			}

			return server.Run(ctx, server.Config{
				Port:     port,
				DB:       db,
				Recorder: recorder,
			})
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default $PORT or 8080)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			v, err := db.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			log.Printf("schema at version %d", v)
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert the default charge catalog and late fee config",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if err := seed.Catalog(cmd.Context(), db); err != nil {
				return err
			}
			return seed.LateFee(cmd.Context(), db)
		},
	}
}

func exportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the full database as a JSON snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			w := os.Stdout
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return export.Write(cmd.Context(), db, w)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "-", "output file (- for stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot.json>",
		Short: "Import a JSON snapshot into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return export.Read(cmd.Context(), db, f)
		},
	}
}
