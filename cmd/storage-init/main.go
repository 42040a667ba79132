// Command storage-init provisions the tables, queues or SQL schema the
// taskboard service expects.
package main

import (
	"context"
	"errors"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"taskboard/sqlstore"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	rootCmd := &cobra.Command{
		Use:          "storage-init",
		Short:        "Provision taskboard storage",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(azureCmd())
	rootCmd.AddCommand(sqlCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

func azureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "azure",
		Short: "Create the Azure tables and queues named in the environment",
		RunE: func(cmd *cobra.Command, _ []string) error {
			connStr := os.Getenv("STORAGE_CONNECTION_STRING")
			if connStr == "" {
				return errors.New("missing STORAGE_CONNECTION_STRING")
			}
			ctx := cmd.Context()
			log.Info("storage init starting")
			if err := createTables(ctx, connStr, []string{
				os.Getenv("TASKS_TABLE"),
				os.Getenv("PROFILES_TABLE"),
				os.Getenv("ACCOUNTS_TABLE"),
				os.Getenv("SETTINGS_TABLE"),
			}); err != nil {
				return err
			}
			if err := createQueues(ctx, connStr, []string{
				os.Getenv("ACCOUNT_QUEUE"),
				os.Getenv("MAIL_QUEUE"),
			}); err != nil {
				return err
			}
			log.Info("storage init complete")
			return nil
		},
	}
}

func sqlCmd() *cobra.Command {
	var driver, dsn string
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Apply the relational schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if printOnly {
				_, err := cmd.OutOrStdout().Write([]byte(sqlstore.Schema()))
				return err
			}
			if dsn == "" {
				dsn = os.Getenv("SQL_DSN")
			}
			if dsn == "" {
				return errors.New("missing --dsn or SQL_DSN")
			}
			st, err := sqlstore.Open(cmd.Context(), driver, dsn)
			if err != nil {
				return err
			}
			log.WithField("driver", driver).Info("schema applied")
			return st.Close()
		},
	}
	cmd.Flags().StringVar(&driver, "driver", sqlstore.DriverSQLite, "database driver (sqlite3 or postgres)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "data source name")
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the schema instead of applying it")
	return cmd
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil && !alreadyExists(err, string(aztables.TableAlreadyExists)) {
			return err
		}
		log.WithField("table", name).Debug("table ready")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if _, err := q.Create(ctx, nil); err != nil && !alreadyExists(err, "QueueAlreadyExists") {
			return err
		}
		log.WithField("queue", name).Debug("queue ready")
	}
	return nil
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
