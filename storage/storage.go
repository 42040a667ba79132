// Package storage keeps tasks, accounts, profiles and settings in Azure Table
// Storage and hands account commands to Azure Queue Storage.
package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskboard/domain"
)

// ErrConcurrencyConflict is returned when a row changed between read and write.
var ErrConcurrencyConflict = errors.New("storage: row was modified concurrently")

// Config names the tables and queues used by Storage.
type Config struct {
	ConnectionString string
	TasksTable       string
	ProfilesTable    string
	AccountsTable    string
	SettingsTable    string
	AccountQueue     string
	MailQueue        string
}

// Storage provides access to underlying persistence mechanisms.
type Storage struct {
	taskTable    *aztables.Client
	profileTable *aztables.Client
	accountTable *aztables.Client
	settingTable *aztables.Client
	accountQueue queueClient
	mailQueue    queueClient
	now          func() time.Time
}

// New creates a Storage instance from the given configuration.
func New(cfg Config) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(cfg.ConnectionString, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	aq, err := azqueue.NewQueueClientFromConnectionString(cfg.ConnectionString, cfg.AccountQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	mq, err := azqueue.NewQueueClientFromConnectionString(cfg.ConnectionString, cfg.MailQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &Storage{
		taskTable:    svc.NewClient(cfg.TasksTable),
		profileTable: svc.NewClient(cfg.ProfilesTable),
		accountTable: svc.NewClient(cfg.AccountsTable),
		settingTable: svc.NewClient(cfg.SettingsTable),
		accountQueue: aq,
		mailQueue:    mq,
		now:          time.Now,
	}, nil
}

// entity represents base table entity keys.
type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

// partitionFilter builds an OData filter selecting a single partition.
func partitionFilter(pk string) string {
	return "PartitionKey eq '" + strings.ReplaceAll(pk, "'", "''") + "'"
}

func statusCode(err error) (int, string, bool) {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode, respErr.ErrorCode, true
	}
	return 0, "", false
}

// mapErr turns Azure service failures into the domain error taxonomy.
func mapErr(op, kind, id string, err error) error {
	if err == nil {
		return nil
	}
	code, _, ok := statusCode(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &domain.NetworkError{Op: op, Err: err}
	}
	switch code {
	case http.StatusNotFound:
		return &domain.NotFoundError{Kind: kind, ID: id}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.AuthError{Reason: "storage rejected credentials"}
	case http.StatusBadRequest:
		return &domain.ValidationError{Fields: map[string]string{kind: "rejected by storage"}}
	case http.StatusPreconditionFailed:
		return ErrConcurrencyConflict
	}
	return err
}
