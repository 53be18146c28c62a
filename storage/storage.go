package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
)

// Storage provides access to the unit, user and task collections and the
// reminder notification queue.
type Storage struct {
	Units *UnitStore
	Users *UserStore
	Tasks *TaskStore

	notifyQueue *azqueue.QueueClient
}

// New creates a Storage instance from the given connection string.
func New(connStr, unitsTable, usersTable, tasksTable, notifyQueue string) (*Storage, error) {
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
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
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
	nq, err := azqueue.NewQueueClientFromConnectionString(connStr, notifyQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}

	return &Storage{
		Units:       &UnitStore{table: svc.NewClient(unitsTable)},
		Users:       &UserStore{table: svc.NewClient(usersTable)},
		Tasks:       &TaskStore{table: svc.NewClient(tasksTable)},
		notifyQueue: nq,
	}, nil
}

// NotificationMessage is the payload enqueued for each fired task reminder.
// Formatting and delivery are handled downstream.
type NotificationMessage struct {
	TaskID         string   `json:"taskId"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Recipients     []string `json:"recipients"`
	RecipientNames []string `json:"recipientNames"`
	Suspense       int64    `json:"suspense"`
	TimeRemaining  string   `json:"timeRemaining"`
}

// EnqueueNotification publishes a reminder notification message.
func (s *Storage) EnqueueNotification(ctx context.Context, msg NotificationMessage) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = s.notifyQueue.EnqueueMessage(ctx, string(data), nil)
	return err
}

// isNotFound reports whether the table service rejected the call because the
// entity does not exist.
func isNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == 404
}
