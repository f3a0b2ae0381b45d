package storage

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

const documentPartition = "documents"

// TableKV persists document blobs in an Azure Storage table, one entity per
// document key with the payload in a Data column.
type TableKV struct {
	table *aztables.Client
}

// NewTableKV creates a KV backed by the named table of the given storage
// account.
func NewTableKV(connStr, tableName string) (*TableKV, error) {
	opts := aztables.ClientOptions{
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
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &TableKV{table: svc.NewClient(tableName)}, nil
}

type documentEntity struct {
	aztables.Entity
	Data string `json:"Data"`
}

func (t *TableKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := t.table.GetEntity(ctx, documentPartition, key, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	var ent documentEntity
	if err := sonic.ConfigStd.Unmarshal(resp.Value, &ent); err != nil {
		return nil, false, err
	}
	return []byte(ent.Data), true, nil
}

func (t *TableKV) Set(ctx context.Context, key string, value []byte) error {
	ent := documentEntity{
		Entity: aztables.Entity{PartitionKey: documentPartition, RowKey: key},
		Data:   string(value),
	}
	data, err := sonic.ConfigStd.Marshal(ent)
	if err != nil {
		return err
	}
	_, err = t.table.UpsertEntity(ctx, data, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (t *TableKV) Delete(ctx context.Context, key string) error {
	_, err := t.table.DeleteEntity(ctx, documentPartition, key, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
			return nil
		}
	}
	return err
}
