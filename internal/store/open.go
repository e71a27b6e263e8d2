package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/PaterSantyago/agent-null-null-job/internal/model"
)

// Options selects and configures a storage backend.
type Options struct {
	Driver        string // "sqlite", "redis" or "memory"
	Path          string // sqlite database file
	RedisURL      string
	RedisPrefix   string
	EncryptionKey string // values are stored in clear text when empty
}

// Open builds the backend described by opts and wraps it in a Store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	var (
		kv  KV
		err error
	)
	switch opts.Driver {
	case "sqlite", "":
		kv, err = NewSQLiteKV(opts.Path)
		if err != nil {
			return nil, openErr(err)
		}
	case "redis":
		kv, err = NewRedisKV(ctx, opts.RedisURL, opts.RedisPrefix)
		if err != nil {
			return nil, model.NewError(model.StageStorage, model.KindDatabase, "opening redis store", err)
		}
	case "memory":
		kv = NewMemoryKV()
	default:
		return nil, model.NewError(model.StageStorage, model.KindDatabase,
			fmt.Sprintf("unknown storage driver %q", opts.Driver), nil)
	}

	if opts.EncryptionKey != "" {
		enc, err := NewEncryptedKV(kv, opts.EncryptionKey)
		if err != nil {
			kv.Close()
			return nil, model.NewError(model.StageStorage, model.KindEncryption, "configuring encryption", err)
		}
		kv = enc
	}
	return New(kv), nil
}

func openErr(err error) error {
	kind := model.KindDatabase
	var pathErr *fs.PathError
	switch {
	case errors.Is(err, os.ErrPermission):
		kind = model.KindPermission
	case errors.As(err, &pathErr):
		kind = model.KindFilesystem
	}
	return model.NewError(model.StageStorage, kind, "opening sqlite store", err)
}
