//go:build js

package store

import (
	"context"
	"errors"
)

func openSQLite(context.Context, string) (Store, error) {
	return nil, errors.New("sqlite: not available in the browser build")
}
