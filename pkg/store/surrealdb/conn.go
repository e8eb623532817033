package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"
)

// Options describe how to reach a SurrealDB database.
type Options struct {
	// URL is the RPC endpoint, e.g. ws://localhost:8000/rpc.
	URL       string
	Namespace string
	Database  string
	// Key authenticates the connection. A JWT is presented with
	// Authenticate; "user:pass" signs in as a system user. Empty leaves the
	// connection anonymous.
	Key string
}

// Dial opens a websocket connection using the surrealcbor codec, so typed
// ids become RecordIDs and time.Time becomes a SurrealDB datetime.
func Dial(ctx context.Context, opts Options) (*surrealdb.DB, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/rpc"
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if err := authenticate(ctx, db, opts); err != nil {
		_ = db.Close(ctx)
		return nil, err
	}

	if err := db.Use(ctx, opts.Namespace, opts.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}
	return db, nil
}

func authenticate(ctx context.Context, db *surrealdb.DB, opts Options) error {
	switch {
	case opts.Key == "":
		return nil
	case isJWT(opts.Key):
		if err := db.Authenticate(ctx, opts.Key); err != nil {
			return fmt.Errorf("failed to authenticate with store key: %w", err)
		}
		return nil
	default:
		user, pass, ok := strings.Cut(opts.Key, ":")
		if !ok {
			return fmt.Errorf("store key must be a JWT or user:pass")
		}
		if _, err := db.SignIn(ctx, surrealdb.Auth{Username: user, Password: pass}); err != nil {
			return fmt.Errorf("failed to sign in: %w", err)
		}
		return nil
	}
}

func isJWT(s string) bool {
	return strings.Count(s, ".") == 2 && !strings.Contains(s, ":")
}
