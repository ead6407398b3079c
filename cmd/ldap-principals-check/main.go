// ldap-principals-check runs a single login check from the command
// line: it resolves an identity through the directory gates and, when
// storage is configured, provisions the default collections exactly as
// a first login would. Useful for verifying allow-list and realm
// settings before pointing a DAV frontend at the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sonroyaalmerol/ldap-principals/internal/auth"
	"github.com/sonroyaalmerol/ldap-principals/internal/config"
	"github.com/sonroyaalmerol/ldap-principals/internal/directory"
	"github.com/sonroyaalmerol/ldap-principals/internal/logging"
	"github.com/sonroyaalmerol/ldap-principals/internal/storage"
	"github.com/sonroyaalmerol/ldap-principals/internal/storage/postgres"
	"github.com/sonroyaalmerol/ldap-principals/internal/storage/sqlite"
)

func main() {
	var (
		identity  string
		provision bool
	)
	flag.StringVar(&identity, "identity", "", "identity to check, \"name\" or \"name@REALM\" (required)")
	flag.BoolVar(&provision, "provision", false, "also provision default collections on success")
	flag.Parse()

	if identity == "" {
		fmt.Fprintln(os.Stderr, "usage: ldap-principals-check -identity <name[@REALM]> [-provision]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	logger = logger.With().Str("component", "check").Logger()

	conn, err := directory.Connect(cfg.LDAP, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "directory: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	var prov *auth.Provisioner
	if provision {
		var store storage.Store
		switch cfg.Storage.Type {
		case "postgres":
			store, err = postgres.New(cfg.Storage.PostgresURL, logger)
		case "sqlite":
			store, err = sqlite.New(cfg.Storage.SQLitePath, logger)
		default:
			err = fmt.Errorf("unknown storage type: %s", cfg.Storage.Type)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		prov = auth.NewProvisioner(store, logger)
	}

	users := directory.NewUsers(cfg.LDAP, logger)
	backend := auth.NewBackend(cfg.Auth.Realm, cfg.LDAP.AllowedGroups, conn, users, prov, logger)

	uri, err := backend.Check(context.Background(), identity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "check failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(uri)
}
