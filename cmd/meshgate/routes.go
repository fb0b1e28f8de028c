package main

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"meshgate/internal/config"
	"meshgate/internal/core/engine"
	"meshgate/internal/platform/postgres"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the static route table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		table := cfg.StaticRoutes()
		keys := table.Keys()
		sort.Strings(keys)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tTYPE\tTARGET\tSECRET\tTABLE")
		for _, key := range keys {
			route, _ := table.Get(key)
			target := route.TargetURL
			if target == "" {
				target = route.ChannelName
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", key, route.Type, target, dash(route.AuthKeyEnvName), dash(route.TableName))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if cfg.Store.Driver != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\nroutes not listed above are looked up in the %s store (table %s)\n",
				cfg.Store.Driver, cfg.Store.Table)
		}
		return nil
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var routesPutCmd = &cobra.Command{
	Use:   "put <key> <json>",
	Short: "Create or replace a route in the route store",
	Long: `Store a route config in the PostgreSQL route store, for example:

  meshgate routes put v2/billing '{"type":"REST","targetUrl":"http://billing.internal"}'`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := routeKeyArg(args[0])
		if err != nil {
			return err
		}
		var route engine.RouteConfig
		if err := sonic.UnmarshalString(args[1], &route); err != nil {
			return fmt.Errorf("invalid route config JSON: %w", err)
		}

		store, db, err := openRouteStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.PutRoute(cmd.Context(), key, route); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", key)
		return nil
	},
}

var routesDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a route from the route store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := routeKeyArg(args[0])
		if err != nil {
			return err
		}

		store, db, err := openRouteStore(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.DeleteRoute(cmd.Context(), key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", key)
		return nil
	},
}

// routeKeyArg accepts exactly "{version}/{module}"
func routeKeyArg(arg string) (string, error) {
	key, rest, err := engine.KeyFromPath(arg)
	if err != nil || rest != "" || !strings.EqualFold(key, strings.Trim(arg, "/")) {
		return "", fmt.Errorf("route key %q must look like {version}/{module}", arg)
	}
	return key, nil
}

func openRouteStore(cmd *cobra.Command) (*postgres.RouteStore, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Store.Driver != "postgres" {
		return nil, nil, fmt.Errorf("route store commands require store.driver=postgres, got %q", cfg.Store.Driver)
	}
	db, err := postgres.Open(cmd.Context(), cfg.Store.DSN, nil)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewRouteStore(db, cfg.Store.Table), db, nil
}

func SetupRoutesCmd() {
	rootCmd.AddCommand(routesCmd)
	routesCmd.AddCommand(routesPutCmd, routesDeleteCmd)
}
