package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/deployhook/config"
	"github.com/marcelsud/deployhook/deploy"
	"github.com/marcelsud/deployhook/tenant"
	tenantredis "github.com/marcelsud/deployhook/tenant/redis"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

/* validate-tenants - Standalone CLI tool to check the tenant configuration
 * Usage: go run cmd/validate-tenants/main.go [apps.json webhooks.json]
 * Without arguments the configured store (STORE_BACKEND) is checked.
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(os.Args) > 2 {
		cfg.StoreBackend = config.BackendFile
		cfg.AppsFile = os.Args[1]
		cfg.WebhooksFile = os.Args[2]
	}

	ctx := context.Background()
	fs := afero.NewOsFs()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)

	var lister tenant.Lister
	switch cfg.StoreBackend {
	case config.BackendRedis:
		fmt.Printf("Validating tenants in Redis: %s (db %d)\n", cfg.RedisAddr, cfg.RedisDB)
		store, err := tenantredis.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close(ctx)
		lister = store
	default:
		fmt.Printf("Validating tenant files: %s, %s\n", cfg.AppsFile, cfg.WebhooksFile)
		lister = tenant.NewFileStore(fs, cfg.AppsFile, cfg.WebhooksFile, tenant.WithLogger(logger))
	}
	fmt.Println(strings.Repeat("-", 50))

	tenants, err := lister.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("Loaded %d tenant(s):\n", len(tenants))

	trigger := deploy.NewTrigger(fs, deploy.ExecRunner{},
		deploy.WithHomeRoot(cfg.HomeRoot),
		deploy.WithScript(cfg.DeployScript),
		deploy.WithSudo(cfg.SudoPath),
	)
	ready := 0
	for i, t := range tenants {
		_, script := trigger.Paths(t.ID)
		_, statErr := fs.Stat(script)

		fmt.Printf("\n%d. Tenant: %s\n", i+1, t.ID)
		fmt.Printf("   Webhook secret: %s\n", yesNo(t.HasSecret))
		fmt.Printf("   Deploy script:  %s (%s)\n", script, found(statErr == nil))
		fmt.Printf("   Command:        %s %s\n", trigger.Command(t.ID).Path, strings.Join(trigger.Command(t.ID).Args, " "))

		if t.HasSecret && statErr == nil {
			ready++
		}
	}

	fmt.Printf("\n✓ %d of %d tenant(s) can receive deployments\n", ready, len(tenants))
	os.Exit(0)
}

func yesNo(b bool) string {
	if b {
		return "configured"
	}
	return "missing (requests get 401)"
}

func found(b bool) string {
	if b {
		return "found"
	}
	return "missing"
}
