package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	pkgAuth "github.com/angelmondragon/ordering-backend/pkg/auth"
	"github.com/angelmondragon/ordering-backend/pkg/checkoutclient"
	"github.com/angelmondragon/ordering-backend/pkg/config"
	"github.com/angelmondragon/ordering-backend/pkg/enums"
	"github.com/angelmondragon/ordering-backend/pkg/env"
	"github.com/angelmondragon/ordering-backend/pkg/logger"
)

const usage = `usage: checkoutctl <command> [flags]

commands:
  retry-status -payment <id>           ask whether a failed payment may be retried
  order -order <id> -session <token>    print the customer view of an order
  mint-token -role <admin|support>     mint a staff token for the admin API`

var errUsage = errors.New(usage)

func main() {
	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "checkoutctl", Output: os.Stderr})

	if err := run(context.Background(), os.Args[1:], os.Stdout, logg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, logg *logger.Logger) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	baseURL := fs.String("api", env.Get("API_URL", "http://localhost:8080"), "ordering api base url")
	timeout := fs.Duration("timeout", checkoutclient.DefaultTimeout, "per-request timeout")
	paymentID := fs.String("payment", "", "payment id")
	orderID := fs.String("order", "", "order id")
	session := fs.String("session", "", "cart session token")
	role := fs.String("role", string(enums.StaffRoleAdmin), "staff role")
	staffID := fs.String("staff", "", "staff id (random when empty)")
	if err := fs.Parse(rest); err != nil {
		return fmt.Errorf("%w\n\n%s", err, usage)
	}

	switch cmd {
	case "retry-status":
		client, err := checkoutclient.NewClient(*baseURL, checkoutclient.WithTimeout(*timeout), checkoutclient.WithLogger(logg))
		if err != nil {
			return err
		}
		status, err := client.RetryStatus(ctx, *paymentID)
		if err != nil {
			return err
		}
		return printJSON(out, status)

	case "order":
		client, err := checkoutclient.NewClient(*baseURL, checkoutclient.WithTimeout(*timeout), checkoutclient.WithLogger(logg))
		if err != nil {
			return err
		}
		status, err := client.OrderStatus(ctx, *orderID, *session)
		if err != nil {
			return err
		}
		return printJSON(out, status)

	case "mint-token":
		parsedRole, err := enums.ParseStaffRole(*role)
		if err != nil {
			return err
		}
		id := uuid.New()
		if *staffID != "" {
			if id, err = uuid.Parse(*staffID); err != nil {
				return fmt.Errorf("invalid staff id: %w", err)
			}
		}
		cfg, err := config.LoadJWT()
		if err != nil {
			return err
		}
		token, err := pkgAuth.MintAccessToken(cfg, time.Now(), pkgAuth.AccessTokenPayload{StaffID: id, Role: parsedRole})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, token)
		return err
	}
	return errUsage
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
