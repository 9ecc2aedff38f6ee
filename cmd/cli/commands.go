package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/entryledger/internal/adapter/http/dto"
	"github.com/iho/entryledger/internal/domain"
	"github.com/iho/entryledger/internal/infrastructure/auth"
)

type cliOptions struct {
	baseURL        string
	token          string
	timeout        time.Duration
	idempotencyKey string
}

func (o *cliOptions) client() *apiClient {
	return newAPIClient(o.baseURL, o.token, o.timeout)
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:           "entryledger",
		Short:         "EntryLedger CLI tool",
		Long:          `A command line interface for the EntryLedger API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.baseURL, "url", envOr("ENTRYLEDGER_URL", "http://localhost:8080"), "Base URL of the EntryLedger API")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("ENTRYLEDGER_TOKEN"), "Bearer token")
	rootCmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")

	rootCmd.AddCommand(
		accountCmd(opts),
		depositCmd(opts),
		withdrawCmd(opts),
		transferCmd(opts),
		txCmd(opts),
		ledgerCmd(opts),
		tokenCmd(),
	)

	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// request runs one API call and prints the JSON answer.
func request(cmd *cobra.Command, opts *cliOptions, method, path string, body any) error {
	data, err := opts.client().do(cmd.Context(), method, path, body, opts.idempotencyKey)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), data)
}

func printJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

func accountCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account operations",
	}

	var create dto.CreateAccountRequest
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Open an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, http.MethodPost, "/api/v1/accounts", &create)
		},
	}
	createCmd.Flags().StringVar(&create.UserID, "user", "", "Owner user id")
	createCmd.Flags().StringVar(&create.AccountType, "type", "checking", "Account type")
	createCmd.Flags().StringVar(&create.Currency, "currency", "", "ISO currency code")
	_ = createCmd.MarkFlagRequired("user")
	_ = createCmd.MarkFlagRequired("currency")

	var limit, offset int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, http.MethodGet, "/api/v1/accounts?"+pageQuery(limit, offset), nil)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "Page size")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Page offset")

	var txLimit, txOffset int
	transactionsCmd := &cobra.Command{
		Use:   "transactions <account-id>",
		Short: "List transactions touching an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, http.MethodGet, accountPath(args[0], "/transactions")+"?"+pageQuery(txLimit, txOffset), nil)
		},
	}
	transactionsCmd.Flags().IntVar(&txLimit, "limit", 20, "Page size")
	transactionsCmd.Flags().IntVar(&txOffset, "offset", 0, "Page offset")

	cmd.AddCommand(
		createCmd,
		listCmd,
		accountGetCmd(opts, "get", "Show an account with its balance", http.MethodGet, ""),
		accountGetCmd(opts, "balance", "Show the derived balance", http.MethodGet, "/balance"),
		accountGetCmd(opts, "ledger", "Show the account's postings, oldest first", http.MethodGet, "/ledger"),
		accountGetCmd(opts, "freeze", "Freeze an account", http.MethodPost, "/freeze"),
		accountGetCmd(opts, "unfreeze", "Reactivate a frozen account", http.MethodPost, "/unfreeze"),
		transactionsCmd,
	)

	return cmd
}

func accountGetCmd(opts *cliOptions, use, short, method, suffix string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <account-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, method, accountPath(args[0], suffix), nil)
		},
	}
}

func accountPath(id, suffix string) string {
	return "/api/v1/accounts/" + url.PathEscape(id) + suffix
}

func pageQuery(limit, offset int) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	return q.Encode()
}

// moneyFlags are shared by the deposit, withdraw and transfer commands.
type moneyFlags struct {
	amount      string
	currency    string
	description string
}

func (f *moneyFlags) register(cmd *cobra.Command, opts *cliOptions) {
	cmd.Flags().StringVar(&f.amount, "amount", "", "Amount, e.g. 12.50")
	cmd.Flags().StringVar(&f.currency, "currency", "", "ISO currency code")
	cmd.Flags().StringVar(&f.description, "description", "", "Free-form description")
	cmd.Flags().StringVar(&opts.idempotencyKey, "idempotency-key", "", "Idempotency-Key header for safe retries")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("currency")
}

func (f *moneyFlags) parseAmount() (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(f.amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid amount %q: %w", f.amount, err)
	}
	return amount, nil
}

func depositCmd(opts *cliOptions) *cobra.Command {
	var (
		money moneyFlags
		to    string
	)
	cmd := &cobra.Command{
		Use:   "deposit",
		Short: "Credit an account from outside the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := money.parseAmount()
			if err != nil {
				return err
			}
			return request(cmd, opts, http.MethodPost, "/api/v1/deposits", &dto.DepositRequest{
				Amount:               amount,
				Currency:             money.currency,
				DestinationAccountID: to,
				Description:          money.description,
			})
		},
	}
	money.register(cmd, opts)
	cmd.Flags().StringVar(&to, "to", "", "Destination account id")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func withdrawCmd(opts *cliOptions) *cobra.Command {
	var (
		money moneyFlags
		from  string
	)
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Debit an account to outside the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := money.parseAmount()
			if err != nil {
				return err
			}
			return request(cmd, opts, http.MethodPost, "/api/v1/withdrawals", &dto.WithdrawRequest{
				Amount:          amount,
				Currency:        money.currency,
				SourceAccountID: from,
				Description:     money.description,
			})
		},
	}
	money.register(cmd, opts)
	cmd.Flags().StringVar(&from, "from", "", "Source account id")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func transferCmd(opts *cliOptions) *cobra.Command {
	var (
		money    moneyFlags
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move funds between two accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := money.parseAmount()
			if err != nil {
				return err
			}
			return request(cmd, opts, http.MethodPost, "/api/v1/transfers", &dto.TransferRequest{
				Amount:               amount,
				Currency:             money.currency,
				SourceAccountID:      from,
				DestinationAccountID: to,
				Description:          money.description,
			})
		},
	}
	money.register(cmd, opts)
	cmd.Flags().StringVar(&from, "from", "", "Source account id")
	cmd.Flags().StringVar(&to, "to", "", "Destination account id")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func txCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Transaction records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "get <transaction-id>",
		Short: "Show a transaction and its postings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, opts, http.MethodGet, "/api/v1/transactions/"+url.PathEscape(args[0]), nil)
		},
	})
	return cmd
}

func ledgerCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Ledger operations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "consistency",
		Short: "Check ledger consistency",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.client().do(cmd.Context(), http.MethodGet, "/api/v1/ledger/consistency", nil, "")
			var apiErr *apiError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict {
				_ = printJSON(cmd.OutOrStdout(), data)
				return errors.New("consistency check FAILED")
			}
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), data); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Consistency check PASSED")
			return nil
		},
	})
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		secret  string
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token signed with the server's JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return errors.New("--secret or JWT_SECRET is required")
			}
			token, err := auth.NewJWTManager(secret, ttl).Generate(domain.Principal{
				Subject: subject,
				Role:    domain.Role(role),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("JWT_SECRET"), "HMAC secret")
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleViewer), "admin, operator or viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
