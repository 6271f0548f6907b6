package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mercadito/storefront-backend/pkg/cartclient"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:3000"

type options struct {
	apiURL  string
	timeout time.Duration
	json    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "cartctl",
		Short: "Inspect and change storefront carts",
		Long: `cartctl talks to the storefront cart API.

Available subcommands:
  get      - List the lines of a client's cart
  summary  - Show item count and total of a client's cart
  add      - Add units of a product
  set      - Set the quantity of a line (0 removes it)
  remove   - Remove a product from a cart
  checkout - Convert a cart into an order`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// --json prints amounts as numbers, the way the API sends them
			decimal.MarshalJSONWithoutQuotes = true
		},
	}

	apiURL := os.Getenv("STOREFRONT_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", apiURL, "storefront API base URL (env STOREFRONT_API_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print raw JSON")

	root.AddCommand(
		newGetCommand(opts),
		newSummaryCommand(opts),
		newAddCommand(opts),
		newSetCommand(opts),
		newRemoveCommand(opts),
		newCheckoutCommand(opts),
	)
	return root
}

func (o *options) client() (*cartclient.Client, error) {
	return cartclient.NewClient(cartclient.Config{BaseURL: o.apiURL, Timeout: o.timeout})
}
