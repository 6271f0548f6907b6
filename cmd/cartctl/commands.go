package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/mercadito/storefront-backend/pkg/cartclient"
	"github.com/spf13/cobra"
)

func newGetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <client-id>",
		Short: "List the lines of a client's cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "client-id")
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			items, err := client.GetCart(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			return writeItems(cmd.OutOrStdout(), items)
		},
	}
}

func newSummaryCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "summary <client-id>",
		Short: "Show item count and total of a client's cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "client-id")
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			summary, err := client.GetSummary(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), summary)
			}

			out := cmd.OutOrStdout()
			if summary.CartID == nil {
				fmt.Fprintf(out, "Client %d has no open cart\n", summary.ClientID)
				return nil
			}
			fmt.Fprintf(out, "Cart %d: %d items in %d lines, total %s\n",
				*summary.CartID, summary.ItemCount, summary.LineCount, summary.Total.StringFixed(2))
			return nil
		},
	}
}

func newAddCommand(opts *options) *cobra.Command {
	var quantity int

	cmd := &cobra.Command{
		Use:   "add <client-id> <product-id>",
		Short: "Add units of a product to a client's cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "client-id", "product-id")
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			item, err := client.InsertItem(cmd.Context(), ids[0], ids[1], quantity)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), item)
			}
			return writeItems(cmd.OutOrStdout(), []cartclient.CartItem{*item})
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", 1, "units to add")
	return cmd
}

func newSetCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <cart-id> <product-id> <quantity>",
		Short: "Set the quantity of a cart line; 0 removes it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args[:2], "cart-id", "product-id")
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[2])
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			update, err := client.UpdateQuantity(cmd.Context(), ids[0], ids[1], quantity)
			if err != nil {
				return err
			}
			if update.Removed != nil {
				return writeRemoved(cmd.OutOrStdout(), opts.json, update.Removed)
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), update.Item)
			}
			return writeItems(cmd.OutOrStdout(), []cartclient.CartItem{*update.Item})
		},
	}
}

func newRemoveCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <cart-id> <product-id>",
		Short: "Remove a product from a cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "cart-id", "product-id")
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			removed, err := client.DeleteItem(cmd.Context(), ids[0], ids[1])
			if err != nil {
				return err
			}
			return writeRemoved(cmd.OutOrStdout(), opts.json, removed)
		},
	}
}

func newCheckoutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <cart-id>",
		Short: "Convert a cart into an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args, "cart-id")
			if err != nil {
				return err
			}
			client, err := opts.client()
			if err != nil {
				return err
			}

			order, err := client.ConvertCartToOrder(cmd.Context(), ids[0])
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), order)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %d created from cart %d: %d items, total %s\n",
				order.ID, order.CartID, order.ItemCount, order.Total.StringFixed(2))
			return nil
		},
	}
}

func parseIDs(args []string, names ...string) ([]uint, error) {
	ids := make([]uint, len(args))
	for i, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil || id == 0 {
			return nil, fmt.Errorf("invalid %s %q: must be a positive integer", names[i], arg)
		}
		ids[i] = uint(id)
	}
	return ids, nil
}

func writeItems(out io.Writer, items []cartclient.CartItem) error {
	if len(items) == 0 {
		fmt.Fprintln(out, "Cart is empty")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CART\tPRODUCT\tNAME\tQTY\tUNIT\tSUBTOTAL")
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%s\t%s\n",
			item.CartID, item.ProductID, item.Name, item.Quantity,
			item.UnitPrice.StringFixed(2), item.SubTotal.StringFixed(2))
	}
	return w.Flush()
}

func writeRemoved(out io.Writer, asJSON bool, removed *cartclient.RemovedCartItem) error {
	if asJSON {
		return writeJSON(out, removed)
	}
	fmt.Fprintf(out, "Removed product %d from cart %d\n", removed.ProductID, removed.CartID)
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
