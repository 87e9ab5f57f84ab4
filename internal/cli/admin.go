package cli

import (
	"fmt"

	"github.com/safar/resale-market/internal/models"
	"github.com/safar/resale-market/internal/notify"
	"github.com/safar/resale-market/internal/store"
	"github.com/spf13/cobra"
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Moderate reviews",
}

var approveReviewCmd = &cobra.Command{
	Use:   "approve <review-id>",
	Short: "Publish a review on the product and seller pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		_, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		review, err := store.ApproveReview(cmd.Context(), db, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Review %d approved (product %d, rating %d)\n", review.ID, review.ProductID, review.Rating)
		return nil
	},
}

var sellersCmd = &cobra.Command{
	Use:   "sellers",
	Short: "Manage seller accounts",
}

func sellerFlagCmd(use, short string, flags func() store.SellerFlags) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <seller-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			seller, err := store.SetSellerFlags(cmd.Context(), db, id, flags())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seller %d: active=%t verified=%t blocked=%t\n",
				seller.ID, seller.IsActive, seller.IsVerified, seller.IsBlocked)
			return nil
		},
	}
}

func boolPtr(b bool) *bool {
	return &b
}

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Manage orders",
}

var orderStatusCmd = &cobra.Command{
	Use:   "status <order-id> <status>",
	Short: "Move an order to a new status and notify the customer",
	Long: `Move an order to a new status: pending, processing, shipped, delivered,
completed or cancelled. Cancelling restores stock; completing marks the
payment as paid. Cancelled and completed orders are final.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		status := models.OrderStatus(args[1])
		if !status.Valid() {
			return fmt.Errorf("unknown status %q", args[1])
		}

		cfg, db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		change, err := store.SetOrderStatus(cmd.Context(), db, id, status)
		if err != nil {
			return err
		}
		notify.New(db, cfg.Mail).Deliver(cmd.Context(), change.Notifications...)

		fmt.Fprintf(cmd.OutOrStdout(), "Order %s is now %s\n", change.Order.OrderNumber, change.Order.Status)
		return nil
	},
}

func init() {
	reviewsCmd.AddCommand(approveReviewCmd)

	sellersCmd.AddCommand(
		sellerFlagCmd("verify", "Mark a seller as verified", func() store.SellerFlags {
			return store.SellerFlags{Verified: boolPtr(true)}
		}),
		sellerFlagCmd("block", "Block a seller from selling", func() store.SellerFlags {
			return store.SellerFlags{Blocked: boolPtr(true)}
		}),
		sellerFlagCmd("unblock", "Lift a seller block", func() store.SellerFlags {
			return store.SellerFlags{Blocked: boolPtr(false)}
		}),
	)

	ordersCmd.AddCommand(orderStatusCmd)

	rootCmd.AddCommand(reviewsCmd, sellersCmd, ordersCmd)
}
