package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/contaflow/contaflow/internal/classify"
	"github.com/contaflow/contaflow/internal/model"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify unclassified transactions against the rule set",
		Long: `Classify transactions by matching their descriptors against the
enabled classification rules. Each transaction is matched independently;
the highest-priority matching rule wins.`,
		RunE: runClassify,
	}

	cmd.Flags().StringP("batch", "b", "", "classify only transactions from this batch")

	cmd.AddCommand(overrideCmd())

	return cmd
}

func runClassify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	batchID, _ := cmd.Flags().GetString("batch")

	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	svc := classify.NewService(store)
	if err := svc.Reload(ctx); err != nil {
		return err
	}
	slog.Info("rule cache loaded", "rules", svc.RuleCount())

	transactions, err := store.ListUnclassified(ctx, batchID)
	if err != nil {
		return err
	}
	if len(transactions) == 0 {
		fmt.Println("Nothing to classify.")
		return nil
	}

	results, err := svc.ClassifyBatch(ctx, transactions)
	if err != nil {
		return err
	}

	matched := 0
	for _, result := range results {
		if err := store.UpdateClassification(ctx, result); err != nil {
			return fmt.Errorf("failed to persist classification for %s: %w", result.TransactionID, err)
		}
		if result.Status == model.StatusRuleMatched {
			matched++
		}
	}

	fmt.Printf("Classified %d transactions: %d matched, %d unclassified\n",
		len(results), matched, len(results)-matched)
	return nil
}

func overrideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "override <transaction-id> <category>",
		Short: "Manually override a transaction's category",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			txn, err := store.GetTransactionByID(ctx, args[0])
			if err != nil {
				return err
			}

			result := classify.Override(*txn, args[1])
			if err := store.UpdateClassification(ctx, result); err != nil {
				return err
			}

			fmt.Printf("Transaction %s set to %q (manual)\n", txn.ID, args[1])
			return nil
		},
	}
	return cmd
}
