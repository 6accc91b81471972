package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/contaflow/contaflow/internal/classify"
	"github.com/contaflow/contaflow/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage classification rules",
	}

	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesShowCmd())
	cmd.AddCommand(rulesUpdateCmd())
	cmd.AddCommand(rulesTestCmd())
	cmd.AddCommand(rulesSetActiveCmd("enable", true))
	cmd.AddCommand(rulesSetActiveCmd("disable", false))

	return cmd
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a classification rule",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			rule, err := ruleFromFlags(cmd)
			if err != nil {
				return err
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.CreateRule(ctx, rule); err != nil {
				return err
			}

			fmt.Printf("Created rule %d %q (priority %d)\n", rule.ID, rule.Name, rule.Priority)
			return nil
		},
	}

	addRuleFlags(cmd)
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List classification rules in evaluation order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			all, _ := cmd.Flags().GetBool("all")
			var rules []model.ClassificationRule
			if all {
				rules, err = store.GetAllRules(ctx)
			} else {
				rules, err = store.GetActiveRules(ctx)
			}
			if err != nil {
				return err
			}

			if len(rules) == 0 {
				fmt.Println("No rules defined.")
				return nil
			}

			fmt.Printf("%-5s %-6s %-25s %-10s %-30s %-20s %s\n",
				"ID", "PRIO", "NAME", "KIND", "PATTERN", "CATEGORY", "STATE")
			for _, rule := range rules {
				state := "enabled"
				if !rule.IsActive {
					state = "disabled"
				}
				fmt.Printf("%-5d %-6d %-25s %-10s %-30s %-20s %s\n",
					rule.ID, rule.Priority, rule.Name, rule.Kind, rule.Pattern, rule.Category, state)
			}
			return nil
		},
	}

	cmd.Flags().Bool("all", false, "include disabled rules")
	return cmd
}

func rulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one rule in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule, err := store.GetRuleByID(ctx, id)
			if err != nil {
				return err
			}

			fmt.Printf("Rule %d %q\n", rule.ID, rule.Name)
			fmt.Printf("  Pattern:  %s (%s)\n", rule.Pattern, rule.Kind)
			fmt.Printf("  Category: %s\n", rule.Category)
			fmt.Printf("  Priority: %d\n", rule.Priority)
			fmt.Printf("  Version:  %d\n", rule.Version)
			fmt.Printf("  Enabled:  %t\n", rule.IsActive)
			return nil
		},
	}
}

func rulesUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a rule, bumping its version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rule, err := store.GetRuleByID(ctx, id)
			if err != nil {
				return err
			}

			// Only overwrite fields the caller passed.
			if cmd.Flags().Changed("name") {
				rule.Name, _ = cmd.Flags().GetString("name")
			}
			if cmd.Flags().Changed("pattern") {
				rule.Pattern, _ = cmd.Flags().GetString("pattern")
			}
			if cmd.Flags().Changed("kind") {
				kind, _ := cmd.Flags().GetString("kind")
				rule.Kind = model.MatchKind(kind)
			}
			if cmd.Flags().Changed("category") {
				rule.Category, _ = cmd.Flags().GetString("category")
			}
			if cmd.Flags().Changed("priority") {
				rule.Priority, _ = cmd.Flags().GetInt("priority")
			}

			if err := store.UpdateRule(ctx, rule); err != nil {
				return err
			}

			fmt.Printf("Updated rule %d, now at version %d\n", rule.ID, rule.Version)
			return nil
		},
	}

	addRuleFlags(cmd)
	return cmd
}

func rulesTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <descriptor>",
		Short: "Show every rule matching a descriptor, in priority order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			svc := classify.NewService(store)
			if err := svc.Reload(ctx); err != nil {
				return err
			}

			matches, err := svc.FindAllMatches(args[0])
			if err != nil {
				return err
			}

			if len(matches) == 0 {
				fmt.Println("No rule matched.")
				return nil
			}

			for i, match := range matches {
				winner := " "
				if i == 0 {
					winner = "*"
				}
				fmt.Printf("%s rule %d %q (priority %d) -> %s (%s)\n",
					winner, match.Rule.ID, match.Rule.Name, match.Rule.Priority,
					match.Rule.Category, match.Reason)
			}
			return nil
		},
	}
}

func rulesSetActiveCmd(use string, active bool) *cobra.Command {
	short := "Enable a rule"
	if !active {
		short = "Disable a rule"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.SetRuleActive(ctx, id, active); err != nil {
				return err
			}

			fmt.Printf("Rule %d %sd\n", id, use)
			return nil
		},
	}
}

func addRuleFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "unique rule name")
	cmd.Flags().String("pattern", "", "pattern to match against descriptors")
	cmd.Flags().String("kind", string(model.MatchContains), "match kind (contains, regex)")
	cmd.Flags().String("category", "", "category assigned on match")
	cmd.Flags().Int("priority", 0, "evaluation priority (higher wins)")
	cmd.Flags().Bool("disabled", false, "create the rule disabled")
}

func ruleFromFlags(cmd *cobra.Command) (*model.ClassificationRule, error) {
	name, _ := cmd.Flags().GetString("name")
	pattern, _ := cmd.Flags().GetString("pattern")
	kind, _ := cmd.Flags().GetString("kind")
	category, _ := cmd.Flags().GetString("category")
	priority, _ := cmd.Flags().GetInt("priority")
	disabled, _ := cmd.Flags().GetBool("disabled")

	rule := &model.ClassificationRule{
		Name:     name,
		Pattern:  pattern,
		Kind:     model.MatchKind(kind),
		Category: category,
		Priority: priority,
		IsActive: !disabled,
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}
