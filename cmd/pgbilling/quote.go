package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	plandomain "github.com/smallbiznis/pgbilling/internal/plan/domain"
	"github.com/smallbiznis/pgbilling/internal/pricing/calculator"
	pricingdomain "github.com/smallbiznis/pgbilling/internal/pricing/domain"
	"github.com/smallbiznis/pgbilling/internal/pricing/format"
	"github.com/spf13/cobra"
)

type quoteOptions struct {
	planFile string
	beds     int
	branches int
	cycle    string
}

func newQuoteCommand() *cobra.Command {
	opts := quoteOptions{}
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price plans from a JSON file without a database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plans, err := readPlans(opts.planFile)
			if err != nil {
				return err
			}
			cfg, err := opts.configuration(cmd)
			if err != nil {
				return err
			}
			return renderQuote(cmd.OutOrStdout(), plans, cfg)
		},
	}
	cmd.Flags().StringVar(&opts.planFile, "plan-file", "", "JSON file holding one plan or a list of plans")
	cmd.Flags().IntVar(&opts.beds, "beds", 0, "beds to price (defaults to each plan's base bed count)")
	cmd.Flags().IntVar(&opts.branches, "branches", 0, "branches to price (defaults to each plan's branch count)")
	cmd.Flags().StringVar(&opts.cycle, "cycle", "", "monthly or annual (defaults to each plan's cycle)")
	_ = cmd.MarkFlagRequired("plan-file")
	return cmd
}

func (o quoteOptions) configuration(cmd *cobra.Command) (pricingdomain.Configuration, error) {
	cfg := pricingdomain.Configuration{}
	if cmd.Flags().Changed("beds") {
		beds := o.beds
		cfg.Beds = &beds
	}
	if cmd.Flags().Changed("branches") {
		branches := o.branches
		cfg.Branches = &branches
	}
	if cycle := strings.ToLower(strings.TrimSpace(o.cycle)); cycle != "" {
		bc := plandomain.BillingCycle(cycle)
		cfg.BillingCycle = &bc
	}
	return cfg, cfg.Validate()
}

func readPlans(path string) ([]plandomain.Plan, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodePlans(raw)
}

// decodePlans accepts either a single plan object or an array of plans.
func decodePlans(raw []byte) ([]plandomain.Plan, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, errors.New("plan file is empty")
	}
	if strings.HasPrefix(trimmed, "[") {
		var plans []plandomain.Plan
		if err := json.Unmarshal(raw, &plans); err != nil {
			return nil, fmt.Errorf("decode plans: %w", err)
		}
		return plans, nil
	}
	var plan plandomain.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	return []plandomain.Plan{plan}, nil
}

func renderQuote(w io.Writer, plans []plandomain.Plan, cfg pricingdomain.Configuration) error {
	if len(plans) == 1 {
		plan := plans[0]
		if err := plan.Validate(); err != nil {
			return fmt.Errorf("plan %q: %w", plan.Name, err)
		}
		renderBreakdown(w, plan, calculator.CalculatePlanCost(plan, cfg))
		return nil
	}

	result := calculator.ComparePlans(plans, cfg)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Plan", "Tier", "Cycle", "Beds", "Branches", "Total", "Monthly"})
	for _, c := range result.Comparisons {
		table.Append([]string{
			c.PlanName,
			string(c.Tier),
			string(c.Calculation.BillingCycle),
			strconv.Itoa(c.Calculation.Beds),
			strconv.Itoa(c.Calculation.Branches),
			format.Amount(c.Calculation.TotalPrice),
			format.Amount(c.Calculation.MonthlyEquivalent),
		})
	}
	table.Render()

	if result.BestValue != nil {
		fmt.Fprintf(w, "best value: %s\n", result.BestValue.PlanName)
	}
	for _, u := range result.Unavailable {
		fmt.Fprintf(w, "skipped %s: %s\n", u.PlanID, u.Reason)
	}
	return nil
}

func renderBreakdown(w io.Writer, plan plandomain.Plan, b pricingdomain.Breakdown) {
	display := format.FromBreakdown(b)

	fmt.Fprintf(w, "%s (%s, %d beds, %d branches)\n", plan.Name, b.BillingCycle, b.Beds, b.Branches)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Item", "Amount"})
	table.AppendBulk([][]string{
		{"Base price", display.BasePrice},
		{fmt.Sprintf("Extra beds (%d)", b.ExtraBeds), display.ExtraBedCost},
		{fmt.Sprintf("Extra branches (%d)", b.ExtraBranches), display.BranchCost},
		{"Subtotal", display.Subtotal},
		{"Annual discount", display.AnnualDiscount},
		{fmt.Sprintf("Tax (%s%%)", strconv.FormatFloat(b.TaxRate, 'f', -1, 64)), display.TaxAmount},
		{"Setup fee", display.SetupFee},
		{"Total", display.TotalPrice},
		{"Monthly equivalent", display.MonthlyEquivalent},
	})
	table.Render()
}
