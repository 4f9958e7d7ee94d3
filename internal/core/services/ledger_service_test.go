package services

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/export"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var realScope = domain.Scope{Kind: domain.ScopeReal}

func TestTransitionCommissionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 2)
	sale := env.sale(t, chain[1], "100.00")
	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)
	id := result.Commissions[0].ID

	_, err = env.ledger.TransitionCommission(ctx, id, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "pending cannot skip to paid")

	c, err := env.ledger.TransitionCommission(ctx, id, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, c.Status)

	_, err = env.ledger.TransitionCommission(ctx, id, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrSaleNotApproved)

	_, err = env.saleSvc.Transition(ctx, sale.ID, domain.StatusApproved)
	require.NoError(t, err)

	c, err = env.ledger.TransitionCommission(ctx, id, domain.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, c.Status)

	_, err = env.ledger.TransitionCommission(ctx, id, domain.StatusVoid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "paid is terminal")

	_, err = env.ledger.TransitionCommission(ctx, 9999, domain.StatusApproved)
	assert.ErrorIs(t, err, domain.ErrCommissionNotFound)
}

func TestSaleTransitionDoesNotTouchCommissions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 2)
	sale := env.sale(t, chain[1], "100.00")
	_, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	_, err = env.saleSvc.Transition(ctx, sale.ID, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = env.saleSvc.Transition(ctx, sale.ID, domain.StatusApproved)
	require.NoError(t, err)

	rows, err := env.ledger.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	for _, c := range rows {
		assert.Equal(t, domain.StatusPending, c.Status)
	}
}

func TestTransitionSaleCommissionsMovesAllRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 4)
	sale := env.sale(t, chain[3], "400.00")
	_, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	moved, err := env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, int64(4), moved)

	// already approved rows are left alone
	moved, err = env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusApproved)
	require.NoError(t, err)
	assert.Zero(t, moved)

	_, err = env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrSaleNotApproved)

	_, err = env.saleSvc.Transition(ctx, sale.ID, domain.StatusApproved)
	require.NoError(t, err)
	moved, err = env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, int64(4), moved)
}

func TestTransitionSaleCommissionsRollsBackOnBadRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 3)
	sale := env.sale(t, chain[2], "300.00")
	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	_, err = env.ledger.TransitionCommission(ctx, result.Commissions[0].ID, domain.StatusApproved)
	require.NoError(t, err)
	_, err = env.saleSvc.Transition(ctx, sale.ID, domain.StatusApproved)
	require.NoError(t, err)

	// pending rows cannot skip to paid, so the approved row stays put too
	_, err = env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	rows, err := env.ledger.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, rows[0].Status)
	assert.Equal(t, domain.StatusPending, rows[1].Status)
	assert.Equal(t, domain.StatusPending, rows[2].Status)
}

func TestTransitionSaleCommissionsLeavesVoidRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 3)
	sale := env.sale(t, chain[2], "300.00")
	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	_, err = env.ledger.TransitionCommission(ctx, result.Commissions[2].ID, domain.StatusVoid)
	require.NoError(t, err)

	moved, err := env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	_, err = env.saleSvc.Transition(ctx, sale.ID, domain.StatusApproved)
	require.NoError(t, err)
	moved, err = env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	rows, err := env.ledger.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, rows[0].Status)
	assert.Equal(t, domain.StatusPaid, rows[1].Status)
	assert.Equal(t, domain.StatusVoid, rows[2].Status)
}

func TestVoidSaleBlocksApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 2)
	sale := env.sale(t, chain[1], "100.00")
	_, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	_, err = env.saleSvc.Transition(ctx, sale.ID, domain.StatusVoid)
	require.NoError(t, err)

	_, err = env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusApproved)
	assert.ErrorIs(t, err, domain.ErrSaleVoid)

	moved, err := env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusVoid)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)
}

func TestAffiliateSummaryExcludesVoid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 2)
	root := chain[0]

	kept := env.sale(t, chain[1], "1000.00")
	voided := env.sale(t, chain[1], "500.00")
	_, err := env.calculator.ComputeCommissions(ctx, kept.ID, ComputeOptions{})
	require.NoError(t, err)
	_, err = env.calculator.ComputeCommissions(ctx, voided.ID, ComputeOptions{})
	require.NoError(t, err)

	_, err = env.ledger.TransitionSaleCommissions(ctx, kept.ID, domain.StatusApproved)
	require.NoError(t, err)
	_, err = env.saleSvc.Transition(ctx, voided.ID, domain.StatusVoid)
	require.NoError(t, err)
	_, err = env.ledger.TransitionSaleCommissions(ctx, voided.ID, domain.StatusVoid)
	require.NoError(t, err)

	summary, err := env.ledger.AffiliateSummary(ctx, root.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), summary.TotalCents)
	assert.Equal(t, int64(5000), summary.ApprovedCents)
	assert.Zero(t, summary.PendingCents)
	assert.Equal(t, int64(5000), summary.LevelCents[1])
	assert.Zero(t, summary.DirectSales)

	producer, err := env.ledger.AffiliateSummary(ctx, chain[1].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), producer.DirectSales)
	assert.Equal(t, int64(100000), producer.SalesVolumeCents)
	assert.Equal(t, int64(10000), producer.LevelCents[0])

	resp := producer.ToResponse()
	assert.Equal(t, "1000.00", resp.SalesVolume)
	assert.Equal(t, "100.00", resp.TotalCommissions)
	assert.Len(t, resp.Levels, domain.MaxLevels)
}

func TestExportRoundTripMatchesRawRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 7)

	amounts := []string{"1000.00", "10.05", "999.99", "0.01"}
	for i, amount := range amounts {
		sale := env.sale(t, chain[len(chain)-1-i], amount)
		_, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
		require.NoError(t, err)
		if i == 1 {
			_, err = env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusApproved)
			require.NoError(t, err)
		}
		if i == 2 {
			_, err = env.ledger.TransitionSaleCommissions(ctx, sale.ID, domain.StatusVoid)
			require.NoError(t, err)
		}
	}

	var buf bytes.Buffer
	written, err := env.ledger.ExportCSV(ctx, realScope, &buf)
	require.NoError(t, err)
	assert.Equal(t, len(chain), written)
	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(export.Header, ",")))

	rows, err := export.ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, rows, len(chain))

	compared, err := env.ledger.CompareExport(ctx, realScope, rows)
	require.NoError(t, err)
	assert.True(t, compared.OK(), "%+v", compared.Mismatches)
	assert.Equal(t, len(chain), compared.Affiliates)

	verified, err := env.ledger.VerifyReport(ctx, realScope)
	require.NoError(t, err)
	assert.True(t, verified.OK(), "%+v", verified.Mismatches)

	// a tampered export is caught
	rows[0].TotalCents++
	compared, err = env.ledger.CompareExport(ctx, realScope, rows)
	require.NoError(t, err)
	require.Len(t, compared.Mismatches, 1)
	assert.Equal(t, "total_commissions", compared.Mismatches[0].Field)
	assert.Equal(t, rows[0].AffiliateID, compared.Mismatches[0].AffiliateID)

	compared, err = env.ledger.CompareExport(ctx, realScope, rows[1:])
	require.NoError(t, err)
	require.Len(t, compared.Mismatches, 1)
	assert.Equal(t, "missing_row", compared.Mismatches[0].Field)
}

func TestReportPagination(t *testing.T) {
	env := newTestEnv(t)
	env.chain(t, 5)

	reports, total, err := env.ledger.Report(context.Background(), realScope, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, reports, 2)
}
