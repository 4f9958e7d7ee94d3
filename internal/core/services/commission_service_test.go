package services

import (
	"context"
	"testing"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCommissionsFullChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 7)
	producer := chain[6]
	sale := env.sale(t, producer, "1000.00")

	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ComputationComputed, result.Status)
	require.Len(t, result.Commissions, domain.MaxLevels)
	assert.False(t, result.ShortChain())
	assert.Equal(t, map[int]int64{1: 10000, 2: 5000, 3: 3000, 4: 2000, 5: 1000, 6: 1000}, amountsByLevel(result.Commissions))
	assert.Equal(t, int64(22000), result.TotalCents)

	// level 1 is the producer, then nearest ancestor first; the root is beyond level 6
	for i, c := range result.Commissions {
		assert.Equal(t, chain[6-i].ID, c.RecipientID)
		assert.Equal(t, domain.StatusPending, c.Status)
		assert.Equal(t, domain.ProvenanceReal, c.Provenance)
	}

	stored, err := env.commissions.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Len(t, stored, domain.MaxLevels)
}

func TestComputeCommissionsShortChain(t *testing.T) {
	env := newTestEnv(t)
	chain := env.chain(t, 2)
	sale := env.sale(t, chain[1], "200.00")

	result, err := env.calculator.ComputeCommissions(context.Background(), sale.ID, ComputeOptions{})
	require.NoError(t, err)

	assert.True(t, result.ShortChain())
	assert.Equal(t, map[int]int64{1: 2000, 2: 1000}, amountsByLevel(result.Commissions))
}

func TestComputeCommissionsRoundsHalfUp(t *testing.T) {
	env := newTestEnv(t)
	chain := env.chain(t, 6)
	sale := env.sale(t, chain[5], "10.05")

	result, err := env.calculator.ComputeCommissions(context.Background(), sale.ID, ComputeOptions{})
	require.NoError(t, err)

	// 100.5 -> 101, 50.25 -> 50, 30.15 -> 30, 20.1 -> 20, 10.05 -> 10
	assert.Equal(t, map[int]int64{1: 101, 2: 50, 3: 30, 4: 20, 5: 10, 6: 10}, amountsByLevel(result.Commissions))
}

func TestComputeCommissionsForfeitsIneligibleLevels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 6)

	_, err := env.directory.SetStatus(ctx, chain[4].ID, domain.AffiliateInactive)
	require.NoError(t, err)
	_, err = env.directory.SetCompActive(ctx, chain[3].ID, false)
	require.NoError(t, err)

	sale := env.sale(t, chain[5], "1000.00")
	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	// levels 2 and 3 are forfeited; nothing rolls up to level 4
	assert.Equal(t, 2, result.ForfeitedLevels)
	assert.Equal(t, map[int]int64{1: 10000, 4: 2000, 5: 1000, 6: 1000}, amountsByLevel(result.Commissions))
	assert.Equal(t, int64(14000), result.TotalCents)
}

func TestComputeCommissionsIneligibleProducer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 2)
	_, err := env.directory.SetCompActive(ctx, chain[1].ID, false)
	require.NoError(t, err)

	sale := env.sale(t, chain[1], "100.00")
	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ForfeitedLevels)
	assert.Equal(t, map[int]int64{2: 500}, amountsByLevel(result.Commissions))
}

func TestComputeCommissionsStaleAncestor(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 5)

	// remove the level-3 ancestor behind the directory's back
	require.NoError(t, env.db.Delete(&models.Affiliate{}, chain[2].ID).Error)

	sale := env.sale(t, chain[4], "1000.00")
	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.StaleLevels)
	assert.Equal(t, map[int]int64{1: 10000, 2: 5000}, amountsByLevel(result.Commissions))
}

func TestComputeCommissionsCycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 3)

	// a loop written directly to storage must be reported, not followed
	require.NoError(t, env.db.Model(&models.Affiliate{}).Where("id = ?", chain[0].ID).
		Update("upline_id", chain[2].ID).Error)

	sale := env.sale(t, chain[2], "100.00")
	_, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})

	var cycleErr *domain.HierarchyCycleError
	require.ErrorAs(t, err, &cycleErr)

	count, err := env.commissions.CountBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestComputeCommissionsIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 3)
	sale := env.sale(t, chain[2], "500.00")

	first, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)
	second, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ComputationSkippedExisting, second.Status)
	assert.Equal(t, first.TotalCents, second.TotalCents)

	count, err := env.commissions.CountBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestComputeCommissionsRecompute(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 3)
	sale := env.sale(t, chain[2], "500.00")

	_, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)

	_, err = env.directory.SetCompActive(ctx, chain[1].ID, false)
	require.NoError(t, err)

	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{Recompute: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ComputationRecomputed, result.Status)

	stored, err := env.commissions.ListBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, map[int]int64{1: 5000, 3: 1500}, amountsByLevel(stored))
}

func TestComputeCommissionsRecomputeLockedAfterApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 2)
	sale := env.sale(t, chain[1], "500.00")

	result, err := env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	require.NoError(t, err)
	_, err = env.ledger.TransitionCommission(ctx, result.Commissions[0].ID, domain.StatusApproved)
	require.NoError(t, err)

	_, err = env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{Recompute: true})
	assert.ErrorIs(t, err, domain.ErrRecomputeLocked)

	count, err := env.commissions.CountBySale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestComputeCommissionsVoidSale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 1)
	sale := env.sale(t, chain[0], "50.00")

	_, err := env.saleSvc.Transition(ctx, sale.ID, domain.StatusVoid)
	require.NoError(t, err)

	_, err = env.calculator.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
	assert.ErrorIs(t, err, domain.ErrSaleVoid)
}

func TestComputeCommissionsUnknownSale(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.calculator.ComputeCommissions(context.Background(), 404, ComputeOptions{})
	assert.ErrorIs(t, err, domain.ErrSaleNotFound)
}

func TestComputeCommissionsNeverExceedsSale(t *testing.T) {
	env := newTestEnvWithRates(t, "0.5,0.2,0.1,0.1,0.05,0.05")
	chain := env.chain(t, 6)
	sale := env.sale(t, chain[5], "0.03")

	result, err := env.calculator.ComputeCommissions(context.Background(), sale.ID, ComputeOptions{})
	require.NoError(t, err)

	// 1.5 -> 2 and 0.6 -> 1 exhaust the 3 cents; later levels are capped at 0
	assert.Equal(t, map[int]int64{1: 2, 2: 1, 3: 0, 4: 0, 5: 0, 6: 0}, amountsByLevel(result.Commissions))
	assert.LessOrEqual(t, result.TotalCents, sale.AmountCents)
}

func TestComputeMissing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 2)
	env.sale(t, chain[1], "100.00")
	env.sale(t, chain[0], "200.00")
	voided := env.sale(t, chain[0], "300.00")
	_, err := env.saleSvc.Transition(ctx, voided.ID, domain.StatusVoid)
	require.NoError(t, err)

	sweep, err := env.calculator.ComputeMissing(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, sweep.Scanned)
	assert.Equal(t, 2, sweep.Computed)
	assert.Zero(t, sweep.Failed)

	sweep, err = env.calculator.ComputeMissing(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, sweep.Scanned)
}

func TestComputeMissingMovesPastSalesWithNoEligibleLevels(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	dormant := env.chain(t, 1)[0]
	_, err := env.directory.SetStatus(ctx, dormant.ID, domain.AffiliateInactive)
	require.NoError(t, err)
	eligible := env.chain(t, 1)[0]

	forfeited := env.sale(t, dormant, "100.00")
	paying := env.sale(t, eligible, "100.00")

	sweep, err := env.calculator.ComputeMissing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Computed)

	stored, err := env.sales.GetByID(ctx, forfeited.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.CommissionsComputedAt)

	sweep, err = env.calculator.ComputeMissing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, sweep.Scanned)
	assert.Equal(t, 1, sweep.Computed)

	count, err := env.commissions.CountBySale(ctx, paying.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	sweep, err = env.calculator.ComputeMissing(ctx, 1)
	require.NoError(t, err)
	assert.Zero(t, sweep.Scanned)

	// reactivation does not reopen a computed sale
	_, err = env.directory.SetStatus(ctx, dormant.ID, domain.AffiliateActive)
	require.NoError(t, err)
	result, err := env.calculator.ComputeCommissions(ctx, forfeited.ID, ComputeOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.ComputationSkippedExisting, result.Status)
	assert.Empty(t, result.Commissions)
}

func TestComputeMissingScansPastFailingSales(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	looped := env.chain(t, 2)
	require.NoError(t, env.db.Model(&models.Affiliate{}).Where("id = ?", looped[0].ID).
		Update("upline_id", looped[1].ID).Error)
	eligible := env.chain(t, 1)[0]

	broken := env.sale(t, looped[1], "100.00")
	paying := env.sale(t, eligible, "100.00")

	sweep, err := env.calculator.ComputeMissing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, sweep.Scanned)
	assert.Equal(t, 1, sweep.Failed)
	assert.Equal(t, 1, sweep.Computed)

	count, err := env.commissions.CountBySale(ctx, paying.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := env.sales.GetByID(ctx, broken.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CommissionsComputedAt)
}

func TestRecordSaleWithCompute(t *testing.T) {
	env := newTestEnv(t)
	chain := env.chain(t, 2)

	result, err := env.saleSvc.Record(context.Background(), &RecordSaleInput{
		ReferralCode: chain[1].ReferralCode,
		Amount:       "250.00",
		ExternalRef:  "INV-1",
		Compute:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(25000), result.Sale.AmountCents)
	assert.Equal(t, domain.StatusPending, result.Sale.Status)
	require.NotNil(t, result.Computation)
	assert.Len(t, result.Computation.Commissions, 2)
}

func TestRecordSaleRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	chain := env.chain(t, 1)
	id := chain[0].ID

	for _, amount := range []string{"0", "-5.00", "1.234", "abc", "100000000000000000000"} {
		_, err := env.saleSvc.Record(ctx, &RecordSaleInput{AffiliateID: &id, Amount: amount})
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
	}

	missing := uint(999)
	_, err := env.saleSvc.Record(ctx, &RecordSaleInput{AffiliateID: &missing, Amount: "10.00"})
	assert.ErrorIs(t, err, domain.ErrAffiliateNotFound)

	_, err = env.saleSvc.Record(ctx, &RecordSaleInput{Amount: "10.00"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
