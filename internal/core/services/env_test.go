package services

import (
	"context"
	"fmt"
	"testing"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/core/domain"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testRates = "0.10,0.05,0.03,0.02,0.01,0.01"

// testEnv is a fully wired service stack on a private in-memory database
type testEnv struct {
	db          *gorm.DB
	affiliates  *repositories.AffiliateRepository
	sales       *repositories.SaleRepository
	commissions *repositories.CommissionRepository
	runs        *repositories.SimulationRepository

	resolver   *HierarchyResolver
	directory  *DirectoryService
	calculator *CommissionService
	saleSvc    *SaleService
	ledger     *LedgerService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), config.GormConfig(gormlogger.Default.LogMode(gormlogger.Silent)))
	require.NoError(t, err)

	// every connection to :memory: is a separate database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithRates(t, testRates)
}

func newTestEnvWithRates(t *testing.T, rates string) *testEnv {
	t.Helper()
	table, err := domain.ParseRateTable(rates)
	require.NoError(t, err)

	db := newTestDB(t)
	env := &testEnv{
		db:          db,
		affiliates:  repositories.NewAffiliateRepository(db),
		sales:       repositories.NewSaleRepository(db),
		commissions: repositories.NewCommissionRepository(db),
		runs:        repositories.NewSimulationRepository(db),
	}
	env.resolver = NewHierarchyResolver(env.affiliates, env.affiliates)
	env.directory = NewDirectoryService(env.affiliates, env.resolver)
	env.calculator = NewCommissionService(env.sales, env.commissions, env.resolver, table)
	env.saleSvc = NewSaleService(env.sales, env.affiliates, env.calculator)
	env.ledger = NewLedgerService(env.affiliates, env.sales, env.commissions)
	return env
}

func (e *testEnv) simulator(policy domain.ScalePolicy, chunkSize int) *SimulatorService {
	return NewSimulatorService(e.db, e.affiliates, e.sales, e.commissions, e.runs, e.calculator, policy, chunkSize)
}

// chain registers n eligible affiliates, each recruited by the previous
// one. chain[0] is the root and chain[n-1] the deepest.
func (e *testEnv) chain(t *testing.T, n int) []*models.Affiliate {
	t.Helper()
	out := make([]*models.Affiliate, 0, n)
	var upline *uint
	for i := 0; i < n; i++ {
		a, err := e.directory.Create(context.Background(), &CreateAffiliateInput{
			Name:       fmt.Sprintf("Affiliate %d", i+1),
			Email:      fmt.Sprintf("affiliate%d@example.com", i+1),
			UplineID:   upline,
			CompActive: true,
		})
		require.NoError(t, err)
		out = append(out, a)
		id := a.ID
		upline = &id
	}
	return out
}

// sale records a pending sale for producer without computing commissions
func (e *testEnv) sale(t *testing.T, producer *models.Affiliate, amount string) *models.Sale {
	t.Helper()
	id := producer.ID
	result, err := e.saleSvc.Record(context.Background(), &RecordSaleInput{AffiliateID: &id, Amount: amount})
	require.NoError(t, err)
	return result.Sale
}

func amountsByLevel(rows []*models.Commission) map[int]int64 {
	out := make(map[int]int64, len(rows))
	for _, c := range rows {
		out[c.Level] = c.AmountCents
	}
	return out
}
