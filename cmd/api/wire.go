package main

import (
	"fmt"

	"creator-ledger/config"
	"creator-ledger/internal/adapter/storage/memory"
	pgStorage "creator-ledger/internal/adapter/storage/postgres"
	"creator-ledger/internal/core/ports"
	"creator-ledger/internal/service"

	"github.com/rs/zerolog"
)

// repositories is the storage side of the ledger, backed by one driver.
type repositories struct {
	transactor  ports.Transactor
	wallets     ports.WalletRepository
	walletTxns  ports.WalletTransactionRepository
	campaigns   ports.CampaignRepository
	locks       ports.BudgetLockRepository
	ledger      ports.LedgerRepository
	balances    ports.CreatorBalanceRepository
	withdrawals ports.WithdrawalRepository
	events      ports.BillableEventRepository
	invoices    ports.InvoiceRepository
	audits      ports.AuditRepository
	fees        ports.FeeRateProvider
	health      ports.HealthChecker
}

func postgresRepositories(pool pgStorage.Pool, cfg *config.Config, log zerolog.Logger) repositories {
	return repositories{
		transactor:  pgStorage.NewTransactor(pool, cfg.Database.SerializationRetries, log),
		wallets:     pgStorage.NewWalletRepo(pool),
		walletTxns:  pgStorage.NewWalletTransactionRepo(pool),
		campaigns:   pgStorage.NewCampaignRepo(pool),
		locks:       pgStorage.NewBudgetLockRepo(pool),
		ledger:      pgStorage.NewLedgerRepo(pool),
		balances:    pgStorage.NewCreatorBalanceRepo(pool),
		withdrawals: pgStorage.NewWithdrawalRepo(pool),
		events:      pgStorage.NewBillableEventRepo(pool),
		invoices:    pgStorage.NewInvoiceRepo(pool),
		audits:      pgStorage.NewAuditRepo(pool),
		fees:        pgStorage.NewFeeRateRepo(pool, cfg.Ledger.DefaultFeeBps),
		health:      pgStorage.NewHealthCheck(pool),
	}
}

func memoryRepositories(store *memory.Store, cfg *config.Config) repositories {
	return repositories{
		transactor:  memory.NewTransactor(store),
		wallets:     memory.NewWalletRepo(store),
		walletTxns:  memory.NewWalletTransactionRepo(store),
		campaigns:   memory.NewCampaignRepo(store),
		locks:       memory.NewBudgetLockRepo(store),
		ledger:      memory.NewLedgerRepo(store),
		balances:    memory.NewCreatorBalanceRepo(store),
		withdrawals: memory.NewWithdrawalRepo(store),
		events:      memory.NewBillableEventRepo(store),
		invoices:    memory.NewInvoiceRepo(store),
		audits:      memory.NewAuditRepo(store),
		fees:        memory.NewFeeRateRepo(store, cfg.Ledger.DefaultFeeBps),
		health:      memory.HealthCheck{},
	}
}

// ledgerCore holds the business services. Wallet, budget and payout services are
// in-process entry points for the campaign and validation pipelines; the HTTP
// surface only reaches withdrawals, budget queries and audit.
type ledgerCore struct {
	Wallets     ports.WalletService
	Budgets     ports.BudgetService
	Payouts     ports.PayoutService
	Withdrawals ports.WithdrawalService
	BudgetQuery ports.BudgetQueryService
	Audit       ports.AuditService
}

func newLedgerCore(
	repos repositories,
	cache ports.BudgetCache,
	publisher ports.EventPublisher,
	metrics ports.LedgerMetrics,
	cfg config.LedgerConfig,
	log zerolog.Logger,
) *ledgerCore {
	invoices := service.NewInvoiceService(repos.invoices, log)

	return &ledgerCore{
		Wallets: service.NewWalletService(
			repos.wallets, repos.walletTxns, repos.transactor, publisher, metrics, cfg, log,
		),
		Budgets: service.NewBudgetService(
			repos.campaigns, repos.locks, repos.wallets, repos.walletTxns, repos.ledger,
			repos.transactor, cache, publisher, metrics, cfg, log,
		),
		Payouts: service.NewPayoutService(
			repos.events, repos.campaigns, repos.locks, repos.ledger, repos.balances,
			repos.transactor, repos.fees, cache, publisher, metrics, cfg, log,
		),
		Withdrawals: service.NewWithdrawalService(
			repos.withdrawals, repos.balances, repos.transactor, repos.fees,
			invoices, publisher, metrics, cfg, log,
		),
		BudgetQuery: service.NewBudgetQueryService(repos.campaigns, repos.locks, repos.ledger, cache, log),
		Audit:       service.NewAuditService(repos.audits, log),
	}
}

func checkStorageDriver(driver string) error {
	switch driver {
	case "postgres", "memory":
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q", driver)
	}
}
