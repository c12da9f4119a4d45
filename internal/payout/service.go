package payout

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"custody-ledger-go/internal/models"

	"github.com/coinbase-samples/prime-sdk-go/client"
	"github.com/coinbase-samples/prime-sdk-go/credentials"
	"github.com/coinbase-samples/prime-sdk-go/model"
	"github.com/coinbase-samples/prime-sdk-go/portfolios"
	"github.com/coinbase-samples/prime-sdk-go/transactions"
	"github.com/coinbase-samples/prime-sdk-go/wallets"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
)

// Service executes approved withdrawals against Coinbase Prime custody.
type Service struct {
	client          client.RestClient
	portfoliosSvc   portfolios.PortfoliosService
	walletsSvc      wallets.WalletsService
	transactionsSvc transactions.TransactionsService
	portfolio       *models.Portfolio
}

func NewService(creds *credentials.Credentials) (*Service, error) {
	httpClient, err := createCustomHttpClient()
	if err != nil {
		return nil, fmt.Errorf("unable to create custom http client: %w", err)
	}

	restClient := client.NewRestClient(creds, httpClient)

	return &Service{
		client:          restClient,
		portfoliosSvc:   portfolios.NewPortfoliosService(restClient),
		walletsSvc:      wallets.NewWalletsService(restClient),
		transactionsSvc: transactions.NewTransactionsService(restClient),
	}, nil
}

func createCustomHttpClient() (http.Client, error) {
	tr := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			KeepAlive: 30 * time.Second,
			DualStack: true,
			Timeout:   15 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConnsPerHost:   5,
		ExpectContinueTimeout: 5 * time.Second,
	}

	if err := http2.ConfigureTransport(tr); err != nil {
		return http.Client{}, err
	}

	return http.Client{
		Transport: tr,
		Timeout:   60 * time.Second,
	}, nil
}

func (s *Service) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	request := &portfolios.ListPortfoliosRequest{}

	response, err := s.portfoliosSvc.ListPortfolios(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("unable to list portfolios: %w", err)
	}

	portfolioList := make([]models.Portfolio, len(response.Portfolios))
	for i, p := range response.Portfolios {
		portfolioList[i] = models.Portfolio{
			Id:   p.Id,
			Name: p.Name,
		}
	}

	return portfolioList, nil
}

func (s *Service) FindDefaultPortfolio(ctx context.Context) (*models.Portfolio, error) {
	portfolioList, err := s.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}

	for _, portfolio := range portfolioList {
		if portfolio.Name == "Default Portfolio" {
			return &portfolio, nil
		}
	}

	return nil, fmt.Errorf("default portfolio not found")
}

// UseDefaultPortfolio resolves and pins the default portfolio for payouts.
func (s *Service) UseDefaultPortfolio(ctx context.Context) error {
	portfolio, err := s.FindDefaultPortfolio(ctx)
	if err != nil {
		return err
	}
	s.portfolio = portfolio
	zap.L().Info("Using default portfolio",
		zap.String("name", portfolio.Name),
		zap.String("id", portfolio.Id))
	return nil
}

func (s *Service) ListWallets(ctx context.Context, portfolioId, walletType string, symbols []string) ([]models.Wallet, error) {
	request := &wallets.ListWalletsRequest{
		PortfolioId: portfolioId,
		Type:        walletType,
		Symbols:     symbols,
	}

	response, err := s.walletsSvc.ListWallets(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("unable to list wallets: %w", err)
	}

	walletList := make([]models.Wallet, len(response.Wallets))
	for i, w := range response.Wallets {
		walletList[i] = models.Wallet{
			Id:     w.Id,
			Name:   w.Name,
			Symbol: w.Symbol,
			Type:   w.Type,
		}
	}

	return walletList, nil
}

func (s *Service) findTradingWallet(ctx context.Context, coin string) (*models.Wallet, error) {
	walletList, err := s.ListWallets(ctx, s.portfolio.Id, "TRADING", []string{coin})
	if err != nil {
		return nil, err
	}
	if len(walletList) == 0 {
		return nil, fmt.Errorf("no trading wallet for %s", coin)
	}
	return &walletList[0], nil
}

var _ Initiator = (*Service)(nil)

// InitiatePayout sends the approved withdrawal amount to its destination
// address from the matching trading wallet. The withdrawal id doubles as the
// idempotency key, so a retried initiation cannot pay out twice.
func (s *Service) InitiatePayout(ctx context.Context, withdrawal *models.WithdrawalRecord) (*models.PayoutReceipt, error) {
	if s.portfolio == nil {
		return nil, fmt.Errorf("no portfolio selected, call UseDefaultPortfolio first")
	}

	wallet, err := s.findTradingWallet(ctx, withdrawal.Coin)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Initiating on-chain payout",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.String("portfolio_id", s.portfolio.Id),
		zap.String("wallet_id", wallet.Id),
		zap.String("coin", withdrawal.Coin),
		zap.String("network", withdrawal.Network),
		zap.String("amount", withdrawal.Amount.String()),
		zap.String("destination", withdrawal.DestinationAddress))

	request := &transactions.CreateWalletWithdrawalRequest{
		PortfolioId:     s.portfolio.Id,
		SourceWalletId:  wallet.Id,
		Amount:          withdrawal.Amount.String(),
		IdempotencyKey:  withdrawal.Id,
		Symbol:          withdrawal.Coin,
		DestinationType: "DESTINATION_BLOCKCHAIN",
		BlockchainAddress: &model.BlockchainAddress{
			Address: withdrawal.DestinationAddress,
		},
	}

	response, err := s.transactionsSvc.CreateWalletWithdrawal(ctx, request)
	if err != nil {
		zap.L().Error("Failed to initiate payout",
			zap.String("withdrawal_id", withdrawal.Id),
			zap.String("wallet_id", wallet.Id),
			zap.Error(err))
		return nil, fmt.Errorf("unable to initiate payout: %w", err)
	}

	zap.L().Info("Payout initiated",
		zap.String("withdrawal_id", withdrawal.Id),
		zap.String("activity_id", response.ActivityId))

	return &models.PayoutReceipt{
		ActivityId:     response.ActivityId,
		Coin:           withdrawal.Coin,
		Network:        withdrawal.Network,
		Amount:         withdrawal.Amount.String(),
		Destination:    withdrawal.DestinationAddress,
		IdempotencyKey: withdrawal.Id,
	}, nil
}
