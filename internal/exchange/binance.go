package exchange

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"

	"github.com/helix-lab/helix-trading/internal/types"
	"github.com/helix-lab/helix-trading/pkg/errors"
)

const (
	// binanceDecimalPrecision is a default decimal precision used as a
	// fallback. 8 decimals allows satoshi-level quantities for BTC-like
	// assets. Symbol-specific precision would come from exchange info
	// (LOT_SIZE, PRICE_FILTER).
	binanceDecimalPrecision = 8

	// binanceMaxKlinesPerRequest is the venue page size for klines.
	binanceMaxKlinesPerRequest = 1000

	readyCheckTimeout = 5 * time.Second
)

// Service interfaces for mocking the Binance API

// KlinesService interface for fetching historical klines.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// ListPricesService interface for fetching ticker prices.
type ListPricesService interface {
	Symbol(symbol string) ListPricesService
	Do(ctx context.Context) ([]*binance.SymbolPrice, error)
}

// GetAccountService interface for getting account info.
type GetAccountService interface {
	Do(ctx context.Context) (*binance.Account, error)
}

// CreateOrderService interface for creating orders.
type CreateOrderService interface {
	Symbol(symbol string) CreateOrderService
	Side(side binance.SideType) CreateOrderService
	Type(orderType binance.OrderType) CreateOrderService
	Quantity(quantity string) CreateOrderService
	Do(ctx context.Context) (*binance.CreateOrderResponse, error)
}

// CancelOrderService interface for canceling one order.
type CancelOrderService interface {
	Symbol(symbol string) CancelOrderService
	OrderID(orderID int64) CancelOrderService
	Do(ctx context.Context) (*binance.CancelOrderResponse, error)
}

// CancelOpenOrdersService interface for canceling all open orders of a symbol.
type CancelOpenOrdersService interface {
	Symbol(symbol string) CancelOpenOrdersService
	Do(ctx context.Context) error
}

// PingService interface for connectivity checks.
type PingService interface {
	Do(ctx context.Context) error
}

// BinanceAPI abstracts the Binance REST client for testing.
type BinanceAPI interface {
	NewKlinesService() KlinesService
	NewListPricesService() ListPricesService
	NewGetAccountService() GetAccountService
	NewCreateOrderService() CreateOrderService
	NewCancelOrderService() CancelOrderService
	NewCancelOpenOrdersService() CancelOpenOrdersService
	NewPingService() PingService
}

// tradeStreamFn matches binance.WsTradeServe.
type tradeStreamFn func(symbol string, handler binance.WsTradeHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error)

// klineStreamFn matches binance.WsKlineServe.
type klineStreamFn func(symbol, interval string, handler binance.WsKlineHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error)

// realBinanceAPI wraps the actual binance.Client.
type realBinanceAPI struct {
	client *binance.Client
}

func (r *realBinanceAPI) NewKlinesService() KlinesService {
	return &realKlinesService{service: r.client.NewKlinesService()}
}

func (r *realBinanceAPI) NewListPricesService() ListPricesService {
	return &realListPricesService{service: r.client.NewListPricesService()}
}

func (r *realBinanceAPI) NewGetAccountService() GetAccountService {
	return &realGetAccountService{service: r.client.NewGetAccountService()}
}

func (r *realBinanceAPI) NewCreateOrderService() CreateOrderService {
	return &realCreateOrderService{service: r.client.NewCreateOrderService()}
}

func (r *realBinanceAPI) NewCancelOrderService() CancelOrderService {
	return &realCancelOrderService{service: r.client.NewCancelOrderService()}
}

func (r *realBinanceAPI) NewCancelOpenOrdersService() CancelOpenOrdersService {
	return &realCancelOpenOrdersService{service: r.client.NewCancelOpenOrdersService()}
}

func (r *realBinanceAPI) NewPingService() PingService {
	return &realPingService{service: r.client.NewPingService()}
}

// Real service wrappers

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

type realListPricesService struct {
	service *binance.ListPricesService
}

func (s *realListPricesService) Symbol(symbol string) ListPricesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realListPricesService) Do(ctx context.Context) ([]*binance.SymbolPrice, error) {
	return s.service.Do(ctx)
}

type realGetAccountService struct {
	service *binance.GetAccountService
}

func (s *realGetAccountService) Do(ctx context.Context) (*binance.Account, error) {
	return s.service.Do(ctx)
}

type realCreateOrderService struct {
	service *binance.CreateOrderService
}

func (s *realCreateOrderService) Symbol(symbol string) CreateOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCreateOrderService) Side(side binance.SideType) CreateOrderService {
	s.service = s.service.Side(side)

	return s
}

func (s *realCreateOrderService) Type(orderType binance.OrderType) CreateOrderService {
	s.service = s.service.Type(orderType)

	return s
}

func (s *realCreateOrderService) Quantity(quantity string) CreateOrderService {
	s.service = s.service.Quantity(quantity)

	return s
}

func (s *realCreateOrderService) Do(ctx context.Context) (*binance.CreateOrderResponse, error) {
	return s.service.Do(ctx)
}

type realCancelOrderService struct {
	service *binance.CancelOrderService
}

func (s *realCancelOrderService) Symbol(symbol string) CancelOrderService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOrderService) OrderID(orderID int64) CancelOrderService {
	s.service = s.service.OrderID(orderID)

	return s
}

func (s *realCancelOrderService) Do(ctx context.Context) (*binance.CancelOrderResponse, error) {
	return s.service.Do(ctx)
}

type realPingService struct {
	service *binance.PingService
}

func (s *realPingService) Do(ctx context.Context) error {
	return s.service.Do(ctx)
}

type realCancelOpenOrdersService struct {
	service *binance.CancelOpenOrdersService
}

func (s *realCancelOpenOrdersService) Symbol(symbol string) CancelOpenOrdersService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realCancelOpenOrdersService) Do(ctx context.Context) error {
	_, err := s.service.Do(ctx)

	return err
}

// BinanceConfig holds the Binance connection settings.
type BinanceConfig struct {
	APIKey    string `yaml:"api_key" validate:"required"`
	SecretKey string `yaml:"secret_key" validate:"required"`
	// UseTestnet connects to the Binance spot testnet.
	UseTestnet bool `yaml:"use_testnet"`
	// BaseURL overrides the REST endpoint; takes precedence over UseTestnet.
	BaseURL string `yaml:"base_url"`
}

// Binance implements Exchange against the Binance spot REST and
// websocket APIs. It is stateless; all data comes from the venue.
type Binance struct {
	api         BinanceAPI
	tradeStream tradeStreamFn
	klineStream klineStreamFn
	configured  bool
}

// NewBinance creates a Binance exchange adapter.
func NewBinance(cfg BinanceConfig) (*Binance, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, errors.New(errors.ErrCodeMissingCredentials, "binance api key and secret key are required")
	}

	if cfg.UseTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return &Binance{
		api:         &realBinanceAPI{client: client},
		tradeStream: binance.WsTradeServe,
		klineStream: binance.WsKlineServe,
		configured:  true,
	}, nil
}

// NewBinancePublic creates an adapter without credentials. Market data
// endpoints work; account and order calls will be rejected by the venue.
func NewBinancePublic(cfg BinanceConfig) *Binance {
	if cfg.UseTestnet {
		binance.UseTestnet = true
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}

	return &Binance{
		api:         &realBinanceAPI{client: client},
		tradeStream: binance.WsTradeServe,
		klineStream: binance.WsKlineServe,
		configured:  true,
	}
}

// newBinanceWithAPI creates an adapter around a custom API implementation.
// Used for testing with mock clients.
func newBinanceWithAPI(api BinanceAPI) *Binance {
	return &Binance{
		api:         api,
		tradeStream: binance.WsTradeServe,
		klineStream: binance.WsKlineServe,
		configured:  true,
	}
}

// Ready reports whether credentials are configured and the venue answers
// a ping.
func (b *Binance) Ready() bool {
	if !b.configured {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), readyCheckTimeout)
	defer cancel()

	return b.api.NewPingService().Do(ctx) == nil
}

// GetHistoricalBars fetches up to limit most recent klines for the symbol.
func (b *Binance) GetHistoricalBars(ctx context.Context, symbol, interval string, limit int) ([]types.Bar, error) {
	if limit <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "bar limit must be positive, got %d", limit)
	}

	if limit > binanceMaxKlinesPerRequest {
		limit = binanceMaxKlinesPerRequest
	}

	klines, err := b.api.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataFetchFailed, err, "failed to fetch %s %s klines from Binance", symbol, interval)
	}

	if len(klines) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoDataFound, "no klines returned for %s %s", symbol, interval)
	}

	bars := make([]types.Bar, 0, len(klines))
	for _, k := range klines {
		bars = append(bars, convertKline(symbol, k))
	}

	return bars, nil
}

// GetCurrentPrice returns the latest traded price for the symbol.
func (b *Binance) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.api.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeDataFetchFailed, err, "failed to fetch price for %s from Binance", symbol)
	}

	if len(prices) == 0 {
		return 0, errors.Newf(errors.ErrCodeNoDataFound, "no price returned for %s", symbol)
	}

	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeDataFetchFailed, err, "unparsable price %q for %s", prices[0].Price, symbol)
	}

	return price, nil
}

// GetAccountBalances returns non-zero balances of the spot account.
func (b *Binance) GetAccountBalances(ctx context.Context) ([]Balance, error) {
	account, err := b.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataFetchFailed, "failed to fetch account info from Binance", err)
	}

	balances := make([]Balance, 0, len(account.Balances))

	for _, bal := range account.Balances {
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)

		if free+locked > 0 {
			balances = append(balances, Balance{Asset: bal.Asset, Free: free, Locked: locked})
		}
	}

	return balances, nil
}

// SubmitOrder submits a market order and returns the acknowledgement.
func (b *Binance) SubmitOrder(ctx context.Context, req OrderRequest) (OrderAck, error) {
	if req.Quantity <= 0 {
		return OrderAck{}, errors.New(errors.ErrCodeInvalidParameter, "order quantity must be greater than zero")
	}

	var side binance.SideType

	switch req.Side {
	case types.OrderSideBuy:
		side = binance.SideTypeBuy
	case types.OrderSideSell:
		side = binance.SideTypeSell
	default:
		return OrderAck{}, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported order side: %s", req.Side)
	}

	resp, err := b.api.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(req.Quantity, 'f', binanceDecimalPrecision, 64)).
		Do(ctx)
	if err != nil {
		return OrderAck{}, errors.Wrapf(errors.ErrCodeOrderFailed, err, "failed to place %s order for %s on Binance", req.Side, req.Symbol)
	}

	return convertOrderResponse(req, resp), nil
}

// CancelOrder cancels one open order by its venue identifier.
func (b *Binance) CancelOrder(ctx context.Context, symbol, orderID string) error {
	id, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidParameter, err, "invalid order ID format: %s", orderID)
	}

	_, err = b.api.NewCancelOrderService().
		Symbol(symbol).
		OrderID(id).
		Do(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderCancelFailed, err, "failed to cancel order %s on Binance", orderID)
	}

	return nil
}

// CancelAllOrders cancels all open orders for the symbol.
func (b *Binance) CancelAllOrders(ctx context.Context, symbol string) error {
	err := b.api.NewCancelOpenOrdersService().Symbol(symbol).Do(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeOrderCancelFailed, err, "failed to cancel open orders for %s on Binance", symbol)
	}

	return nil
}

// SubscribeToPrice streams trade prices over the websocket API.
func (b *Binance) SubscribeToPrice(symbol string, fn func(price float64)) (Unsubscribe, error) {
	handler := func(event *binance.WsTradeEvent) {
		price, err := strconv.ParseFloat(event.Price, 64)
		if err != nil {
			return
		}

		fn(price)
	}

	_, stop, err := b.tradeStream(symbol, handler, func(error) {})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSubscribeFailed, err, "failed to subscribe to %s trades on Binance", symbol)
	}

	return func() { close(stop) }, nil
}

// SubscribeToBars streams finalized klines over the websocket API.
// Intermediate (unclosed) kline updates are dropped.
func (b *Binance) SubscribeToBars(symbol, interval string, fn func(bar types.Bar)) (Unsubscribe, error) {
	handler := func(event *binance.WsKlineEvent) {
		if !event.Kline.IsFinal {
			return
		}

		fn(convertWsKline(event.Symbol, event.Kline))
	}

	_, stop, err := b.klineStream(symbol, interval, handler, func(error) {})
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeSubscribeFailed, err, "failed to subscribe to %s %s klines on Binance", symbol, interval)
	}

	return func() { close(stop) }, nil
}

// Helper functions

func convertKline(symbol string, k *binance.Kline) types.Bar {
	open, _ := strconv.ParseFloat(k.Open, 64)
	high, _ := strconv.ParseFloat(k.High, 64)
	low, _ := strconv.ParseFloat(k.Low, 64)
	closePrice, _ := strconv.ParseFloat(k.Close, 64)
	volume, _ := strconv.ParseFloat(k.Volume, 64)

	return types.Bar{
		Symbol:    symbol,
		OpenTime:  time.UnixMilli(k.OpenTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: time.UnixMilli(k.CloseTime),
	}
}

func convertWsKline(symbol string, k binance.WsKline) types.Bar {
	open, _ := strconv.ParseFloat(k.Open, 64)
	high, _ := strconv.ParseFloat(k.High, 64)
	low, _ := strconv.ParseFloat(k.Low, 64)
	closePrice, _ := strconv.ParseFloat(k.Close, 64)
	volume, _ := strconv.ParseFloat(k.Volume, 64)

	return types.Bar{
		Symbol:    symbol,
		OpenTime:  time.UnixMilli(k.StartTime),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: time.UnixMilli(k.EndTime),
	}
}

// convertOrderResponse aggregates fills into a single acknowledgement.
// When the venue reports no fills, the request price is used.
func convertOrderResponse(req OrderRequest, resp *binance.CreateOrderResponse) OrderAck {
	ack := OrderAck{
		OrderID:          strconv.FormatInt(resp.OrderID, 10),
		ExecutedPrice:    req.Price,
		ExecutedQuantity: req.Quantity,
		Commission:       0,
	}

	if executed, err := strconv.ParseFloat(resp.ExecutedQuantity, 64); err == nil && executed > 0 {
		ack.ExecutedQuantity = executed
	}

	var notional, quantity, commission float64

	for _, fill := range resp.Fills {
		price, _ := strconv.ParseFloat(fill.Price, 64)
		qty, _ := strconv.ParseFloat(fill.Quantity, 64)
		fee, _ := strconv.ParseFloat(fill.Commission, 64)

		notional += price * qty
		quantity += qty
		commission += fee
	}

	if quantity > 0 {
		ack.ExecutedPrice = notional / quantity
		ack.Commission = commission
	}

	return ack
}

// Ensure Binance implements Exchange.
var _ Exchange = (*Binance)(nil)
