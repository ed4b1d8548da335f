// Package upbit talks to the Upbit public quotation API: REST for markets,
// tickers and minute candles, WebSocket for the live ticker feed.
package upbit

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"BtcTrader/internal/domain/models"
	"BtcTrader/internal/domain/repository"
	xhttp "BtcTrader/pkg/http"
	"BtcTrader/pkg/logger"
	"BtcTrader/pkg/util"
)

// ErrStatus wraps non-2xx answers from the exchange.
var ErrStatus = errors.New("upbit: unexpected status")

// tickerChunk is the number of markets requested per ticker call.
const tickerChunk = 100

// Limiter gates each outbound call. *ratelimit.Throttler satisfies it.
type Limiter interface {
	Acquire(ctx context.Context) error
}

type noLimit struct{}

func (noLimit) Acquire(context.Context) error { return nil }

type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter Limiter
	logger  *logger.Logger
}

func NewClient(baseURL string, httpClient *xhttp.Client, limiter Limiter, lgr *logger.Logger) *Client {
	if limiter == nil {
		limiter = noLimit{}
	}
	if httpClient == nil {
		httpClient = xhttp.NewClient(xhttp.WithTimeout(10 * time.Second))
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		limiter: limiter,
		logger:  lgr,
	}
}

var _ repository.ExchangeClient = (*Client)(nil)

type marketDTO struct {
	Market        string `json:"market"`
	KoreanName    string `json:"korean_name"`
	EnglishName   string `json:"english_name"`
	MarketWarning string `json:"market_warning"`
}

// The WebSocket feed names the market "code"; REST names it "market".
type tickerDTO struct {
	Market            string  `json:"market"`
	Code              string  `json:"code"`
	TradePrice        float64 `json:"trade_price"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
	AccTradePrice24h  float64 `json:"acc_trade_price_24h"`
	AccTradeVolume24h float64 `json:"acc_trade_volume_24h"`
	Timestamp         int64   `json:"timestamp"`
}

func (d tickerDTO) toModel() models.Ticker {
	ts := time.Now()
	if d.Timestamp > 0 {
		ts = util.FromUnixAny(d.Timestamp)
	}
	market := d.Market
	if market == "" {
		market = d.Code
	}
	return models.Ticker{
		Market:            market,
		TradePrice:        d.TradePrice,
		High:              d.HighPrice,
		Low:               d.LowPrice,
		AccTradePrice24h:  d.AccTradePrice24h,
		AccTradeVolume24h: d.AccTradeVolume24h,
		Timestamp:         ts,
	}
}

type candleDTO struct {
	Market               string  `json:"market"`
	CandleDateTimeUTC    string  `json:"candle_date_time_utc"`
	OpeningPrice         float64 `json:"opening_price"`
	HighPrice            float64 `json:"high_price"`
	LowPrice             float64 `json:"low_price"`
	TradePrice           float64 `json:"trade_price"`
	CandleAccTradeVolume float64 `json:"candle_acc_trade_volume"`
}

// GetMarkets lists every market with its warning flag.
func (c *Client) GetMarkets(ctx context.Context) ([]models.MarketInfo, error) {
	var dtos []marketDTO
	if err := c.get(ctx, "/v1/market/all", map[string][]string{"isDetails": {"true"}}, &dtos); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}
	out := make([]models.MarketInfo, 0, len(dtos))
	for _, d := range dtos {
		out = append(out, models.MarketInfo{
			Market:      d.Market,
			KoreanName:  d.KoreanName,
			EnglishName: d.EnglishName,
			Warning:     d.MarketWarning,
		})
	}
	return out, nil
}

// GetTickers fetches tickers in chunks of 100 markets.
func (c *Client) GetTickers(ctx context.Context, markets []string) ([]models.Ticker, error) {
	out := make([]models.Ticker, 0, len(markets))
	for chunk := range slices.Chunk(markets, tickerChunk) {
		var dtos []tickerDTO
		q := map[string][]string{"markets": {strings.Join(chunk, ",")}}
		if err := c.get(ctx, "/v1/ticker", q, &dtos); err != nil {
			return nil, fmt.Errorf("get tickers: %w", err)
		}
		for _, d := range dtos {
			out = append(out, d.toModel())
		}
	}
	return out, nil
}

// GetMinuteCandles returns up to count candles ascending by time. The exchange
// answers newest first, so the slice is reversed.
func (c *Client) GetMinuteCandles(ctx context.Context, market string, unit repository.CandleUnit, count int) ([]models.Candle, error) {
	unit = repository.NormalizeCandleUnit(int(unit))
	var dtos []candleDTO
	path := "/v1/candles/minutes/" + strconv.Itoa(int(unit))
	q := map[string][]string{"market": {market}, "count": {strconv.Itoa(count)}}
	if err := c.get(ctx, path, q, &dtos); err != nil {
		return nil, fmt.Errorf("get candles %s: %w", market, err)
	}
	out := make([]models.Candle, 0, len(dtos))
	for i := len(dtos) - 1; i >= 0; i-- {
		d := dtos[i]
		ts, ok := util.ParseTime(d.CandleDateTimeUTC)
		if !ok {
			c.logger.Debug("skip candle with bad timestamp",
				logger.String("market", market), logger.String("ts", d.CandleDateTimeUTC))
			continue
		}
		out = append(out, models.Candle{
			Market:    market,
			Timestamp: ts,
			Open:      d.OpeningPrice,
			High:      d.HighPrice,
			Low:       d.LowPrice,
			Close:     d.TradePrice,
			Volume:    d.CandleAccTradeVolume,
		})
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return err
	}
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
	}, dest)
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return fmt.Errorf("%w %d: %s", ErrStatus, se.StatusCode, se.Body)
	}
	return err
}

// CandleFeed adapts the client to repository.CandleSource with a fixed unit.
type CandleFeed struct {
	client *Client
	unit   repository.CandleUnit
}

func NewCandleFeed(client *Client, unit repository.CandleUnit) *CandleFeed {
	return &CandleFeed{client: client, unit: repository.NormalizeCandleUnit(int(unit))}
}

func (f *CandleFeed) LatestCandles(ctx context.Context, market string, n int) ([]models.Candle, error) {
	return f.client.GetMinuteCandles(ctx, market, f.unit, n)
}
