package feeds

// chainlink.go — authoritative settlement feed vía Chainlink en Polygon.
//
// El mercado Up/Down liquida contra el aggregator BTC/USD de Chainlink,
// así que este feed es la referencia autoritativa: el divergence check
// del scorer solo confía en él.

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const (
	defaultPolygonRPC = "https://polygon-rpc.com"

	// Aggregator BTC/USD en Polygon, 8 decimales.
	btcUSDAggregator = "0xc907E116054Ad103354f2D350FD2514433D57F6f"
	answerDecimals   = 8

	defaultChainlinkPoll = 5 * time.Second
)

var aggregatorABI abi.ABI

func init() {
	var err error
	aggregatorABI, err = abi.JSON(strings.NewReader(`[
		{
			"name": "latestRoundData",
			"type": "function",
			"stateMutability": "view",
			"inputs": [],
			"outputs": [
				{"name": "roundId", "type": "uint80"},
				{"name": "answer", "type": "int256"},
				{"name": "startedAt", "type": "uint256"},
				{"name": "updatedAt", "type": "uint256"},
				{"name": "answeredInRound", "type": "uint80"}
			]
		}
	]`))
	if err != nil {
		panic("aggregator abi parse: " + err.Error())
	}
}

// Chainlink implementa ports.ReferenceFeed leyendo latestRoundData del
// aggregator con polling periódico.
type Chainlink struct {
	*priceWindow

	rpcURL     string
	aggregator common.Address
	interval   time.Duration

	client *ethclient.Client
}

// NewChainlink crea el feed. rpcURL y aggregator vacíos usan Polygon
// mainnet y el aggregator BTC/USD.
func NewChainlink(rpcURL, aggregator string, pollInterval, momentumWindow time.Duration) *Chainlink {
	if rpcURL == "" {
		rpcURL = defaultPolygonRPC
	}
	if aggregator == "" {
		aggregator = btcUSDAggregator
	}
	if pollInterval <= 0 {
		pollInterval = defaultChainlinkPoll
	}
	return &Chainlink{
		priceWindow: newPriceWindow("chainlink", momentumWindow),
		rpcURL:      rpcURL,
		aggregator:  common.HexToAddress(aggregator),
		interval:    pollInterval,
	}
}

// Connect abre la conexión RPC y arranca el polling loop. El dial sí es
// fatal (sin RPC no hay feed); los fetches posteriores no.
func (c *Chainlink) Connect(ctx context.Context) error {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return fmt.Errorf("chainlink: dial rpc %s: %w", c.rpcURL, err)
	}
	c.client = client

	if err := c.fetchOnce(ctx); err != nil {
		slog.Warn("chainlink: initial fetch failed", "err", err)
	}
	go c.pollLoop(ctx)
	return nil
}

// IsConnected informa si hay un sample reciente.
func (c *Chainlink) IsConnected() bool {
	return c.client != nil && c.fresh(time.Now())
}

func (c *Chainlink) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.client.Close()
			return
		case <-ticker.C:
			if err := c.fetchOnce(ctx); err != nil {
				slog.Warn("chainlink: fetch failed", "err", err)
			}
		}
	}
}

func (c *Chainlink) fetchOnce(ctx context.Context) error {
	callData, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return fmt.Errorf("chainlink: pack latestRoundData: %w", err)
	}

	result, err := c.client.CallContract(ctx, ethereum.CallMsg{
		To:   &c.aggregator,
		Data: callData,
	}, nil)
	if err != nil {
		return fmt.Errorf("chainlink: call latestRoundData: %w", err)
	}

	vals, err := aggregatorABI.Unpack("latestRoundData", result)
	if err != nil || len(vals) < 2 {
		return fmt.Errorf("chainlink: unpack latestRoundData: %w", err)
	}

	answer, ok := vals[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return fmt.Errorf("chainlink: bad answer %v", vals[1])
	}

	price := answerToPrice(answer)
	c.record(price, time.Now())
	return nil
}

// answerToPrice convierte el answer int256 (8 decimales) a float64 USD.
func answerToPrice(answer *big.Int) float64 {
	f := new(big.Float).SetInt(answer)
	divisor := new(big.Float).SetInt(new(big.Int).Exp(
		big.NewInt(10), big.NewInt(answerDecimals), nil))
	price, _ := new(big.Float).Quo(f, divisor).Float64()
	return price
}
