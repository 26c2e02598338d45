package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hodlsync/hodlsync/internal/entity"
	"github.com/hodlsync/hodlsync/internal/ratelimit"
)

const (
	testWallet   = "0x1111111111111111111111111111111111111111"
	usdcContract = "0x00000000000000000000000000000000000000aa"
	daiContract  = "0x00000000000000000000000000000000000000bb"

	balanceOfSelector = "0x70a08231"
	decimalsSelector  = "0x313ce567"
)

// tokenStub configures how the fake RPC node answers for one contract.
type tokenStub struct {
	balance     *big.Int
	decimals    int64
	failCall    bool
	failDecimal bool
}

type evmRPCRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

// hexUint256 is a 32-byte ABI word, as eth_call return data.
func hexUint256(v *big.Int) string {
	return fmt.Sprintf("0x%064x", v)
}

// hexQuantity is minimal hex, as RPC quantities are encoded (no leading
// zeros allowed).
func hexQuantity(v *big.Int) string {
	return fmt.Sprintf("0x%x", v)
}

// newEVMRPCServer serves eth_getBalance and eth_call for a wallet with the
// given native balance and token contracts.
func newEVMRPCServer(t *testing.T, native *big.Int, tokens map[string]tokenStub) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req evmRPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		writeResult := func(result string) {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%q}`, req.ID, result)
		}
		writeError := func(msg string) {
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":-32000,"message":%q}}`, req.ID, msg)
		}

		switch req.Method {
		case "eth_getBalance":
			if native == nil {
				writeError("node not synced")
				return
			}
			writeResult(hexQuantity(native))
		case "eth_call":
			var call struct {
				To    string `json:"to"`
				Data  string `json:"data"`
				Input string `json:"input"`
			}
			require.NotEmpty(t, req.Params)
			require.NoError(t, json.Unmarshal(req.Params[0], &call))
			data := call.Data
			if data == "" {
				data = call.Input
			}

			stub, ok := tokens[strings.ToLower(call.To)]
			if !ok {
				t.Fatalf("eth_call to unexpected contract %s", call.To)
			}
			switch {
			case strings.HasPrefix(data, balanceOfSelector):
				if stub.failCall {
					writeError("execution reverted")
					return
				}
				writeResult(hexUint256(stub.balance))
			case strings.HasPrefix(data, decimalsSelector):
				if stub.failDecimal {
					writeError("execution reverted")
					return
				}
				writeResult(hexUint256(big.NewInt(stub.decimals)))
			default:
				t.Fatalf("eth_call with unexpected selector in %s", data)
			}
		default:
			t.Fatalf("unexpected RPC method %s", req.Method)
		}
	}))
}

func newTestEVMConnector(t *testing.T, chains []ChainConfig) *EVMConnector {
	t.Helper()
	limiter := ratelimit.New(5, 0)
	t.Cleanup(limiter.Close)

	c, err := NewEVMConnector(testWallet, chains, limiter, zap.NewNop())
	require.NoError(t, err)
	return c
}

func findBalance(balances []entity.Balance, asset string) *entity.Balance {
	for i := range balances {
		if balances[i].Asset == asset {
			return &balances[i]
		}
	}
	return nil
}

func TestEVMFetchSpotBalances(t *testing.T) {
	server := newEVMRPCServer(t,
		big.NewInt(0).SetUint64(1500000000000000000), // 1.5 ETH in wei
		map[string]tokenStub{
			usdcContract: {balance: big.NewInt(500000000), decimals: 6},
			daiContract:  {balance: big.NewInt(0), decimals: 18},
		})
	defer server.Close()

	c := newTestEVMConnector(t, []ChainConfig{{
		Name:         "ethereum",
		RPCURL:       server.URL,
		NativeSymbol: "ETH",
		Tokens: []TokenConfig{
			{Symbol: "USDC", ContractAddress: usdcContract},
			{Symbol: "DAI", ContractAddress: daiContract},
		},
	}})

	balances, err := c.FetchSpotBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2, "the zero DAI balance must be dropped")

	native := findBalance(balances, "ETH-ethereum")
	require.NotNil(t, native)
	assert.Equal(t, "1500000000000000000", native.Quantity, "native quantity stays raw wei")
	require.NotNil(t, native.Decimals)
	assert.Equal(t, evmNativeDecimals, *native.Decimals)

	usdc := findBalance(balances, "USDC-ethereum")
	require.NotNil(t, usdc)
	assert.Equal(t, "500000000", usdc.Quantity)
	require.NotNil(t, usdc.Decimals)
	assert.Equal(t, uint8(6), *usdc.Decimals)
}

func TestEVMFailingChainDoesNotFailOthers(t *testing.T) {
	server := newEVMRPCServer(t,
		big.NewInt(0).SetUint64(2000000000000000000),
		map[string]tokenStub{})
	defer server.Close()

	c := newTestEVMConnector(t, []ChainConfig{
		{Name: "ethereum", RPCURL: server.URL, NativeSymbol: "ETH"},
		{Name: "arbitrum", RPCURL: "://not-a-url", NativeSymbol: "ETH"},
	})

	balances, err := c.FetchSpotBalances(context.Background())
	require.NoError(t, err, "an undialable chain is a partial failure, not an error")
	require.Len(t, balances, 1)
	assert.Equal(t, "ETH-ethereum", balances[0].Asset)
}

func TestEVMFailingTokenSkippedOthersKept(t *testing.T) {
	server := newEVMRPCServer(t,
		big.NewInt(0).SetUint64(1000000000000000000),
		map[string]tokenStub{
			usdcContract: {balance: big.NewInt(42000000), decimals: 6},
			daiContract:  {failCall: true},
		})
	defer server.Close()

	c := newTestEVMConnector(t, []ChainConfig{{
		Name:         "ethereum",
		RPCURL:       server.URL,
		NativeSymbol: "ETH",
		Tokens: []TokenConfig{
			{Symbol: "USDC", ContractAddress: usdcContract},
			{Symbol: "DAI", ContractAddress: daiContract},
		},
	}})

	balances, err := c.FetchSpotBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 2, "only the reverting token is skipped")
	assert.NotNil(t, findBalance(balances, "ETH-ethereum"))
	assert.NotNil(t, findBalance(balances, "USDC-ethereum"))
	assert.Nil(t, findBalance(balances, "DAI-ethereum"))
}

func TestEVMNativeFailureStillReturnsTokens(t *testing.T) {
	server := newEVMRPCServer(t,
		nil, // eth_getBalance always errors
		map[string]tokenStub{
			usdcContract: {balance: big.NewInt(7000000), decimals: 6},
		})
	defer server.Close()

	c := newTestEVMConnector(t, []ChainConfig{{
		Name:         "ethereum",
		RPCURL:       server.URL,
		NativeSymbol: "ETH",
		Tokens:       []TokenConfig{{Symbol: "USDC", ContractAddress: usdcContract}},
	}})

	balances, err := c.FetchSpotBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, "USDC-ethereum", balances[0].Asset)
}

func TestEVMDecimalsFailureKeepsRawValue(t *testing.T) {
	server := newEVMRPCServer(t,
		big.NewInt(0),
		map[string]tokenStub{
			usdcContract: {balance: big.NewInt(123456), failDecimal: true},
		})
	defer server.Close()

	c := newTestEVMConnector(t, []ChainConfig{{
		Name:         "ethereum",
		RPCURL:       server.URL,
		NativeSymbol: "ETH",
		Tokens:       []TokenConfig{{Symbol: "USDC", ContractAddress: usdcContract}},
	}})

	balances, err := c.FetchSpotBalances(context.Background())
	require.NoError(t, err)
	require.Len(t, balances, 1, "a zero native balance is dropped")
	assert.Equal(t, "123456", balances[0].Quantity)
	assert.Nil(t, balances[0].Decimals, "without on-chain decimals the raw value is stored as-is")
}

func TestEVMConnectorRejectsInvalidWallet(t *testing.T) {
	limiter := ratelimit.New(1, 0)
	defer limiter.Close()

	_, err := NewEVMConnector("not-an-address", nil, limiter, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid wallet address")
}
