package protocol

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/model"
)

// curvePoolNode 模拟带 coins(i)/balances(i) getter 的稳定币池节点
//
// 下标越界返回 JSON-RPC revert 错误，failAt 下标返回 HTTP 错误
// 模拟传输故障。
func curvePoolNode(t *testing.T, coins []common.Address, balances []int64, failAt int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage   `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "eth_call" || len(req.Params) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var msg struct {
			Data  string `json:"data"`
			Input string `json:"input"`
		}
		if err := json.Unmarshal(req.Params[0], &msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		calldata := msg.Input
		if calldata == "" {
			calldata = msg.Data
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(calldata, "0x"))
		if err != nil || len(raw) != 4+wordSize {
			http.Error(w, "bad calldata", http.StatusBadRequest)
			return
		}

		selector := hex.EncodeToString(raw[:4])
		idx := int(new(big.Int).SetBytes(raw[4:]).Int64())

		w.Header().Set("Content-Type", "application/json")
		switch {
		case idx == failAt:
			http.Error(w, "gateway timeout", http.StatusGatewayTimeout)
		case idx >= len(coins):
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"error":{"code":3,"message":"execution reverted"}}`, req.ID)
		case selector == "c6610657":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%064x"}`, req.ID, new(big.Int).SetBytes(coins[idx].Bytes()))
		case selector == "4903b0d1":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":"0x%064x"}`, req.ID, big.NewInt(balances[idx]))
		default:
			http.Error(w, "unknown selector", http.StatusBadRequest)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func stateClient(t *testing.T, url string) *blockchain.Client {
	t.Helper()
	client, err := blockchain.NewClient(&blockchain.ClientConfig{
		ChainID:     1,
		RPCURL:      url,
		Timeout:     2 * time.Second,
		BackoffBase: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

// TestCurveFetchState 测试以首个 revert 作为 coin 列表结束
func TestCurveFetchState(t *testing.T) {
	coins := []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}
	srv := curvePoolNode(t, coins, []int64{100, 200, 300}, -1)
	client := stateClient(t, srv.URL)

	pool := &model.Pool{ChainID: 1, PoolAddress: "0x9999999999999999999999999999999999999999"}
	delta, err := NewCurveParser().FetchState(context.Background(), client, pool)
	require.NoError(t, err)

	assert.Equal(t, []string{"100", "200", "300"}, delta.Reserves)
	assert.Equal(t, coins[0].Hex(), pool.Token0Address)
	assert.Equal(t, coins[1].Hex(), pool.Token1Address)
	assert.Equal(t, strings.Join([]string{coins[0].Hex(), coins[1].Hex(), coins[2].Hex()}, ","), pool.TokenList)
}

// TestCurveFetchState_TransportFailure 测试传输故障不被当成列表结束
//
// coins(2) 超时时 3 币池不能被静默截断成 2 币池，必须报错留待下轮。
func TestCurveFetchState_TransportFailure(t *testing.T) {
	coins := []common.Address{
		common.HexToAddress("0x1111111111111111111111111111111111111111"),
		common.HexToAddress("0x2222222222222222222222222222222222222222"),
		common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}
	srv := curvePoolNode(t, coins, []int64{100, 200, 300}, 2)
	client := stateClient(t, srv.URL)

	pool := &model.Pool{ChainID: 1, PoolAddress: "0x9999999999999999999999999999999999999999"}
	_, err := NewCurveParser().FetchState(context.Background(), client, pool)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "coins(2)")
	assert.Empty(t, pool.TokenList, "truncated coin list must not be written back")
}
