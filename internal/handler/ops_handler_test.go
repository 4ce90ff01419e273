package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poolscan/poolscan/internal/config"
	"github.com/poolscan/poolscan/internal/model"
	"github.com/poolscan/poolscan/internal/repository"
)

// fakeProgressRepo 测试用进度仓储
type fakeProgressRepo struct {
	repository.ProgressRepository
	resetChainID int64
	resetType    string
	resetErr     error
}

func (f *fakeProgressRepo) Reset(ctx context.Context, chainID int64, indexerType string) error {
	f.resetChainID = chainID
	f.resetType = indexerType
	return f.resetErr
}

func (f *fakeProgressRepo) ListByChain(ctx context.Context, chainID int64) ([]*model.IndexerProgress, error) {
	return nil, nil
}

// TestResetProgress 测试进度重置
func TestResetProgress(t *testing.T) {
	repo := &fakeProgressRepo{}
	h := NewOpsHandler(&config.Config{}, nil, repo)

	req := httptest.NewRequest(http.MethodPost, "/progress/reset",
		strings.NewReader(`{"chain_id": 1, "indexer_type": "uniswap_v3"}`))
	rec := httptest.NewRecorder()

	h.ResetProgress(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), repo.resetChainID)
	assert.Equal(t, "uniswap_v3", repo.resetType)
}

// TestResetProgress_BadRequest 测试非法请求
func TestResetProgress_BadRequest(t *testing.T) {
	h := NewOpsHandler(&config.Config{}, nil, &fakeProgressRepo{})

	// 非法 JSON
	req := httptest.NewRequest(http.MethodPost, "/progress/reset", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	h.ResetProgress(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 缺少必填字段
	req = httptest.NewRequest(http.MethodPost, "/progress/reset", strings.NewReader(`{"chain_id": 1}`))
	rec = httptest.NewRecorder()
	h.ResetProgress(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestConfig_RedactsSecrets 测试配置输出脱敏
func TestConfig_RedactsSecrets(t *testing.T) {
	cfg := &config.Config{}
	cfg.Postgres.Password = "supersecret"
	cfg.Redis.Password = "alsosecret"

	h := NewOpsHandler(cfg, nil, &fakeProgressRepo{})

	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	rec := httptest.NewRecorder()
	h.Config(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "supersecret")
	assert.NotContains(t, body, "alsosecret")
}

// TestHealthResponse_Serialization 测试健康响应结构
func TestHealthResponse_Serialization(t *testing.T) {
	resp := HealthResponse{
		Status: "ok",
		Chains: []ChainHealth{
			{
				ChainID:     1,
				Name:        "ethereum",
				LatestBlock: 19000000,
				Reachable:   true,
				Progress: []ProgressStatus{
					{IndexerType: "uniswap_v3", LastProcessedBlock: 18999990, LagBlocks: 10, Status: "running"},
				},
			},
		},
	}

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded HealthResponse
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ok", decoded.Status)
	require.Len(t, decoded.Chains, 1)
	assert.Equal(t, int64(10), decoded.Chains[0].Progress[0].LagBlocks)
}
