// Package handler 提供运维 HTTP 接口
//
// GET  /health         端点健康与各链进度
// GET  /config         脱敏后的运行配置
// POST /progress/reset 清除某条进度流 (重新索引)
// GET  /metrics        Prometheus 指标
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/poolscan/poolscan/internal/blockchain"
	"github.com/poolscan/poolscan/internal/config"
	"github.com/poolscan/poolscan/internal/repository"
	"github.com/poolscan/poolscan/pkg/logger"
)

// OpsHandler 运维接口处理器
type OpsHandler struct {
	cfg          *config.Config
	clients      map[int64]*blockchain.Client
	progressRepo repository.ProgressRepository
}

// NewOpsHandler 创建运维接口处理器
func NewOpsHandler(cfg *config.Config, clients map[int64]*blockchain.Client, progressRepo repository.ProgressRepository) *OpsHandler {
	return &OpsHandler{
		cfg:          cfg,
		clients:      clients,
		progressRepo: progressRepo,
	}
}

// Register 注册路由
func (h *OpsHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /config", h.Config)
	mux.HandleFunc("POST /progress/reset", h.ResetProgress)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// ChainHealth 单链健康状态
type ChainHealth struct {
	ChainID     int64                       `json:"chain_id"`
	Name        string                      `json:"name"`
	LatestBlock uint64                      `json:"latest_block"`
	Reachable   bool                        `json:"reachable"`
	Endpoints   []blockchain.EndpointStatus `json:"endpoints"`
	Progress    []ProgressStatus            `json:"progress"`
}

// ProgressStatus 进度流状态
type ProgressStatus struct {
	IndexerType        string `json:"indexer_type"`
	PoolAddress        string `json:"pool_address,omitempty"`
	LastProcessedBlock int64  `json:"last_processed_block"`
	LagBlocks          int64  `json:"lag_blocks"`
	Status             string `json:"status"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status string        `json:"status"` // ok / degraded
	Chains []ChainHealth `json:"chains"`
}

// Health 健康检查
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := HealthResponse{Status: "ok"}
	for _, chainCfg := range h.cfg.Chains {
		client, ok := h.clients[chainCfg.ChainID]
		if !ok {
			continue
		}

		chain := ChainHealth{
			ChainID:   chainCfg.ChainID,
			Name:      chainCfg.Name,
			Endpoints: client.EndpointStatuses(),
			Reachable: true,
		}

		latest, err := client.LatestBlock(ctx)
		if err != nil {
			chain.Reachable = false
			resp.Status = "degraded"
		} else {
			chain.LatestBlock = latest
		}

		streams, err := h.progressRepo.ListByChain(ctx, chainCfg.ChainID)
		if err == nil {
			for _, st := range streams {
				lag := int64(latest) - st.LastProcessedBlock
				if lag < 0 {
					lag = 0
				}
				chain.Progress = append(chain.Progress, ProgressStatus{
					IndexerType:        st.IndexerType,
					PoolAddress:        st.PoolAddress,
					LastProcessedBlock: st.LastProcessedBlock,
					LagBlocks:          lag,
					Status:             string(st.Status),
				})
			}
		}

		resp.Chains = append(resp.Chains, chain)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Config 输出脱敏配置
func (h *OpsHandler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cfg.Redacted())
}

// ResetProgressRequest 进度重置请求
type ResetProgressRequest struct {
	ChainID     int64  `json:"chain_id"`
	IndexerType string `json:"indexer_type"`
}

// ResetProgress 清除进度流，下个周期从协议创建块重新索引
//
// 自然键 upsert 保证重索引只是幂等重放，不产生重复数据。
func (h *OpsHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	var req ResetProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ChainID == 0 || req.IndexerType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chain_id and indexer_type are required"})
		return
	}

	if err := h.progressRepo.Reset(r.Context(), req.ChainID, req.IndexerType); err != nil {
		logger.Error("failed to reset progress",
			zap.Int64("chain_id", req.ChainID),
			zap.String("indexer_type", req.IndexerType),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	logger.Info("progress reset",
		zap.Int64("chain_id", req.ChainID),
		zap.String("indexer_type", req.IndexerType))
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Serve 启动运维 HTTP 服务
func Serve(ctx context.Context, addr string, h *OpsHandler) *http.Server {
	mux := http.NewServeMux()
	h.Register(mux)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops http server stopped", zap.Error(err))
		}
	}()
	return srv
}

// writeJSON 写 JSON 响应
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
