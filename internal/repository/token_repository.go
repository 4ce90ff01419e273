package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/poolscan/poolscan/internal/model"
)

var ErrTokenNotFound = errors.New("token not found")

// TokenRepository 代币仓储接口
type TokenRepository interface {
	// Upsert 按 (chain_id, address) 幂等写入，decimals 可被修正
	Upsert(ctx context.Context, token *model.Token) error
	GetByAddress(ctx context.Context, chainID int64, address string) (*model.Token, error)
	ListByChain(ctx context.Context, chainID int64) ([]*model.Token, error)
}

// tokenRepository 代币仓储实现
type tokenRepository struct {
	*Repository
}

// NewTokenRepository 创建代币仓储
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{Repository: NewRepository(db)}
}

func (r *tokenRepository) Upsert(ctx context.Context, token *model.Token) error {
	now := time.Now().UnixMilli()
	if token.CreatedAt == 0 {
		token.CreatedAt = now
	}
	token.UpdatedAt = now

	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chain_id"}, {Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"decimals", "total_supply", "verified", "updated_at"}),
	}).Create(token).Error
}

func (r *tokenRepository) GetByAddress(ctx context.Context, chainID int64, address string) (*model.Token, error) {
	var token model.Token
	err := r.DB(ctx).
		Where("chain_id = ? AND address = ?", chainID, address).
		First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) ListByChain(ctx context.Context, chainID int64) ([]*model.Token, error) {
	var tokens []*model.Token
	err := r.DB(ctx).
		Where("chain_id = ?", chainID).
		Order("address ASC").
		Find(&tokens).Error
	return tokens, err
}
