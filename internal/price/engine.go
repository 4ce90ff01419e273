// Package price 实现协议相关的十进制价格计算
//
// 所有计算走 shopspring/decimal + big.Int，不经过二进制浮点数，
// 输出 String() 永远是普通十进制，不带科学计数法。把
// 1.034277302914964e19 式的浮点数喂回十进制解析器会丢精度，
// 这条管线上禁止出现。
package price

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Scale 价格输出的小数位数
const Scale = 18

// ErrNoPrice 零储备或零流动性，价格无定义
var ErrNoPrice = errors.New("zero reserve or liquidity, price undefined")

// q192 = 2^192，sqrtPriceX96 平方后的定点分母
var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// Engine 价格计算器
//
// 无状态，可并发使用。
type Engine struct{}

// NewEngine 创建价格计算器
func NewEngine() *Engine {
	return &Engine{}
}

// PriceFromReserves 按两侧储备计算双向价格
//
// p01 是 1 个 token0 值多少 token1，p10 反之。原始整数金额先按
// 10^decimals 归一化再求比值:
//
//	p01 = (r1 / 10^dec1) / (r0 / 10^dec0) = r1*10^dec0 / (r0*10^dec1)
func (e *Engine) PriceFromReserves(reserve0, reserve1 string, decimals0, decimals1 uint8) (p01, p10 decimal.Decimal, err error) {
	r0, ok := new(big.Int).SetString(reserve0, 10)
	if !ok {
		return p01, p10, fmt.Errorf("malformed reserve0 %q", reserve0)
	}
	r1, ok := new(big.Int).SetString(reserve1, 10)
	if !ok {
		return p01, p10, fmt.Errorf("malformed reserve1 %q", reserve1)
	}
	if r0.Sign() <= 0 || r1.Sign() <= 0 {
		return p01, p10, ErrNoPrice
	}

	num := new(big.Int).Mul(r1, pow10(decimals0))
	den := new(big.Int).Mul(r0, pow10(decimals1))

	p01 = decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), Scale)
	p10 = decimal.NewFromBigInt(den, 0).DivRound(decimal.NewFromBigInt(num, 0), Scale)
	return p01, p10, nil
}

// PriceFromSqrtPriceX96 按集中流动性的定点平方根价格计算双向价格
//
// sqrtPriceX96 编码 sqrt(price) * 2^96，原始价格 = sqrtP^2 / 2^192
// (token1 原始单位 / token0 原始单位)，再做小数位归一化:
//
//	p01 = sqrtP^2 * 10^dec0 / (2^192 * 10^dec1)
func (e *Engine) PriceFromSqrtPriceX96(sqrtPriceX96 string, decimals0, decimals1 uint8) (p01, p10 decimal.Decimal, err error) {
	sqrtP, ok := new(big.Int).SetString(sqrtPriceX96, 10)
	if !ok {
		return p01, p10, fmt.Errorf("malformed sqrtPriceX96 %q", sqrtPriceX96)
	}
	if sqrtP.Sign() <= 0 {
		return p01, p10, ErrNoPrice
	}

	squared := new(big.Int).Mul(sqrtP, sqrtP)
	num := new(big.Int).Mul(squared, pow10(decimals0))
	den := new(big.Int).Mul(q192, pow10(decimals1))

	p01 = decimal.NewFromBigInt(num, 0).DivRound(decimal.NewFromBigInt(den, 0), Scale)
	p10 = decimal.NewFromBigInt(den, 0).DivRound(decimal.NewFromBigInt(num, 0), Scale)
	return p01, p10, nil
}

// PriceImpact 计算前后价格的百分比偏移
//
//	pct = (after - before) / before * 100
func (e *Engine) PriceImpact(before, after decimal.Decimal) (decimal.Decimal, error) {
	if before.IsZero() {
		return decimal.Decimal{}, ErrNoPrice
	}
	return after.Sub(before).DivRound(before, Scale).Mul(decimal.NewFromInt(100)), nil
}

// pow10 返回 10^n
func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
