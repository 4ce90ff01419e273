package protocol

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// wordSize ABI 编码的字长
const wordSize = 32

// topicAddress 从 topic 取 address (indexed 参数)
func topicAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic.Bytes()[12:])
}

// dataWord 从 data 取第 i 个 32 字节字
func dataWord(data []byte, i int) ([]byte, bool) {
	start := i * wordSize
	if len(data) < start+wordSize {
		return nil, false
	}
	return data[start : start+wordSize], true
}

// dataUint 从 data 取第 i 个字解析为无符号整数
func dataUint(data []byte, i int) (*big.Int, bool) {
	word, ok := dataWord(data, i)
	if !ok {
		return nil, false
	}
	return new(big.Int).SetBytes(word), true
}

// dataInt 从 data 取第 i 个字解析为带符号整数 (两补码)
//
// ABI 把 int24/int128/int256 都符号扩展到完整的 32 字节字，
// 所以带符号读取对所有宽度一致。把带符号字段当无符号 256 位读
// 是观测到的缺陷类型: 负 tick 会变成天文数字。
func dataInt(data []byte, i int) (*big.Int, bool) {
	word, ok := dataWord(data, i)
	if !ok {
		return nil, false
	}
	return signedWord(word), true
}

// signedWord 按两补码解释 32 字节字
func signedWord(word []byte) *big.Int {
	value := new(big.Int).SetBytes(word)
	if word[0]&0x80 != 0 {
		max := new(big.Int).Lsh(big.NewInt(1), 256)
		value.Sub(value, max)
	}
	return value
}

// dataAddress 从 data 取第 i 个字解析为 address
func dataAddress(data []byte, i int) (common.Address, bool) {
	word, ok := dataWord(data, i)
	if !ok {
		return common.Address{}, false
	}
	return common.BytesToAddress(word[12:]), true
}

// dataAddressArray 解析 data 中偏移量在第 i 个字的动态 address 数组
func dataAddressArray(data []byte, i int) ([]common.Address, bool) {
	offset, ok := dataUint(data, i)
	if !ok || !offset.IsUint64() {
		return nil, false
	}
	base := int(offset.Uint64())
	if len(data) < base+wordSize {
		return nil, false
	}

	length := new(big.Int).SetBytes(data[base : base+wordSize])
	if !length.IsUint64() || length.Uint64() > 1024 {
		return nil, false
	}
	n := int(length.Uint64())
	if len(data) < base+wordSize+n*wordSize {
		return nil, false
	}

	out := make([]common.Address, n)
	for j := 0; j < n; j++ {
		start := base + wordSize + j*wordSize
		out[j] = common.BytesToAddress(data[start+12 : start+wordSize])
	}
	return out, true
}

// dataUintArray 解析 data 中偏移量在第 i 个字的动态 uint256 数组
func dataUintArray(data []byte, i int) ([]*big.Int, bool) {
	offset, ok := dataUint(data, i)
	if !ok || !offset.IsUint64() {
		return nil, false
	}
	base := int(offset.Uint64())
	if len(data) < base+wordSize {
		return nil, false
	}

	length := new(big.Int).SetBytes(data[base : base+wordSize])
	if !length.IsUint64() || length.Uint64() > 1024 {
		return nil, false
	}
	n := int(length.Uint64())
	if len(data) < base+wordSize+n*wordSize {
		return nil, false
	}

	out := make([]*big.Int, n)
	for j := 0; j < n; j++ {
		start := base + wordSize + j*wordSize
		out[j] = new(big.Int).SetBytes(data[start : start+wordSize])
	}
	return out, true
}
