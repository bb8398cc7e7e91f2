// Package index 实现了扁平（穷举）最近邻向量索引及其持久化。
//
// 索引与分块表满足位置同一性约束：索引中第 i 个向量对应分块表第 i 行。
// 两份产物总是整体重建、整体替换，索引内的向量一经写入不再修改。
package index

import (
	"fmt"
	"math"
	"sort"
)

// 向量入索引前必须是单位向量，允许的范数偏差。
// 相似度换算公式 cos = 1 - d²/2 只对单位向量成立，范数不对会静默产出错误的相似度。
const unitNormTolerance = 1e-3

// Hit 是一次最近邻检索的单条命中，DistSq 为与查询向量的 L2 距离平方。
type Hit struct {
	Position int
	DistSq   float32
}

// Flat 是一个基于穷举搜索的扁平 L2 向量索引。
// 对千级分块量的语料，穷举的简单性优于近似结构的规模优势，这是刻意的取舍。
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat 创建一个指定维度的空索引。
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("非法的向量维度: %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Add 将一批向量追加到索引。
// 维度不一致或范数偏离单位向量属于构建期致命错误，立即返回而不是带病入库。
func (f *Flat) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("向量 %d 维度不匹配: 期望 %d, 实际 %d", i, f.dim, len(v))
		}
		if err := checkUnitNorm(v); err != nil {
			return fmt.Errorf("向量 %d %w", i, err)
		}
	}
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Search 返回与查询向量 L2 距离最近的至多 k 条命中，按距离升序排列。
// 查询向量维度必须与索引一致：维度不符时按前缀算距离会静默产出错误的相似度，
// 必须显式报错而不是带病返回结果。
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("查询向量维度不匹配: 期望 %d, 实际 %d", f.dim, len(query))
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Position: i, DistSq: distSq(query, v)}
	}
	sort.Slice(hits, func(a, b int) bool { return hits[a].DistSq < hits[b].DistSq })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// Len 返回索引中的向量数量。
func (f *Flat) Len() int {
	return len(f.vectors)
}

// Dimensions 返回索引的向量维度。
func (f *Flat) Dimensions() int {
	return f.dim
}

// distSq 计算两个向量的 L2 距离平方。
func distSq(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// checkUnitNorm 校验向量范数是否在单位向量容差内。
func checkUnitNorm(v []float32) error {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1) > unitNormTolerance {
		return fmt.Errorf("不是单位向量 (norm=%.6f)，入索引前必须做 L2 归一化", norm)
	}
	return nil
}

// CosineFromDistSq 将单位向量间的 L2 距离平方换算为余弦相似度。
// 对单位向量 a、b 有 ‖a-b‖² = 2(1-cos)，即 cos = 1 - d²/2。
func CosineFromDistSq(distSq float32) float64 {
	return 1.0 - float64(distSq)/2.0
}
