package index

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unitVector(r *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	var sum float64
	for i := range v {
		v[i] = float32(r.NormFloat64())
		sum += float64(v[i]) * float64(v[i])
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func TestNewFlatRejectsInvalidDimension(t *testing.T) {
	_, err := NewFlat(0)
	assert.Error(t, err)
	_, err = NewFlat(-3)
	assert.Error(t, err)
}

func TestAddRejectsDimensionMismatch(t *testing.T) {
	idx, err := NewFlat(4)
	require.NoError(t, err)

	err = idx.Add([][]float32{{1, 0, 0}})
	assert.Error(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestAddRejectsNonUnitVector(t *testing.T) {
	idx, err := NewFlat(3)
	require.NoError(t, err)

	err = idx.Add([][]float32{{2, 0, 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "单位向量")
}

func TestSearchOrdersByDistance(t *testing.T) {
	idx, err := NewFlat(2)
	require.NoError(t, err)

	// 单位圆上的三个向量，与查询向量 (1,0) 的夹角逐渐增大
	vecs := [][]float32{
		{0, 1},
		{1, 0},
		{float32(math.Cos(0.5)), float32(math.Sin(0.5))},
	}
	require.NoError(t, idx.Add(vecs))

	hits, err := idx.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, 2, hits[1].Position)
	assert.Equal(t, 0, hits[2].Position)

	// 距离升序
	assert.LessOrEqual(t, hits[0].DistSq, hits[1].DistSq)
	assert.LessOrEqual(t, hits[1].DistSq, hits[2].DistSq)
}

func TestSearchTruncatesToK(t *testing.T) {
	idx, err := NewFlat(2)
	require.NoError(t, err)
	require.NoError(t, idx.Add([][]float32{{1, 0}, {0, 1}, {-1, 0}}))

	hits, err := idx.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = idx.Search([]float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	hits, err = idx.Search([]float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Nil(t, hits)
}

func TestSearchRejectsDimensionMismatch(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	idx, err := NewFlat(4)
	require.NoError(t, err)
	require.NoError(t, idx.Add([][]float32{unitVector(r, 4), unitVector(r, 4)}))

	// 查询向量过长：按索引维度截断会越界，必须报错而不是 panic
	_, err = idx.Search(unitVector(r, 8), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "维度不匹配")

	// 查询向量过短：按前缀算距离会静默产出错误的相似度
	_, err = idx.Search(unitVector(r, 2), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "维度不匹配")
}

func TestCosineFromDistSqMatchesDirectCosine(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	for i := 0; i < 100; i++ {
		a := unitVector(r, 16)
		b := unitVector(r, 16)

		var dot float64
		for j := range a {
			dot += float64(a[j]) * float64(b[j])
		}

		got := CosineFromDistSq(distSq(a, b))
		assert.InDelta(t, dot, got, 1e-4)
	}
}

func TestCosineFromDistSqBounds(t *testing.T) {
	// 相同向量距离为 0，相似度为 1；相反向量距离平方为 4，相似度为 -1
	assert.InDelta(t, 1.0, CosineFromDistSq(0), 1e-9)
	assert.InDelta(t, -1.0, CosineFromDistSq(4), 1e-9)
}
