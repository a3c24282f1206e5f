package emb

import "math"

// truncateTokens cuts a token sequence to max entries while keeping the
// trailing special token ([SEP] / </s>) in place.
func truncateTokens(tokens []int, max int) []int {
	if max <= 0 || len(tokens) <= max {
		return tokens
	}
	out := make([]int, max)
	copy(out, tokens[:max-1])
	out[max-1] = tokens[len(tokens)-1]
	return out
}

func toInt64(values []int, n int, fill int64) []int64 {
	out := make([]int64, n)
	for i := range out {
		if i < len(values) {
			out[i] = int64(values[i])
		} else {
			out[i] = fill
		}
	}
	return out
}

// meanPool averages token embeddings of shape [seq, hidden] over the positions
// where mask is non-zero.
func meanPool(data []float32, mask []int64, seq, hidden int) []float32 {
	out := make([]float32, hidden)
	var count float32
	for t := 0; t < seq; t++ {
		if t < len(mask) && mask[t] == 0 {
			continue
		}
		row := data[t*hidden : (t+1)*hidden]
		for i, v := range row {
			out[i] += v
		}
		count++
	}
	if count == 0 {
		return out
	}
	for i := range out {
		out[i] /= count
	}
	return out
}

func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
}
