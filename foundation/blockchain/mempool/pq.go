package mempool

import "container/heap"

// priorityQueue is a container/heap max-heap over pooled entries,
// ordered by descending fee-rate, backing Mempool's insert/evict
// bookkeeping. Each entry tracks its own position (heapIndex) so
// removeLocked can heap.Remove it in O(log n) without a linear search.
type priorityQueue []*entry

func (pq priorityQueue) Len() int { return len(pq) }

func (pq priorityQueue) Less(i, j int) bool {
	return pq[i].feeRate > pq[j].feeRate
}

func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].heapIndex = i
	pq[j].heapIndex = j
}

func (pq *priorityQueue) Push(x any) {
	e := x.(*entry)
	e.heapIndex = len(*pq)
	*pq = append(*pq, e)
}

func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.heapIndex = -1
	*pq = old[:n-1]
	return e
}

var _ = heap.Interface(&priorityQueue{})
