// Package scheduler implements the temperature-based multi-queue tile
// selector of §4.6: a burning queue (heat=999) plus N Zipf-sized
// temperature queues (heat 1..N), visited round-robin, with deferred
// redistribution at lap boundaries. Selection is sequential: one tile per
// SelectNextTile call.
package scheduler

import (
	"context"
	"math"

	"github.com/wplace-monitor/wplace-monitor/internal/store"
)

// DefaultMinHottestSize is the minimum size of the coldest temperature
// queue (§4.6: "s_1 >= min_hottest_size").
const DefaultMinHottestSize = 5

// maxQueues bounds the search for the largest valid queue count, guarding
// against pathological inputs (e.g. min_hottest_size=1) spinning forever.
const maxQueues = 2000

// CalculateZipfQueueSizes returns queue sizes s_1..s_N (0-indexed here as
// sizes[0]..sizes[N-1]) such that sizes[0] >= minHottestSize, the sizes
// are non-decreasing, and they sum to total. It implements the harmonic
// (Zipf-like) allocation of §4.6: raw_i is proportional to 1/(N+1-i),
// picking the largest N for which the smallest bucket still meets
// minHottestSize.
func CalculateZipfQueueSizes(total, minHottestSize int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= minHottestSize {
		return []int{total}
	}

	best := []int{total}
	harmonic := 0.0

	for k := 1; k <= total && k <= maxQueues; k++ {
		harmonic += 1.0 / float64(k)

		sizes := make([]int, k)
		sum := 0
		for i := 0; i < k; i++ {
			weight := 1.0 / float64(k-i)
			s := int(math.Round(float64(total) * weight / harmonic))
			sizes[i] = s
			sum += s
		}
		sizes[k-1] += total - sum

		if sizes[0] < minHottestSize {
			break
		}
		best = sizes
	}
	return best
}

// QueueSystem is the scheduler's in-memory round-robin state layered over
// the durable Tile heats in Store.
type QueueSystem struct {
	store          *store.Store
	minHottestSize int

	numQueues int
	pos       int
	lapCount  int
}

// New constructs a QueueSystem. minHottestSize <= 0 uses the default.
func New(s *store.Store, minHottestSize int) *QueueSystem {
	if minHottestSize <= 0 {
		minHottestSize = DefaultMinHottestSize
	}
	return &QueueSystem{store: s, minHottestSize: minHottestSize}
}

// NumQueues returns the current number of temperature queues (N).
func (qs *QueueSystem) NumQueues() int { return qs.numQueues }

// Start loads the current queue count from the Store.
func (qs *QueueSystem) Start(ctx context.Context) error {
	n, err := qs.store.NumTemperatureQueues()
	if err != nil {
		return err
	}
	qs.numQueues = n
	qs.pos = 0
	qs.lapCount = 0
	return nil
}

// SelectNextTile advances the round-robin iterator to the next queue that
// yields a tile, skipping empty queues, and returns that tile, or nil if
// every queue is currently empty.
// Every call counts toward a lap; when a lap completes, Redistribute runs
// before the result is returned, regardless of whether this call found a
// tile (deferred graduation relies on this: a checked-but-still-burning
// tile only becomes eligible for redistribution, and thus graduates, once
// a lap boundary is crossed).
func (qs *QueueSystem) SelectNextTile(ctx context.Context) (*store.Tile, error) {
	slots := qs.numQueues + 1

	found, err := qs.trySlots(slots)
	if err != nil {
		return nil, err
	}

	qs.lapCount++
	if qs.lapCount >= slots {
		if err := qs.Redistribute(ctx); err != nil {
			return found, err
		}
		qs.lapCount = 0
	}

	return found, nil
}

func (qs *QueueSystem) trySlots(slots int) (*store.Tile, error) {
	for i := 0; i < slots; i++ {
		idx := (qs.pos + i) % slots

		tile, err := qs.selectFromQueue(idx)
		if err != nil {
			return nil, err
		}
		if tile != nil {
			qs.pos = (idx + 1) % slots
			return tile, nil
		}
	}
	return nil, nil
}

func (qs *QueueSystem) selectFromQueue(idx int) (*store.Tile, error) {
	if idx == 0 {
		candidates, err := qs.store.TilesInHeat(store.HeatBurning)
		if err != nil {
			return nil, err
		}
		return oldestUnchecked(candidates), nil
	}

	candidates, err := qs.store.TilesInHeatOrderedByLastChecked(idx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

// oldestUnchecked returns the lowest-id tile with last_update == 0
// (never observed to change; a check that found no change leaves
// last_update at 0), per §4.6 step 1's burning rule.
func oldestUnchecked(tiles []store.Tile) *store.Tile {
	var best *store.Tile
	for i := range tiles {
		if tiles[i].LastUpdate != 0 {
			continue
		}
		if best == nil || tiles[i].ID < best.ID {
			best = &tiles[i]
		}
	}
	return best
}

// Redistribute recomputes N and reassigns temperature-queue heats from the
// eligible tile pool, per §4.6's redistribute() algorithm. The hottest
// bucket (heat=N) receives the most recently updated tiles; the coldest
// bucket (heat=1) receives the least recently updated of the eligible set.
func (qs *QueueSystem) Redistribute(ctx context.Context) error {
	return qs.store.WithTx(ctx, func(tx *store.Tx) error {
		tiles, err := tx.TilesForRedistribution()
		if err != nil {
			return err
		}
		if len(tiles) == 0 {
			qs.numQueues = 0
			return nil
		}

		sizes := CalculateZipfQueueSizes(len(tiles), qs.minHottestSize)
		qs.numQueues = len(sizes)

		pos := 0
		for i := len(sizes) - 1; i >= 0; i-- {
			heat := i + 1
			size := sizes[i]
			for _, t := range tiles[pos : pos+size] {
				if err := tx.SetTileHeat(t.ID, heat); err != nil {
					return err
				}
			}
			pos += size
		}
		return nil
	})
}
