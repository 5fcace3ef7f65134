package world

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/annel0/ecs-world/internal/world/entity"
)

// cellKey представляет ключ ячейки в пространственной сетке
type cellKey struct {
	x, y int
}

// gridEntry хранит последнюю проиндексированную позицию сущности
type gridEntry struct {
	key  cellKey
	x, y float64
}

// Pair — неупорядоченная пара сущностей-кандидатов на столкновение (A < B).
type Pair struct {
	A, B entity.EntityID
}

// GridStats — статистика занятости сетки для метрик.
type GridStats struct {
	Cells      int     // Ячеек с хотя бы одной сущностью.
	Entities   int     // Проиндексированных сущностей.
	MaxPerCell int     // Максимальная занятость ячейки.
	AvgPerCell float64 // Средняя занятость непустой ячейки.
}

// SpatialGrid — равномерная пространственная сетка для широкой фазы.
// Сущность занимает ровно одну ячейку, вычисленную по её позиции на момент
// последнего Insert/Update; позиции вне границ мира прижимаются к граничным
// ячейкам. Широкая фаза даёт только кандидатов — точная проверка пересечения
// остаётся за узкой фазой.
type SpatialGrid struct {
	cellSize   float64
	minX, minY float64
	maxX, maxY float64
	cols, rows int

	cells   map[cellKey]map[entity.EntityID]struct{}
	entries map[entity.EntityID]gridEntry
	mu      sync.RWMutex
}

// NewSpatialGrid создаёт сетку с проверкой конфигурации.
// Неположительный размер ячейки или вырожденные границы — фатальная ошибка
// на этапе конструирования, не во время запросов.
func NewSpatialGrid(minX, minY, maxX, maxY, cellSize float64) (*SpatialGrid, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("недопустимый размер ячейки: %v (должен быть > 0)", cellSize)
	}
	if maxX <= minX || maxY <= minY {
		return nil, fmt.Errorf("недопустимые границы мира: (%v,%v)-(%v,%v)", minX, minY, maxX, maxY)
	}

	cols := int(math.Ceil((maxX - minX) / cellSize))
	rows := int(math.Ceil((maxY - minY) / cellSize))

	return &SpatialGrid{
		cellSize: cellSize,
		minX:     minX,
		minY:     minY,
		maxX:     maxX,
		maxY:     maxY,
		cols:     cols,
		rows:     rows,
		cells:    make(map[cellKey]map[entity.EntityID]struct{}),
		entries:  make(map[entity.EntityID]gridEntry),
	}, nil
}

// keyFor вычисляет ключ ячейки с прижатием к границам сетки
func (sg *SpatialGrid) keyFor(x, y float64) cellKey {
	cx := int(math.Floor((x - sg.minX) / sg.cellSize))
	cy := int(math.Floor((y - sg.minY) / sg.cellSize))

	if cx < 0 {
		cx = 0
	} else if cx >= sg.cols {
		cx = sg.cols - 1
	}
	if cy < 0 {
		cy = 0
	} else if cy >= sg.rows {
		cy = sg.rows - 1
	}
	return cellKey{x: cx, y: cy}
}

// Insert добавляет сущность в индекс по её позиции.
// Повторная вставка эквивалентна Update.
func (sg *SpatialGrid) Insert(id entity.EntityID, x, y float64) {
	sg.mu.Lock()
	defer sg.mu.Unlock()
	sg.insertLocked(id, x, y)
}

func (sg *SpatialGrid) insertLocked(id entity.EntityID, x, y float64) {
	key := sg.keyFor(x, y)

	if old, exists := sg.entries[id]; exists {
		if old.key == key {
			sg.entries[id] = gridEntry{key: key, x: x, y: y}
			return
		}
		sg.removeFromCell(id, old.key)
	}

	cell, ok := sg.cells[key]
	if !ok {
		cell = make(map[entity.EntityID]struct{})
		sg.cells[key] = cell
	}
	cell[id] = struct{}{}
	sg.entries[id] = gridEntry{key: key, x: x, y: y}
}

// Update переиндексирует сущность по новой позиции.
// Перемещение между ячейками происходит только при смене ключа.
func (sg *SpatialGrid) Update(id entity.EntityID, x, y float64) {
	sg.Insert(id, x, y)
}

// Remove удаляет сущность из индекса. Неиндексированная сущность — no-op.
func (sg *SpatialGrid) Remove(id entity.EntityID) {
	sg.mu.Lock()
	defer sg.mu.Unlock()

	entry, exists := sg.entries[id]
	if !exists {
		return
	}
	delete(sg.entries, id)
	sg.removeFromCell(id, entry.key)
}

// removeFromCell убирает сущность из ячейки и удаляет опустевшую ячейку
func (sg *SpatialGrid) removeFromCell(id entity.EntityID, key cellKey) {
	if cell, ok := sg.cells[key]; ok {
		delete(cell, id)
		if len(cell) == 0 {
			delete(sg.cells, key)
		}
	}
}

// Tracked возвращает отсортированные ID всех проиндексированных сущностей.
func (sg *SpatialGrid) Tracked() []entity.EntityID {
	sg.mu.RLock()
	defer sg.mu.RUnlock()

	ids := make([]entity.EntityID, 0, len(sg.entries))
	for id := range sg.entries {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Contains сообщает, проиндексирована ли сущность.
func (sg *SpatialGrid) Contains(id entity.EntityID) bool {
	sg.mu.RLock()
	defer sg.mu.RUnlock()
	_, ok := sg.entries[id]
	return ok
}

// QueryCell возвращает сущности в ячейке, накрывающей точку (x, y).
func (sg *SpatialGrid) QueryCell(x, y float64) []entity.EntityID {
	sg.mu.RLock()
	defer sg.mu.RUnlock()

	key := sg.keyFor(x, y)
	result := make([]entity.EntityID, 0, len(sg.cells[key]))
	for id := range sg.cells[key] {
		result = append(result, id)
	}
	sortIDs(result)
	return result
}

// QueryRadius возвращает сущности в радиусе r от точки (x, y).
// Ячейки служат префильтром; принадлежность проверяется точным
// евклидовым расстоянием до проиндексированной позиции.
func (sg *SpatialGrid) QueryRadius(x, y, r float64) []entity.EntityID {
	sg.mu.RLock()
	defer sg.mu.RUnlock()

	minKey := sg.keyFor(x-r, y-r)
	maxKey := sg.keyFor(x+r, y+r)

	var result []entity.EntityID
	rSq := r * r
	for cx := minKey.x; cx <= maxKey.x; cx++ {
		for cy := minKey.y; cy <= maxKey.y; cy++ {
			for id := range sg.cells[cellKey{x: cx, y: cy}] {
				entry := sg.entries[id]
				dx := entry.x - x
				dy := entry.y - y
				if dx*dx+dy*dy <= rSq {
					result = append(result, id)
				}
			}
		}
	}
	sortIDs(result)
	return result
}

// QueryRect возвращает сущности внутри прямоугольника (включая границы).
func (sg *SpatialGrid) QueryRect(minX, minY, maxX, maxY float64) []entity.EntityID {
	sg.mu.RLock()
	defer sg.mu.RUnlock()

	minKey := sg.keyFor(minX, minY)
	maxKey := sg.keyFor(maxX, maxY)

	var result []entity.EntityID
	for cx := minKey.x; cx <= maxKey.x; cx++ {
		for cy := minKey.y; cy <= maxKey.y; cy++ {
			for id := range sg.cells[cellKey{x: cx, y: cy}] {
				entry := sg.entries[id]
				if entry.x >= minX && entry.x <= maxX &&
					entry.y >= minY && entry.y <= maxY {
					result = append(result, id)
				}
			}
		}
	}
	sortIDs(result)
	return result
}

// PotentialPairs возвращает уникальные неупорядоченные пары сущностей,
// находящихся в одной ячейке. Это широкая фаза: пара означает кандидатуру
// на столкновение, не гарантированное пересечение.
func (sg *SpatialGrid) PotentialPairs() []Pair {
	sg.mu.RLock()
	defer sg.mu.RUnlock()

	var pairs []Pair
	for _, cell := range sg.cells {
		if len(cell) < 2 {
			continue
		}
		ids := make([]entity.EntityID, 0, len(cell))
		for id := range cell {
			ids = append(ids, id)
		}
		sortIDs(ids)

		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pairs = append(pairs, Pair{A: ids[i], B: ids[j]})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

// Clear удаляет все сущности из индекса.
func (sg *SpatialGrid) Clear() {
	sg.mu.Lock()
	defer sg.mu.Unlock()
	sg.cells = make(map[cellKey]map[entity.EntityID]struct{})
	sg.entries = make(map[entity.EntityID]gridEntry)
}

// Stats возвращает статистику занятости сетки.
func (sg *SpatialGrid) Stats() GridStats {
	sg.mu.RLock()
	defer sg.mu.RUnlock()

	stats := GridStats{
		Cells:    len(sg.cells),
		Entities: len(sg.entries),
	}

	total := 0
	for _, cell := range sg.cells {
		n := len(cell)
		total += n
		if n > stats.MaxPerCell {
			stats.MaxPerCell = n
		}
	}
	if stats.Cells > 0 {
		stats.AvgPerCell = float64(total) / float64(stats.Cells)
	}
	return stats
}

func sortIDs(ids []entity.EntityID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
