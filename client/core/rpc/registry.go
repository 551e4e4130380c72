package rpc

// Registry id → Slot 查找表，在 Seal 时构建，之后只读
type Registry struct {
	items map[int]Item
}

func newRegistry(items []Item) *Registry {
	m := make(map[int]Item, len(items))
	for _, item := range items {
		m[item.ID()] = item
	}
	return &Registry{items: m}
}

// Lookup 按 id 查找 Slot
func (r *Registry) Lookup(id int) (Item, bool) {
	item, ok := r.items[id]
	return item, ok
}

// Len 注册的 Slot 数
func (r *Registry) Len() int {
	return len(r.items)
}
