package store

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"mediakit/internal/mediaerr"
)

type object struct {
	class string
	props map[Tag]Value
}

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	order   binary.ByteOrder
	objects map[ObjectID]*object
	created []ObjectID
	defs    map[Tag]Def
	logger  *slog.Logger
}

// NewMemory creates an empty store with the given native byte order.
func NewMemory(order binary.ByteOrder, logger *slog.Logger) *Memory {
	if order == nil {
		order = binary.LittleEndian
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		order:   order,
		objects: make(map[ObjectID]*object),
		defs:    make(map[Tag]Def),
		logger:  logger.With("component", "store"),
	}
}

func (m *Memory) ByteOrder() binary.ByteOrder { return m.order }

// NewObject creates an object of class with a fresh UUID identity.
func (m *Memory) NewObject(class string) ObjectID {
	id := ObjectID(uuid.New().String())
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addLocked(id, class)
	return id
}

func (m *Memory) addLocked(id ObjectID, class string) {
	m.objects[id] = &object{class: class, props: make(map[Tag]Value)}
	m.created = append(m.created, id)
}

func (m *Memory) Class(id ObjectID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[id]
	if !ok {
		return "", mediaerr.Errorf(mediaerr.KindConfiguration, "store.Class", "unknown object %s", id)
	}
	return o.class, nil
}

// Objects lists objects of class in creation order. An empty class lists
// every object.
func (m *Memory) Objects(class string) []ObjectID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []ObjectID
	for _, id := range m.created {
		if class == "" || m.objects[id].class == class {
			out = append(out, id)
		}
	}
	return out
}

func (m *Memory) RegisterProperty(d Def) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.defs[d.Tag]; ok {
		if existing == d {
			return nil
		}
		return mediaerr.Errorf(mediaerr.KindConfiguration, "store.RegisterProperty",
			"tag %d already registered as %q (%s), not %q (%s)", d.Tag, existing.Name, existing.Type, d.Name, d.Type)
	}
	m.defs[d.Tag] = d
	m.logger.Debug("property registered", "tag", d.Tag, "name", d.Name, "type", d.Type.String())
	return nil
}

func (m *Memory) Property(tag Tag) (Def, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.defs[tag]
	return d, ok
}

func (m *Memory) DeleteObject(id ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.lookupLocked("store.DeleteObject", id); err != nil {
		return err
	}
	delete(m.objects, id)
	for i, c := range m.created {
		if c == id {
			m.created = append(m.created[:i], m.created[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Memory) lookupLocked(op string, id ObjectID) (*object, error) {
	o, ok := m.objects[id]
	if !ok {
		return nil, mediaerr.Errorf(mediaerr.KindConfiguration, op, "unknown object %s", id)
	}
	return o, nil
}

func (m *Memory) Get(id ObjectID, tag Tag) (Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, err := m.lookupLocked("store.Get", id)
	if err != nil {
		return Value{}, err
	}
	v, ok := o.props[tag]
	if !ok {
		return Value{}, notFound("store.Get", id, tag)
	}
	return cloneValue(v), nil
}

func (m *Memory) Set(id ObjectID, tag Tag, v Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.lookupLocked("store.Set", id)
	if err != nil {
		return err
	}
	if d, ok := m.defs[tag]; ok && d.Type != v.Type {
		return mediaerr.Errorf(mediaerr.KindFormat, "store.Set",
			"property %q is %s, got %s", d.Name, d.Type, v.Type)
	}
	o.props[tag] = cloneValue(v)
	return nil
}

func (m *Memory) Has(id ObjectID, tag Tag) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.objects[id]
	if !ok {
		return false
	}
	_, ok = o.props[tag]
	return ok
}

func (m *Memory) Delete(id ObjectID, tag Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.lookupLocked("store.Delete", id)
	if err != nil {
		return err
	}
	delete(o.props, tag)
	return nil
}

func (m *Memory) WriteInt64Array(id ObjectID, tag Tag, vals []int64) error {
	arr := make([]int64, len(vals))
	copy(arr, vals)
	return m.Set(id, tag, Value{Type: TypeInt64Array, Array: arr})
}

// AppendInt64 adds v to an array property, creating it if needed, and
// returns its 1-based index.
func (m *Memory) AppendInt64(id ObjectID, tag Tag, v int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, err := m.lookupLocked("store.AppendInt64", id)
	if err != nil {
		return 0, err
	}
	cur, ok := o.props[tag]
	if ok && cur.Type != TypeInt64Array {
		return 0, mediaerr.Errorf(mediaerr.KindFormat, "store.AppendInt64",
			"property %d is %s, not an array", tag, cur.Type)
	}
	cur.Type = TypeInt64Array
	cur.Array = append(cur.Array, v)
	o.props[tag] = cur
	return int64(len(cur.Array)), nil
}

func (m *Memory) array(op string, id ObjectID, tag Tag) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, err := m.lookupLocked(op, id)
	if err != nil {
		return nil, err
	}
	v, ok := o.props[tag]
	if !ok {
		return nil, notFound(op, id, tag)
	}
	if v.Type != TypeInt64Array {
		return nil, mediaerr.Errorf(mediaerr.KindFormat, op, "property %d is %s, not an array", tag, v.Type)
	}
	return v.Array, nil
}

func (m *Memory) Int64At(id ObjectID, tag Tag, i int64) (int64, error) {
	arr, err := m.array("store.Int64At", id, tag)
	if err != nil {
		return 0, err
	}
	if i < 1 || i > int64(len(arr)) {
		return 0, mediaerr.E(mediaerr.KindPosition, "store.Int64At",
			fmt.Errorf("index %d outside 1..%d", i, len(arr)))
	}
	return arr[i-1], nil
}

func (m *Memory) ArrayLen(id ObjectID, tag Tag) (int64, error) {
	arr, err := m.array("store.ArrayLen", id, tag)
	if err != nil {
		return 0, err
	}
	return int64(len(arr)), nil
}

// Int64Array returns a copy of a whole array property.
func Int64Array(s Store, id ObjectID, tag Tag) ([]int64, error) {
	n, err := s.ArrayLen(id, tag)
	if err != nil {
		return nil, err
	}
	if m, ok := s.(*Memory); ok {
		arr, err := m.array("store.Int64Array", id, tag)
		if err != nil {
			return nil, err
		}
		out := make([]int64, len(arr))
		copy(out, arr)
		return out, nil
	}
	out := make([]int64, 0, n)
	for i := int64(1); i <= n; i++ {
		v, err := s.Int64At(id, tag, i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func cloneValue(v Value) Value {
	if v.Bytes != nil {
		v.Bytes = append([]byte(nil), v.Bytes...)
	}
	if v.Array != nil {
		v.Array = append([]int64(nil), v.Array...)
	}
	return v
}

func sortedTags(props map[Tag]Value) []Tag {
	tags := make([]Tag, 0, len(props))
	for t := range props {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
